// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible servers such as Ceph, Garage
// and SeaweedFS, without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minio.Dial(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "indexes",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = idx.SaveTo(ctx, store, "products.vflt")
package minio
