// Package s3 provides an S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = idx.SaveTo(ctx, store, "products.vflt")
//
// # Features
//
//   - Multipart uploads through the SDK upload manager
//   - CRC32C upload checksums verified by S3
//   - Single streaming GET for full snapshot reads
//   - Automatic pagination for listing
package s3
