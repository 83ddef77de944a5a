// Package blobstore provides storage for named index snapshots.
//
// [Store] is the interface for writing and reading snapshot blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with atomic writes and mmap reads
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 with multipart uploads and streaming reads
//   - minio.Store: MinIO and other S3-compatible servers
//   - bolt.Store: a bucket in a bbolt database file
//   - sqlite.Store: a table in a SQLite database
//
// Blobs are read with [NewReader], which picks the cheapest path the blob
// supports: a mapped byte slice, a single ranged stream, or ReadAt calls.
package blobstore
