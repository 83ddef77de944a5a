// Package vecflat provides an exact k-nearest-neighbor vector index for Go.
//
// An Index stores fixed-dimension float32 vectors in insertion order and
// answers queries by scoring every stored vector with the inner product. IDs
// are assigned sequentially from zero and are stable until Reset or Load.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := vecflat.New(3)
//	ids, _ := idx.AddVectors(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}})
//	results, _ := idx.Search(ctx, []float32{1, 0, 0}, 1)
//	fmt.Println(ids, results[0].ID, results[0].Score) // [0 1] 0 1
//
// # Persistence
//
// Save writes a checksummed binary snapshot through a temporary file and an
// atomic rename, so a failed save never damages the previous snapshot:
//
//	_ = idx.Save(ctx, "vectors.vflt")
//	idx, _ = vecflat.Load(ctx, "vectors.vflt")
//
// Snapshots can also be kept in a blobstore.Store (local directory, memory,
// S3, MinIO, bbolt or SQLite) with SaveTo and LoadFrom. Bodies may be
// compressed with LZ4 or Zstandard; see WithCompression.
//
// # Concurrency
//
// An Index is safe for concurrent use. Searches, saves and accessors share a
// read lock; AddVectors, Reset, LoadFile and Close take the write lock. If a
// panic escapes while the write lock is held, the index is poisoned and every
// later call fails with *ErrConcurrency.
//
// # Resource Limits
//
// A resource.Controller shared through WithResourceController bounds the
// memory held by vector data, the number of batch-search workers and the
// snapshot IO bandwidth across any number of indexes.
package vecflat
