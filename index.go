package vecflat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecflat/blobstore"
	"github.com/hupe1980/vecflat/index"
	"github.com/hupe1980/vecflat/index/flat"
	"github.com/hupe1980/vecflat/internal/conv"
	"github.com/hupe1980/vecflat/persistence"
	"golang.org/x/sync/errgroup"
)

// Index is an exact inner-product vector index.
//
// All methods are safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	backend  index.Backend
	poisoned atomic.Bool
	closed   bool
	reserved int64 // bytes held against opts.resources
	opts     options
}

// Stats describes the current state of an index.
type Stats struct {
	Dimension   int
	Vectors     int64
	Bytes       int64 // size of stored vector data
	Reserved    int64 // bytes reserved against the resource controller
	Compression Compression
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, optFns ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, &ErrConstruction{Dimension: dimension}
	}
	if _, err := conv.IntToUint32(dimension); err != nil {
		return nil, &ErrConstruction{Dimension: dimension, cause: err}
	}

	o := applyOptions(optFns)
	if !o.compression.Valid() {
		return nil, &ErrConstruction{Dimension: dimension, cause: fmt.Errorf("unknown compression %d", uint16(o.compression))}
	}

	backend, err := flat.New(func(fo *flat.Options) {
		fo.Dimension = dimension
		fo.InitialCapacity = o.initialCapacity
	})
	if err != nil {
		return nil, &ErrConstruction{Dimension: dimension, cause: err}
	}

	return newIndex(backend, o), nil
}

func newIndex(backend index.Backend, o options) *Index {
	o.logger = o.logger.WithDimension(backend.Dimension())
	return &Index{backend: backend, opts: o}
}

// write runs fn under the write lock. A panic in fn poisons the index and is
// re-raised after the lock is released.
func (ix *Index) write(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.unlockWrite(ctx, op)

	if err := ix.usable(op); err != nil {
		return err
	}
	return fn()
}

func (ix *Index) unlockWrite(ctx context.Context, op string) {
	if r := recover(); r != nil {
		ix.poisoned.Store(true)
		ix.mu.Unlock()
		ix.opts.logger.LogPoisoned(ctx, op, r)
		panic(r)
	}
	ix.mu.Unlock()
}

// read runs fn under the read lock.
func (ix *Index) read(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := ix.usable(op); err != nil {
		return err
	}
	return fn()
}

func (ix *Index) usable(op string) error {
	if ix.poisoned.Load() {
		return &ErrConcurrency{Op: op}
	}
	if ix.closed {
		return ErrClosed
	}
	return nil
}

// AddVectors appends vectors and returns their IDs, which continue the
// sequence [NTotal, NTotal+len(vectors)). Every vector is checked before any
// is stored; on error the index is unchanged.
func (ix *Index) AddVectors(ctx context.Context, vectors [][]float32) ([]int64, error) {
	start := time.Now()

	var ids []int64
	err := ix.write(ctx, "add", func() error {
		dim := ix.backend.Dimension()
		for i, v := range vectors {
			if len(v) != dim {
				return &index.ErrDimensionMismatch{Index: i, Expected: dim, Actual: len(v)}
			}
		}

		size := int64(len(vectors)) * int64(dim) * 4
		if !ix.opts.resources.TryAcquireMemory(size) {
			return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
				ErrMemoryLimit, size, ix.opts.resources.MemoryUsage(), ix.opts.resources.MemoryLimit())
		}

		first, err := ix.backend.Insert(vectors)
		if err != nil {
			ix.opts.resources.ReleaseMemory(size)
			return err
		}
		ix.reserved += size

		ids = make([]int64, len(vectors))
		for i := range ids {
			ids[i] = first + int64(i)
		}
		return nil
	})
	err = translateError("add", "", err)

	ix.opts.metricsCollector.RecordAdd(len(vectors), time.Since(start), err)
	var first int64
	if len(ids) > 0 {
		first = ids[0]
	}
	ix.opts.logger.LogAdd(ctx, len(vectors), first, err)

	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Search returns the min(k, NTotal) stored vectors with the highest inner
// product against query, best first. Equal scores are ordered by ascending
// ID. k == 0 yields an empty result.
func (ix *Index) Search(ctx context.Context, query []float32, k int, optFns ...SearchOption) ([]SearchResult, error) {
	so := applySearchOptions(optFns)
	start := time.Now()

	var results []SearchResult
	err := ix.read(ctx, "search", func() error {
		var err error
		results, err = ix.backend.Query(query, k, so.filter)
		return err
	})
	err = translateError("search", "", err)

	ix.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	ix.opts.logger.LogSearch(ctx, k, len(results), err)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchBatch runs Search for every query against one consistent view of the
// index. Queries run in parallel, bounded by WithSearchParallelism and the
// worker limit of the resource controller. A mis-sized query fails the whole
// batch with an ErrDimensionMismatch carrying its position.
func (ix *Index) SearchBatch(ctx context.Context, queries [][]float32, k int, optFns ...SearchOption) ([][]SearchResult, error) {
	so := applySearchOptions(optFns)
	start := time.Now()

	results := make([][]SearchResult, len(queries))
	err := ix.read(ctx, "search", func() error {
		dim := ix.backend.Dimension()
		for i, q := range queries {
			if len(q) != dim {
				return &index.ErrDimensionMismatch{Index: i, Expected: dim, Actual: len(q)}
			}
		}
		if k < 0 {
			return index.ErrInvalidK
		}

		// The lock is held; the batch runs to completion.
		wctx := context.WithoutCancel(ctx)

		g := new(errgroup.Group)
		g.SetLimit(ix.opts.parallelism)
		for i, q := range queries {
			g.Go(func() error {
				if err := ix.opts.resources.AcquireWorker(wctx); err != nil {
					return err
				}
				defer ix.opts.resources.ReleaseWorker()

				qstart := time.Now()
				res, err := ix.backend.Query(q, k, so.filter)
				ix.opts.metricsCollector.RecordSearch(k, time.Since(qstart), err)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		return g.Wait()
	})
	err = translateError("search", "", err)

	ix.opts.logger.DebugContext(ctx, "batch search completed",
		"queries", len(queries),
		"k", k,
		"duration", time.Since(start),
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// Vector returns a copy of the stored vector with the given ID.
func (ix *Index) Vector(id int64) ([]float32, error) {
	var v []float32
	err := ix.read(context.Background(), "vector", func() error {
		var err error
		v, err = ix.backend.Vector(id)
		return err
	})
	if err != nil {
		return nil, translateError("vector", "", err)
	}
	return v, nil
}

// NTotal returns the number of stored vectors.
func (ix *Index) NTotal() (int64, error) {
	var n int64
	err := ix.read(context.Background(), "ntotal", func() error {
		n = int64(ix.backend.Len())
		return nil
	})
	return n, err
}

// Dimension returns the fixed vector dimension.
func (ix *Index) Dimension() (int, error) {
	var d int
	err := ix.read(context.Background(), "dimension", func() error {
		d = ix.backend.Dimension()
		return nil
	})
	return d, err
}

// Stats returns a consistent snapshot of the index state.
func (ix *Index) Stats() (Stats, error) {
	var s Stats
	err := ix.read(context.Background(), "stats", func() error {
		s = Stats{
			Dimension:   ix.backend.Dimension(),
			Vectors:     int64(ix.backend.Len()),
			Bytes:       ix.backend.Bytes(),
			Reserved:    ix.reserved,
			Compression: ix.opts.compression,
		}
		return nil
	})
	return s, err
}

// Reset drops all vectors. The dimension is kept and IDs restart at zero.
func (ix *Index) Reset() error {
	ctx := context.Background()

	var dropped int
	err := ix.write(ctx, "reset", func() error {
		dropped = ix.backend.Len()
		ix.backend.Clear()
		ix.opts.resources.ReleaseMemory(ix.reserved)
		ix.reserved = 0
		return nil
	})
	if err != nil {
		return err
	}

	ix.opts.metricsCollector.RecordReset(dropped)
	ix.opts.logger.LogReset(ctx, dropped)
	return nil
}

// Close releases the vector data and its memory reservation. Every later
// call fails with ErrClosed. Closing twice is a no-op. A poisoned index is
// still released, and Close reports the poisoning.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.backend.Clear()
	ix.opts.resources.ReleaseMemory(ix.reserved)
	ix.reserved = 0

	if ix.poisoned.Load() {
		return &ErrConcurrency{Op: "close"}
	}
	return nil
}

// WriteTo writes a snapshot of the index to w. It implements io.WriterTo.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	var n int64
	err := ix.read(context.Background(), "write", func() error {
		var err error
		n, err = ix.backend.WriteSnapshot(w, ix.opts.compression)
		return err
	})
	return n, translateError("write", "", err)
}

// Save writes a snapshot to path. The data goes to a temporary file in the
// same directory, which is synced and renamed over path. On failure the
// previous file at path and the in-memory index are unchanged.
func (ix *Index) Save(ctx context.Context, path string) error {
	start := time.Now()

	var written int64
	err := ix.read(ctx, "save", func() error {
		return persistence.SaveToFile(ix.opts.fs, path, func(w io.Writer) error {
			n, err := ix.backend.WriteSnapshot(ix.opts.throttleWriter(ctx, w), ix.opts.compression)
			written = n
			return err
		})
	})
	err = translateError("save", path, err)

	ix.opts.metricsCollector.RecordSave(written, time.Since(start), err)
	ix.opts.logger.LogSave(ctx, path, written, err)
	return err
}

// SaveTo writes a snapshot into store under name. The snapshot is encoded
// under the read lock; the upload runs after the lock is released.
func (ix *Index) SaveTo(ctx context.Context, store blobstore.Store, name string) error {
	start := time.Now()

	var buf bytes.Buffer
	err := ix.read(ctx, "save", func() error {
		_, err := ix.backend.WriteSnapshot(ix.opts.throttleWriter(ctx, &buf), ix.opts.compression)
		return err
	})
	if err == nil {
		err = store.Put(ctx, name, buf.Bytes())
	}
	err = translateError("save", name, err)

	ix.opts.metricsCollector.RecordSave(int64(buf.Len()), time.Since(start), err)
	ix.opts.logger.LogSave(ctx, name, int64(buf.Len()), err)
	return err
}

// Load reads the snapshot at path into a new index. Options other than
// those affecting reads are applied to the returned index.
func Load(ctx context.Context, path string, optFns ...Option) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)
	start := time.Now()

	ix, err := o.loadFile(ctx, path, 0)
	err = translateError("load", path, err)

	loaded := 0
	if ix != nil {
		loaded = ix.backend.Len()
	}
	o.metricsCollector.RecordLoad(loaded, time.Since(start), err)
	o.logger.LogLoad(ctx, path, loaded, err)

	if err != nil {
		return nil, err
	}
	return ix, nil
}

// LoadFrom reads the snapshot stored under name into a new index.
func LoadFrom(ctx context.Context, store blobstore.Store, name string, optFns ...Option) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)
	start := time.Now()

	ix, err := o.loadBlob(ctx, store, name)
	err = translateError("load", name, err)

	loaded := 0
	if ix != nil {
		loaded = ix.backend.Len()
	}
	o.metricsCollector.RecordLoad(loaded, time.Since(start), err)
	o.logger.LogLoad(ctx, name, loaded, err)

	if err != nil {
		return nil, err
	}
	return ix, nil
}

// NewFromReader decodes a snapshot written by WriteTo, Save or SaveTo.
// r must end where the snapshot ends.
func NewFromReader(ctx context.Context, r io.Reader, optFns ...Option) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)

	ix, err := o.decode(ctx, r, 0)
	if err != nil {
		return nil, translateError("read", "", err)
	}
	return ix, nil
}

// LoadFile replaces the contents of the index with the snapshot at path.
// The snapshot must have the index dimension. On failure the index is
// unchanged.
func (ix *Index) LoadFile(ctx context.Context, path string) error {
	start := time.Now()

	loaded := 0
	err := ix.write(ctx, "load", func() error {
		var reserved int64
		dopts := ix.opts.decodeOptions(ix.backend.Dimension(), &reserved)
		data, err := ix.opts.readFile(ctx, path, dopts)
		if err != nil {
			ix.opts.resources.ReleaseMemory(reserved)
			return err
		}
		if err := ix.backend.Restore(data); err != nil {
			ix.opts.resources.ReleaseMemory(reserved)
			return err
		}

		ix.opts.resources.ReleaseMemory(ix.reserved)
		ix.reserved = reserved
		loaded = ix.backend.Len()
		return nil
	})
	err = translateError("load", path, err)

	ix.opts.metricsCollector.RecordLoad(loaded, time.Since(start), err)
	ix.opts.logger.LogLoad(ctx, path, loaded, err)
	return err
}

// decodeOptions reserves memory for the body once the header is known. If
// dim > 0 the snapshot must have that dimension.
func (o *options) decodeOptions(dim int, reserved *int64) persistence.DecodeOptions {
	return persistence.DecodeOptions{
		MaxCount: o.maxVectors,
		Accept: func(h persistence.Header) error {
			if dim > 0 && int64(h.Dimension) != int64(dim) {
				return &index.ErrDimensionMismatch{Index: -1, Expected: dim, Actual: int(h.Dimension)}
			}
			size, err := h.BodySize()
			if err != nil {
				return err
			}
			if !o.resources.TryAcquireMemory(size) {
				return fmt.Errorf("%w: snapshot needs %d bytes, %d of %d in use",
					ErrMemoryLimit, size, o.resources.MemoryUsage(), o.resources.MemoryLimit())
			}
			*reserved = size
			return nil
		},
	}
}

// readFile decodes the snapshot body at path, through a memory mapping when
// enabled.
func (o *options) readFile(ctx context.Context, path string, dopts persistence.DecodeOptions) ([]float32, error) {
	if o.mmap {
		_, data, err := persistence.LoadMapped(path, dopts)
		return data, err
	}

	var data []float32
	err := persistence.LoadFromFile(o.fs, path, func(r io.Reader, size int64) error {
		dopts.Size = size
		var err error
		_, data, err = persistence.Decode(o.throttleReader(ctx, r), dopts)
		return err
	})
	return data, err
}

func (o *options) loadFile(ctx context.Context, path string, dim int) (*Index, error) {
	var reserved int64
	var h persistence.Header
	dopts := o.decodeOptions(dim, &reserved)
	accept := dopts.Accept
	dopts.Accept = func(hdr persistence.Header) error {
		h = hdr
		return accept(hdr)
	}

	data, err := o.readFile(ctx, path, dopts)
	if err != nil {
		o.resources.ReleaseMemory(reserved)
		return nil, err
	}
	return o.build(h, data, reserved)
}

func (o *options) loadBlob(ctx context.Context, store blobstore.Store, name string) (*Index, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return o.decode(ctx, r, blob.Size())
}

func (o *options) decode(ctx context.Context, r io.Reader, size int64) (*Index, error) {
	var reserved int64
	dopts := o.decodeOptions(0, &reserved)
	dopts.Size = size

	h, data, err := persistence.Decode(o.throttleReader(ctx, r), dopts)
	if err != nil {
		o.resources.ReleaseMemory(reserved)
		return nil, err
	}
	return o.build(h, data, reserved)
}

// build wraps decoded vectors in a new index that owns the reservation.
func (o *options) build(h persistence.Header, data []float32, reserved int64) (*Index, error) {
	dim, err := conv.Uint64ToInt(uint64(h.Dimension))
	if err != nil {
		o.resources.ReleaseMemory(reserved)
		return nil, err
	}

	backend, err := flat.New(func(fo *flat.Options) { fo.Dimension = dim })
	if err == nil {
		err = backend.Restore(data)
	}
	if err != nil {
		o.resources.ReleaseMemory(reserved)
		return nil, err
	}

	ix := newIndex(backend, *o)
	ix.reserved = reserved
	return ix, nil
}

// throttleWriter applies the IO limit of the resource controller. The lock
// is held while snapshots stream, so waits are not cancelled.
func (o *options) throttleWriter(ctx context.Context, w io.Writer) io.Writer {
	return o.resources.Writer(context.WithoutCancel(ctx), w)
}

func (o *options) throttleReader(ctx context.Context, r io.Reader) io.Reader {
	return o.resources.Reader(context.WithoutCancel(ctx), r)
}
