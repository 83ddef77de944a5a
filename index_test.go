package vecflat

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecflat/blobstore"
	"github.com/hupe1980/vecflat/index/flat"
	"github.com/hupe1980/vecflat/internal/fs"
	"github.com/hupe1980/vecflat/persistence"
	"github.com/hupe1980/vecflat/resource"
	"github.com/hupe1980/vecflat/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, dim int, vectors [][]float32, opts ...Option) *Index {
	t.Helper()
	idx, err := New(dim, opts...)
	require.NoError(t, err)
	if len(vectors) > 0 {
		_, err = idx.AddVectors(context.Background(), vectors)
		require.NoError(t, err)
	}
	return idx
}

func requireSameVectors(t *testing.T, want, got *Index) {
	t.Helper()
	wn, err := want.NTotal()
	require.NoError(t, err)
	gn, err := got.NTotal()
	require.NoError(t, err)
	require.Equal(t, wn, gn)

	for id := range wn {
		wv, err := want.Vector(id)
		require.NoError(t, err)
		gv, err := got.Vector(id)
		require.NoError(t, err)
		for i := range wv {
			require.Equal(t, math.Float32bits(wv[i]), math.Float32bits(gv[i]), "vector %d float %d", id, i)
		}
	}
}

func TestNew(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		idx, err := New(4)
		require.NoError(t, err)

		dim, err := idx.Dimension()
		require.NoError(t, err)
		assert.Equal(t, 4, dim)

		n, err := idx.NTotal()
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	for _, dim := range []int{0, -1, math.MinInt} {
		_, err := New(dim)
		var ce *ErrConstruction
		require.ErrorAs(t, err, &ce, "dimension %d", dim)
		assert.Equal(t, dim, ce.Dimension)
	}

	t.Run("TooLarge", func(t *testing.T) {
		if math.MaxInt == math.MaxInt32 {
			t.Skip("int cannot exceed MaxUint32")
		}
		var big int64 = math.MaxUint32 + 1
		_, err := New(int(big))
		var ce *ErrConstruction
		require.ErrorAs(t, err, &ce)
	})

	t.Run("UnknownCompression", func(t *testing.T) {
		_, err := New(2, WithCompression(Compression(9)))
		var ce *ErrConstruction
		require.ErrorAs(t, err, &ce)
	})
}

func TestAddVectors(t *testing.T) {
	ctx := context.Background()

	t.Run("SequentialIDs", func(t *testing.T) {
		idx := newTestIndex(t, 2, nil)

		ids, err := idx.AddVectors(ctx, [][]float32{{1, 0}, {0, 1}})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1}, ids)

		ids, err = idx.AddVectors(ctx, [][]float32{{1, 1}})
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids)

		n, _ := idx.NTotal()
		assert.Equal(t, int64(3), n)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		idx := newTestIndex(t, 2, [][]float32{{1, 0}})

		ids, err := idx.AddVectors(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)

		n, _ := idx.NTotal()
		assert.Equal(t, int64(1), n)
	})

	t.Run("MismatchInsertsNothing", func(t *testing.T) {
		idx := newTestIndex(t, 3, [][]float32{{1, 2, 3}})

		_, err := idx.AddVectors(ctx, [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8}, {9, 9, 9}})
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Index)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)

		n, _ := idx.NTotal()
		assert.Equal(t, int64(1), n)

		ids, err := idx.AddVectors(ctx, [][]float32{{0, 0, 1}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})

	t.Run("CopiesInput", func(t *testing.T) {
		v := []float32{1, 2}
		idx := newTestIndex(t, 2, [][]float32{v})
		v[0] = 99

		got, err := idx.Vector(0)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, got)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		idx := newTestIndex(t, 2, nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := idx.AddVectors(cctx, [][]float32{{1, 0}})
		require.ErrorIs(t, err, context.Canceled)

		n, _ := idx.NTotal()
		assert.Zero(t, n)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2, [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}})

	t.Run("Ranked", func(t *testing.T) {
		results, err := idx.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []SearchResult{{ID: 0, Score: 1}, {ID: 2, Score: 0.9}}, results)
	})

	t.Run("KLargerThanCount", func(t *testing.T) {
		results, err := idx.Search(ctx, []float32{0, 1}, 10)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, int64(1), results[0].ID)
	})

	t.Run("KZero", func(t *testing.T) {
		results, err := idx.Search(ctx, []float32{1, 0}, 0)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("NegativeK", func(t *testing.T) {
		_, err := idx.Search(ctx, []float32{1, 0}, -1)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("QueryMismatch", func(t *testing.T) {
		_, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, -1, dm.Index)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 3, dm.Actual)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		empty := newTestIndex(t, 2, nil)
		results, err := empty.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("TiesByAscendingID", func(t *testing.T) {
		ties := newTestIndex(t, 2, [][]float32{{0, 1}, {1, 0}, {0, 1}, {1, 0}, {1, 0}})
		results, err := ties.Search(ctx, []float32{1, 0}, 4)
		require.NoError(t, err)

		ids := make([]int64, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		assert.Equal(t, []int64{1, 3, 4, 0}, ids)
	})

	t.Run("NaNRanksLast", func(t *testing.T) {
		nan := float32(math.NaN())
		ix := newTestIndex(t, 1, [][]float32{{nan}, {-5}, {2}})
		results, err := ix.Search(ctx, []float32{1}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, int64(2), results[0].ID)
		assert.Equal(t, int64(1), results[1].ID)
		assert.Equal(t, int64(0), results[2].ID)
	})

	t.Run("Filter", func(t *testing.T) {
		results, err := idx.Search(ctx, []float32{1, 0}, 3, WithFilter(roaring.BitmapOf(1, 2)))
		require.NoError(t, err)
		assert.Equal(t, []SearchResult{{ID: 2, Score: 0.9}, {ID: 1, Score: 0}}, results)

		results, err = idx.Search(ctx, []float32{1, 0}, 3, WithFilter(roaring.New()))
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = idx.Search(ctx, []float32{1, 0}, 3, WithFilterFunc(func(id int64) bool { return id != 0 }))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, int64(2), results[0].ID)
	})
}

func TestSearchMatchesReference(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)
	const dim = 16

	vectors := rng.Vectors(600, dim)
	idx := newTestIndex(t, dim, vectors)

	for _, k := range []int{1, 7, 100, 600, 1000} {
		q := rng.Vectors(1, dim)[0]
		got, err := idx.Search(ctx, q, k)
		require.NoError(t, err)

		want := testutil.ExactSearch(vectors, q, k)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID, "k=%d rank %d", k, i)
			assert.Equal(t, want[i].Score, got[i].Score, "k=%d rank %d", k, i)
		}
	}
}

func TestSearchTiesMatchReference(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(23)
	const dim = 3

	vectors := rng.GridVectors(400, dim, 3)
	idx := newTestIndex(t, dim, vectors)

	for range 10 {
		q := rng.GridVectors(1, dim, 3)[0]
		got, err := idx.Search(ctx, q, 25)
		require.NoError(t, err)

		want := testutil.ExactSearch(vectors, q, 25)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID, "rank %d", i)
		}
	}
}

func TestSearchBatch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	const dim = 8

	idx := newTestIndex(t, dim, rng.Vectors(300, dim), WithSearchParallelism(3))
	queries := rng.Vectors(20, dim)

	batch, err := idx.SearchBatch(ctx, queries, 5)
	require.NoError(t, err)
	require.Len(t, batch, len(queries))

	for i, q := range queries {
		single, err := idx.Search(ctx, q, 5)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "query %d", i)
	}

	t.Run("Mismatch", func(t *testing.T) {
		bad := [][]float32{queries[0], queries[1][:dim-1]}
		_, err := idx.SearchBatch(ctx, bad, 5)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 1, dm.Index)
	})

	t.Run("NegativeK", func(t *testing.T) {
		_, err := idx.SearchBatch(ctx, queries, -2)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("WorkerLimit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MaxSearchWorkers: 1})
		limited := newTestIndex(t, dim, rng.Vectors(50, dim), WithResourceController(rc))
		got, err := limited.SearchBatch(ctx, queries, 3)
		require.NoError(t, err)
		assert.Len(t, got, len(queries))
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2, [][]float32{{1, 0}, {0, 1}})

	require.NoError(t, idx.Reset())

	n, err := idx.NTotal()
	require.NoError(t, err)
	assert.Zero(t, n)

	dim, err := idx.Dimension()
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	ids, err := idx.AddVectors(ctx, [][]float32{{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, ids)
}

func TestVector(t *testing.T) {
	idx := newTestIndex(t, 2, [][]float32{{1, 2}})

	_, err := idx.Vector(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = idx.Vector(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(5)
	vectors := rng.SignedVectors(130, 7)
	vectors[4][2] = float32(math.NaN())
	vectors[9][0] = float32(math.Inf(-1))

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.vflt")
			idx := newTestIndex(t, 7, vectors, WithCompression(c))
			require.NoError(t, idx.Save(ctx, path))

			for _, mmap := range []bool{false, true} {
				loaded, err := Load(ctx, path, WithMmap(mmap))
				require.NoError(t, err)
				requireSameVectors(t, idx, loaded)

				dim, _ := loaded.Dimension()
				assert.Equal(t, 7, dim)

				q := rng.Vectors(1, 7)[0]
				want, err := idx.Search(ctx, q, 10)
				require.NoError(t, err)
				got, err := loaded.Search(ctx, q, 10)
				require.NoError(t, err)
				assert.Equal(t, want, got)

				ids, err := loaded.AddVectors(ctx, [][]float32{make([]float32, 7)})
				require.NoError(t, err)
				assert.Equal(t, []int64{130}, ids)
			}
		})
	}

	t.Run("Empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.vflt")
		require.NoError(t, newTestIndex(t, 5, nil).Save(ctx, path))

		loaded, err := Load(ctx, path)
		require.NoError(t, err)
		n, _ := loaded.NTotal()
		assert.Zero(t, n)
		dim, _ := loaded.Dimension()
		assert.Equal(t, 5, dim)
	})

	t.Run("Overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.vflt")
		require.NoError(t, newTestIndex(t, 2, [][]float32{{1, 1}}).Save(ctx, path))
		require.NoError(t, newTestIndex(t, 3, [][]float32{{1, 2, 3}, {4, 5, 6}}).Save(ctx, path))

		loaded, err := Load(ctx, path)
		require.NoError(t, err)
		n, _ := loaded.NTotal()
		assert.Equal(t, int64(2), n)
	})
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(dir, "missing.vflt"))
		var ioErr *ErrIO
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "load", ioErr.Op)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	good := filepath.Join(dir, "good.vflt")
	require.NoError(t, newTestIndex(t, 3, [][]float32{{1, 2, 3}, {4, 5, 6}}).Save(ctx, good))
	raw, err := os.ReadFile(good)
	require.NoError(t, err)

	corrupt := map[string][]byte{
		"Empty":        {},
		"ShortHeader":  raw[:10],
		"BadMagic":     append([]byte{'X'}, raw[1:]...),
		"Truncated":    raw[:len(raw)-5],
		"TrailingData": append(bytes.Clone(raw), 0),
		"FlippedBit": func() []byte {
			b := bytes.Clone(raw)
			b[persistence.HeaderSize+1] ^= 0x01
			return b
		}(),
	}
	for name, data := range corrupt {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".vflt")
			require.NoError(t, os.WriteFile(path, data, 0o644))

			for _, mmap := range []bool{false, true} {
				_, err := Load(ctx, path, WithMmap(mmap))
				var cd *ErrCorruptData
				require.ErrorAs(t, err, &cd, "mmap=%v", mmap)
				assert.Equal(t, path, cd.Path)
				assert.ErrorIs(t, err, persistence.ErrCorrupt)
			}
		})
	}

	t.Run("MaxVectors", func(t *testing.T) {
		_, err := Load(ctx, good, WithMaxVectors(1))
		var cd *ErrCorruptData
		require.ErrorAs(t, err, &cd)

		_, err = Load(ctx, good, WithMaxVectors(2))
		require.NoError(t, err)
	})
}

func TestSaveFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.vflt")

	original := newTestIndex(t, 4, testutil.NewRNG(1).Vectors(10, 4))
	require.NoError(t, original.Save(ctx, path))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule(".tmp-", fs.Fault{FailAfterBytes: 64})

	idx := newTestIndex(t, 4, testutil.NewRNG(2).Vectors(500, 4), withFileSystem(faulty))
	err = idx.Save(ctx, path)

	var ioErr *ErrIO
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "save", ioErr.Op)
	assert.Equal(t, path, ioErr.Path)
	assert.ErrorIs(t, err, fs.ErrInjected)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	n, err := idx.NTotal()
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	t.Run("Rename", func(t *testing.T) {
		faulty := fs.NewFaultyFS(nil)
		faulty.FailRename(errors.New("disk gone"))
		idx := newTestIndex(t, 4, [][]float32{{1, 1, 1, 1}}, withFileSystem(faulty))

		require.Error(t, idx.Save(ctx, path))
		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		err := original.Save(ctx, filepath.Join(t.TempDir(), "nope", "index.vflt"))
		var ioErr *ErrIO
		require.ErrorAs(t, err, &ioErr)
	})
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.vflt")
	require.NoError(t, newTestIndex(t, 2, [][]float32{{1, 0}, {0, 1}, {1, 1}}).Save(ctx, path))

	idx := newTestIndex(t, 2, [][]float32{{5, 5}})
	require.NoError(t, idx.LoadFile(ctx, path))

	n, _ := idx.NTotal()
	assert.Equal(t, int64(3), n)
	v, err := idx.Vector(2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, v)

	t.Run("DimensionMismatch", func(t *testing.T) {
		other := newTestIndex(t, 3, [][]float32{{1, 2, 3}})
		err := other.LoadFile(ctx, path)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)

		n, _ := other.NTotal()
		assert.Equal(t, int64(1), n)
	})

	t.Run("MissingKeepsContents", func(t *testing.T) {
		err := idx.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.vflt"))
		var ioErr *ErrIO
		require.ErrorAs(t, err, &ioErr)

		n, _ := idx.NTotal()
		assert.Equal(t, int64(3), n)
	})
}

func TestBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(9).Vectors(40, 6)

	stores := map[string]blobstore.Store{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			idx := newTestIndex(t, 6, vectors, WithCompression(CompressionZstd))
			require.NoError(t, idx.SaveTo(ctx, store, "snapshots/idx.vflt"))

			loaded, err := LoadFrom(ctx, store, "snapshots/idx.vflt")
			require.NoError(t, err)
			requireSameVectors(t, idx, loaded)

			_, err = LoadFrom(ctx, store, "snapshots/missing.vflt")
			var ioErr *ErrIO
			require.ErrorAs(t, err, &ioErr)
			assert.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}

func TestWriteToNewFromReader(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 3, [][]float32{{1, 2, 3}, {-1, -2, -3}}, WithCompression(CompressionLZ4))

	var buf bytes.Buffer
	n, err := idx.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	loaded, err := NewFromReader(ctx, &buf)
	require.NoError(t, err)
	requireSameVectors(t, idx, loaded)

	_, err = NewFromReader(ctx, bytes.NewReader([]byte("not a snapshot at all, sorry")))
	var cd *ErrCorruptData
	require.ErrorAs(t, err, &cd)
}

func TestMemoryLimit(t *testing.T) {
	ctx := context.Background()
	// Room for exactly four 4-dimensional vectors.
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 4 * 4 * 4})

	idx := newTestIndex(t, 4, nil, WithResourceController(rc))
	_, err := idx.AddVectors(ctx, make([][]float32, 3))
	require.Error(t, err, "nil vectors have the wrong length")

	batch := testutil.NewRNG(1).Vectors(3, 4)
	_, err = idx.AddVectors(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(48), rc.MemoryUsage())

	_, err = idx.AddVectors(ctx, batch[:2])
	require.ErrorIs(t, err, ErrMemoryLimit)
	n, _ := idx.NTotal()
	assert.Equal(t, int64(3), n)

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(48), stats.Reserved)
	assert.Equal(t, int64(48), stats.Bytes)

	path := filepath.Join(t.TempDir(), "index.vflt")
	require.NoError(t, idx.Save(ctx, path))
	_, err = Load(ctx, path, WithResourceController(rc))
	require.ErrorIs(t, err, ErrMemoryLimit)
	assert.Equal(t, int64(48), rc.MemoryUsage())

	require.NoError(t, idx.Reset())
	assert.Zero(t, rc.MemoryUsage())

	loaded, err := Load(ctx, path, WithResourceController(rc))
	require.NoError(t, err)
	assert.Equal(t, int64(48), rc.MemoryUsage())
	require.NoError(t, loaded.Close())
	assert.Zero(t, rc.MemoryUsage())
}

func TestIOThrottledSaveLoad(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30, IOBurstBytes: 512})
	path := filepath.Join(t.TempDir(), "index.vflt")

	idx := newTestIndex(t, 8, testutil.NewRNG(4).Vectors(64, 8), WithResourceController(rc))
	require.NoError(t, idx.Save(ctx, path))

	loaded, err := Load(ctx, path, WithResourceController(rc))
	require.NoError(t, err)
	requireSameVectors(t, idx, loaded)
}

// panicBackend panics on Insert.
type panicBackend struct {
	*flat.Flat
}

func (panicBackend) Insert([][]float32) (int64, error) {
	panic("backend exploded")
}

func TestPoisoning(t *testing.T) {
	ctx := context.Background()
	f, err := flat.New(func(o *flat.Options) { o.Dimension = 2 })
	require.NoError(t, err)
	_, err = f.Insert([][]float32{{1, 0}})
	require.NoError(t, err)

	idx := newIndex(panicBackend{f}, applyOptions(nil))

	assert.PanicsWithValue(t, "backend exploded", func() {
		_, _ = idx.AddVectors(ctx, [][]float32{{0, 1}})
	})

	var cc *ErrConcurrency
	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.ErrorAs(t, err, &cc)
	assert.ErrorIs(t, err, ErrPoisoned)

	_, err = idx.AddVectors(ctx, [][]float32{{0, 1}})
	require.ErrorAs(t, err, &cc)
	_, err = idx.NTotal()
	require.ErrorAs(t, err, &cc)
	_, err = idx.Dimension()
	require.ErrorAs(t, err, &cc)
	require.ErrorAs(t, idx.Reset(), &cc)
	require.ErrorAs(t, idx.Save(ctx, filepath.Join(t.TempDir(), "x.vflt")), &cc)
	_, err = idx.SearchBatch(ctx, [][]float32{{1, 0}}, 1)
	require.ErrorAs(t, err, &cc)
	require.ErrorAs(t, idx.Close(), &cc)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2, [][]float32{{1, 0}})

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err := idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.AddVectors(ctx, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.NTotal()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, idx.Reset(), ErrClosed)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	const (
		dim     = 8
		writers = 4
		batches = 25
		batch   = 4
	)
	idx := newTestIndex(t, dim, nil)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := testutil.NewRNG(uint64(w))
			for range batches {
				ids, err := idx.AddVectors(ctx, rng.Vectors(batch, dim))
				assert.NoError(t, err)
				for i := 1; i < len(ids); i++ {
					assert.Equal(t, ids[i-1]+1, ids[i], "batch IDs are contiguous")
				}
			}
		}()
	}
	for r := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := testutil.NewRNG(uint64(100 + r))
			for range 50 {
				results, err := idx.Search(ctx, rng.Vectors(1, dim)[0], 5)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(results), 5)
			}
		}()
	}
	wg.Wait()

	n, err := idx.NTotal()
	require.NoError(t, err)
	assert.Equal(t, int64(writers*batches*batch), n)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	idx := newTestIndex(t, 2, nil, WithMetricsCollector(mc), WithLogger(nil))

	_, err := idx.AddVectors(ctx, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	_, err = idx.AddVectors(ctx, [][]float32{{1}})
	require.Error(t, err)
	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	_, err = idx.SearchBatch(ctx, [][]float32{{1, 0}, {0, 1}}, 1)
	require.NoError(t, err)
	require.NoError(t, idx.Save(ctx, filepath.Join(t.TempDir(), "m.vflt")))
	require.NoError(t, idx.Reset())

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.AddCount)
	assert.Equal(t, int64(1), stats.AddErrors)
	assert.Equal(t, int64(2), stats.VectorsAdded)
	assert.Equal(t, int64(3), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SaveCount)
	assert.Positive(t, stats.BytesSaved)
	assert.Equal(t, int64(1), stats.ResetCount)
}
