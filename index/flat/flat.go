package flat

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/vecflat/distance"
	"github.com/hupe1980/vecflat/index"
	"github.com/hupe1980/vecflat/internal/conv"
	"github.com/hupe1980/vecflat/internal/queue"
	"github.com/hupe1980/vecflat/persistence"
)

// Compile-time check to ensure Flat satisfies index.Backend.
var _ index.Backend = (*Flat)(nil)

// scoreBlock is the number of rows scored per DotRows call.
const scoreBlock = 256

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all inserts and searches.
	Dimension int

	// InitialCapacity preallocates room for this many vectors.
	InitialCapacity int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{}

// Flat stores vectors row-major in one slice; the row number is the ID.
// It is not safe for concurrent use.
type Flat struct {
	dim  int
	data []float32
}

// New creates a new instance of the flat index.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive, got %d", opts.Dimension)
	}
	if opts.InitialCapacity < 0 {
		return nil, fmt.Errorf("flat: initial capacity must not be negative, got %d", opts.InitialCapacity)
	}

	return &Flat{
		dim:  opts.Dimension,
		data: make([]float32, 0, opts.InitialCapacity*opts.Dimension),
	}, nil
}

func (f *Flat) Dimension() int { return f.dim }

func (f *Flat) Len() int { return len(f.data) / f.dim }

// Bytes returns the size of the stored vector data.
func (f *Flat) Bytes() int64 { return int64(len(f.data)) * 4 }

// Insert appends vectors after checking all of them.
func (f *Flat) Insert(vectors [][]float32) (int64, error) {
	for i, v := range vectors {
		if len(v) != f.dim {
			return 0, &index.ErrDimensionMismatch{Index: i, Expected: f.dim, Actual: len(v)}
		}
	}

	first := int64(f.Len())
	f.data = growFor(f.data, len(vectors)*f.dim)
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return first, nil
}

// growFor makes room for n more floats with amortized doubling.
func growFor(data []float32, n int) []float32 {
	if cap(data)-len(data) >= n {
		return data
	}
	newCap := max(2*cap(data), len(data)+n)
	grown := make([]float32, len(data), newCap)
	copy(grown, data)
	return grown
}

// Query scores q against every stored vector.
func (f *Flat) Query(q []float32, k int, filter index.Filter) ([]index.SearchResult, error) {
	if len(q) != f.dim {
		return nil, &index.ErrDimensionMismatch{Index: -1, Expected: f.dim, Actual: len(q)}
	}
	if k < 0 {
		return nil, index.ErrInvalidK
	}

	n := f.Len()
	k = min(k, n)
	if k == 0 {
		return []index.SearchResult{}, nil
	}

	top := queue.NewTopK(k)
	scores := make([]float32, min(n, scoreBlock))
	for start := 0; start < n; start += scoreBlock {
		rows := min(scoreBlock, n-start)
		block := f.data[start*f.dim : (start+rows)*f.dim]
		distance.DotRows(q, block, scores[:rows])

		for i, s := range scores[:rows] {
			id := int64(start + i)
			if filter != nil && !filter(id) {
				continue
			}
			top.Offer(queue.Item{ID: id, Score: s})
		}
	}

	items := top.Drain()
	results := make([]index.SearchResult, len(items))
	for i, it := range items {
		results[i] = index.SearchResult{ID: it.ID, Score: it.Score}
	}
	return results, nil
}

// Vector returns a copy of the vector with the given ID.
func (f *Flat) Vector(id int64) ([]float32, error) {
	if id < 0 || id >= int64(f.Len()) {
		return nil, index.ErrNotFound
	}
	start := int(id) * f.dim
	v := make([]float32, f.dim)
	copy(v, f.data[start:start+f.dim])
	return v, nil
}

// Clear drops all vectors and releases their memory.
func (f *Flat) Clear() {
	f.data = nil
}

// Restore replaces the stored vectors with data, taking ownership of it.
func (f *Flat) Restore(data []float32) error {
	if len(data)%f.dim != 0 {
		return errors.New("flat: restored data is not a whole number of vectors")
	}
	f.data = data
	return nil
}

// WriteSnapshot writes the index in the persistence snapshot format.
func (f *Flat) WriteSnapshot(w io.Writer, c persistence.Compression) (int64, error) {
	dim, err := conv.IntToUint32(f.dim)
	if err != nil {
		return 0, err
	}
	h := persistence.Header{
		Dimension:   dim,
		Compression: c,
		Count:       uint64(f.Len()),
	}
	return persistence.Encode(w, h, f.data)
}

// ReadSnapshot decodes a snapshot from r into a new Flat.
func ReadSnapshot(r io.Reader, opts persistence.DecodeOptions) (*Flat, error) {
	h, data, err := persistence.Decode(r, opts)
	if err != nil {
		return nil, err
	}
	dim, err := conv.Uint64ToInt(uint64(h.Dimension))
	if err != nil {
		return nil, err
	}
	f, err := New(func(o *Options) { o.Dimension = dim })
	if err != nil {
		return nil, err
	}
	f.data = data
	return f, nil
}
