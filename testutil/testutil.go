package testutil

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/vecflat/distance"
)

// SearchResult is a reference search hit.
type SearchResult struct {
	ID    int64
	Score float32
}

// RNG is a seeded, goroutine-safe source of test vectors.
type RNG struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRNG returns an RNG whose output depends only on seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float32 returns a value in [0, 1).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float32()
}

// Vectors returns n vectors of dimension dim with components in [0, 1).
// All rows share one backing array, like a flat index's storage.
func (r *RNG) Vectors(n, dim int) [][]float32 {
	return r.fill(n, dim, func(src *rand.Rand) float32 { return src.Float32() })
}

// SignedVectors returns components in [-1, 1), so inner products can be
// negative.
func (r *RNG) SignedVectors(n, dim int) [][]float32 {
	return r.fill(n, dim, func(src *rand.Rand) float32 { return src.Float32()*2 - 1 })
}

// GridVectors returns components drawn from {0, ..., levels-1}. Inner
// products are then exact small integers and collide often.
func (r *RNG) GridVectors(n, dim, levels int) [][]float32 {
	return r.fill(n, dim, func(src *rand.Rand) float32 { return float32(src.IntN(levels)) })
}

func (r *RNG) fill(n, dim int, next func(*rand.Rand) float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	backing := make([]float32, n*dim)
	for i := range backing {
		backing[i] = next(r.src)
	}
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return rows
}

// ExactSearch ranks every row against query by inner product, highest first,
// with ties broken by lower ID and NaN scores last. It returns at most k hits.
func ExactSearch(vectors [][]float32, query []float32, k int) []SearchResult {
	hits := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		hits[i] = SearchResult{ID: int64(i), Score: distance.Dot(query, v)}
	}

	slices.SortFunc(hits, func(a, b SearchResult) int {
		aNaN, bNaN := math.IsNaN(float64(a.Score)), math.IsNaN(float64(b.Score))
		switch {
		case aNaN && !bNaN:
			return 1
		case bNaN && !aNaN:
			return -1
		case !aNaN && a.Score != b.Score:
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return hits[:min(max(k, 0), len(hits))]
}
