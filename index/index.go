// Package index defines the storage backend contract behind a vector index.
package index

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/vecflat/persistence"
)

var (
	// ErrInvalidK is returned when a search asks for a negative number of results.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrNotFound is returned when an ID does not name a stored vector.
	ErrNotFound = errors.New("vector not found")
)

// ErrDimensionMismatch is returned when a vector has the wrong length.
type ErrDimensionMismatch struct {
	Index    int // Position in the batch, -1 for a query
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch at vector %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
}

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the insertion position of the stored vector.
	ID int64

	// Score is the inner product between the query and the stored vector.
	Score float32
}

// Filter reports whether the vector with the given ID may appear in results.
type Filter func(id int64) bool

// Backend stores vectors and answers exact queries.
//
// Implementations are not safe for concurrent use. Callers serialize mutations;
// Dimension, Len, Query, Vector, WriteSnapshot and Bytes may run concurrently
// with each other.
type Backend interface {
	// Dimension returns the fixed vector length.
	Dimension() int

	// Len returns the number of stored vectors.
	Len() int

	// Insert validates every vector and then appends all of them. It returns the
	// ID of the first appended vector. On error nothing is appended.
	Insert(vectors [][]float32) (int64, error)

	// Query returns up to k results in descending score order, ties by ascending ID.
	Query(q []float32, k int, filter Filter) ([]SearchResult, error)

	// Vector returns a copy of the stored vector with the given ID.
	Vector(id int64) ([]float32, error)

	// WriteSnapshot writes all stored vectors in the snapshot format.
	WriteSnapshot(w io.Writer, c persistence.Compression) (int64, error)

	// Restore replaces the stored vectors. len(data) must be a multiple of Dimension.
	Restore(data []float32) error

	// Clear drops all vectors, keeping the dimension.
	Clear()

	// Bytes returns the memory held by vector data.
	Bytes() int64
}
