package vecflat

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecflat/index"
	"github.com/hupe1980/vecflat/persistence"
)

var (
	// ErrInvalidK is returned when a search asks for a negative number of results.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrNotFound is returned when an ID does not name a stored vector.
	ErrNotFound = errors.New("vector not found")

	// ErrClosed is returned by every operation on a closed index.
	ErrClosed = errors.New("index is closed")

	// ErrMemoryLimit is returned when vector data would exceed the memory
	// limit of the configured resource controller.
	ErrMemoryLimit = errors.New("memory limit exceeded")

	// ErrPoisoned is wrapped by ErrConcurrency.
	ErrPoisoned = errors.New("index lock poisoned")
)

// ErrConstruction indicates invalid parameters when creating an index.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrConstruction struct {
	Dimension int
	cause     error
}

func (e *ErrConstruction) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid index parameters (dimension %d): %v", e.Dimension, e.cause)
	}
	return fmt.Sprintf("invalid index parameters: dimension must be in [1, 4294967295], got %d", e.Dimension)
}

func (e *ErrConstruction) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// Index is the position of the offending vector in an AddVectors batch or a
// SearchBatch query list, and -1 for a single query.
type ErrDimensionMismatch struct {
	Index    int
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch at vector %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrConcurrency is returned once the index lock is poisoned by a panic.
// It wraps ErrPoisoned.
type ErrConcurrency struct {
	Op string
}

func (e *ErrConcurrency) Error() string {
	return fmt.Sprintf("%s: index lock poisoned by an earlier panic", e.Op)
}

func (e *ErrConcurrency) Unwrap() error { return ErrPoisoned }

// ErrIO reports a filesystem or blob store failure.
type ErrIO struct {
	Op   string
	Path string
	Err  error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ErrIO) Unwrap() error { return e.Err }

// ErrCorruptData reports a snapshot that failed structural validation.
// It unwraps to persistence.ErrCorrupt.
type ErrCorruptData struct {
	Path   string
	Reason string
	cause  error
}

func (e *ErrCorruptData) Error() string {
	return fmt.Sprintf("corrupt snapshot %s: %s", e.Path, e.Reason)
}

func (e *ErrCorruptData) Unwrap() error { return e.cause }

// translateError maps errors from the inner packages to the public taxonomy.
// path is empty for operations that do not touch storage.
func translateError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	// Already public.
	var (
		cc *ErrConcurrency
		ce *ErrCorruptData
		ei *ErrIO
		ed *ErrDimensionMismatch
	)
	if errors.Is(err, ErrMemoryLimit) || errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &cc) || errors.As(err, &ce) || errors.As(err, &ei) || errors.As(err, &ed) {
		return err
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Index: dm.Index, Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, index.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, persistence.ErrCorrupt) {
		return &ErrCorruptData{Path: path, Reason: err.Error(), cause: err}
	}

	if path != "" {
		return &ErrIO{Op: op, Path: path, Err: err}
	}
	return err
}
