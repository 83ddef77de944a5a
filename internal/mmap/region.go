package mmap

import (
	"errors"
	"io"
	"os"
	"sync"
)

// Hint tells the kernel how a region is about to be read.
type Hint uint8

const (
	// HintNone leaves the kernel default in place.
	HintNone Hint = iota
	// HintSequential suits one front-to-back decode pass.
	HintSequential
	// HintRandom suits ranged reads of a stored blob.
	HintRandom
)

var (
	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("mmap: region closed")
	// ErrTooLarge is returned when the file does not fit the address space.
	ErrTooLarge = errors.New("mmap: file too large to map")
)

// Region is a read-only view of a whole file.
type Region struct {
	mu     sync.RWMutex
	buf    []byte
	closed bool
	mapped bool
}

// Open maps the file at path. An empty file yields an empty region.
func Open(path string, hint Hint) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Region{}, nil
	}
	if int64(int(size)) != size {
		return nil, ErrTooLarge
	}

	buf, mapped, err := mapFile(f, int(size))
	if err != nil {
		return nil, err
	}
	if hint != HintNone {
		advise(buf, hint)
	}
	return &Region{buf: buf, mapped: mapped}, nil
}

// Bytes returns the mapped file. The slice must not be used after Close.
func (r *Region) Bytes() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.buf, nil
}

// Len returns the file size in bytes.
func (r *Region) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}

// ReadAt implements io.ReaderAt. It blocks Close while copying.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, os.ErrInvalid
	}
	if off >= int64(len(r.buf)) {
		return 0, io.EOF
	}
	n := copy(p, r.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the mapping. Later calls are no-ops.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	buf := r.buf
	r.buf = nil
	if r.mapped && len(buf) > 0 {
		return unmapFile(buf)
	}
	return nil
}
