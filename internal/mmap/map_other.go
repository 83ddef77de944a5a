//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Platforms without mmap(2) read the file onto the heap.
func mapFile(f *os.File, size int) ([]byte, bool, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, false, err
	}
	return buf, false, nil
}

func unmapFile([]byte) error { return nil }

func advise([]byte, Hint) {}
