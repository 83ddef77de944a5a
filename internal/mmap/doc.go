// Package mmap gives read-only access to snapshot files through mmap(2).
//
// A Region stays valid until Close. ReadAt holds a read lock, so a concurrent
// Close waits for in-flight copies; slices returned by Bytes carry no such
// protection. Platforms without mmap read the file onto the heap instead.
package mmap
