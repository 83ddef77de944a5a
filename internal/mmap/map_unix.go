//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, bool, error) {
	buf, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func unmapFile(buf []byte) error {
	return unix.Munmap(buf)
}

// advise is best effort; madvise failures do not affect correctness.
func advise(buf []byte, hint Hint) {
	advice := unix.MADV_NORMAL
	switch hint {
	case HintSequential:
		advice = unix.MADV_SEQUENTIAL
	case HintRandom:
		advice = unix.MADV_RANDOM
	}
	_ = unix.Madvise(buf, advice)
}
