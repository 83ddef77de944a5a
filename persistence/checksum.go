package persistence

import (
	"fmt"
	"io"

	ihash "github.com/hupe1980/vecflat/internal/hash"
)

// summingWriter forwards to w and folds every accepted byte into a CRC32-C.
type summingWriter struct {
	w   io.Writer
	crc uint32
}

func (s *summingWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.crc = ihash.UpdateCRC32C(s.crc, p[:n])
	return n, err
}

// summingReader is the read side of summingWriter.
type summingReader struct {
	r   io.Reader
	crc uint32
}

func (s *summingReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.crc = ihash.UpdateCRC32C(s.crc, p[:n])
	return n, err
}

func (s *summingReader) verify(stored uint32) error {
	if s.crc != stored {
		return &ChecksumError{Stored: stored, Computed: s.crc}
	}
	return nil
}

// ChecksumError reports a body whose CRC32-C differs from the trailer.
// It matches ErrCorrupt.
type ChecksumError struct {
	Stored   uint32
	Computed uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("snapshot checksum 0x%08x does not match body 0x%08x", e.Stored, e.Computed)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrCorrupt }
