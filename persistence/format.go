package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// Magic identifies snapshot files (ASCII "VFLT" when read big-endian).
	Magic uint32 = 0x56464C54
	// Version is the current snapshot format version.
	Version uint32 = 1

	// HeaderSize is the size of the fixed header in bytes.
	HeaderSize = 24
	// TrailerSize is the size of the checksum trailer in bytes.
	TrailerSize = 4
)

// ErrCorrupt is wrapped by every structural decoding failure.
var ErrCorrupt = errors.New("corrupt snapshot")

var (
	ErrInvalidMagic       = fmt.Errorf("%w: invalid magic number", ErrCorrupt)
	ErrInvalidVersion     = fmt.Errorf("%w: unsupported version", ErrCorrupt)
	ErrInvalidDimension   = fmt.Errorf("%w: invalid dimension", ErrCorrupt)
	ErrInvalidCompression = fmt.Errorf("%w: unknown compression", ErrCorrupt)
	ErrTruncated          = fmt.Errorf("%w: unexpected end of data", ErrCorrupt)
	ErrTrailingData       = fmt.Errorf("%w: trailing data", ErrCorrupt)
	ErrTooManyVectors     = fmt.Errorf("%w: vector count exceeds limit", ErrCorrupt)
)

// Compression selects the codec of the snapshot body.
type Compression uint16

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint16(c))
	}
}

// Valid reports whether c is a known codec.
func (c Compression) Valid() bool {
	return c <= CompressionZstd
}

// ParseCompression parses "none", "lz4" or "zstd" (case-insensitive; empty means none).
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// Header is the fixed-size snapshot header.
type Header struct {
	Version     uint32
	Dimension   uint32
	Compression Compression
	Count       uint64
}

// AppendBinary appends the encoded header to b. Magic and Version are always
// written as the current values.
func (h Header) AppendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, Magic)
	b = binary.LittleEndian.AppendUint32(b, Version)
	b = binary.LittleEndian.AppendUint32(b, h.Dimension)
	b = binary.LittleEndian.AppendUint16(b, uint16(h.Compression))
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint64(b, h.Count)
	return b
}

// ParseHeader decodes and validates a header from the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}

	if magic := binary.LittleEndian.Uint32(b[0:]); magic != Magic {
		return Header{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}

	h := Header{
		Version:     binary.LittleEndian.Uint32(b[4:]),
		Dimension:   binary.LittleEndian.Uint32(b[8:]),
		Compression: Compression(binary.LittleEndian.Uint16(b[12:])),
		Count:       binary.LittleEndian.Uint64(b[16:]),
	}

	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if h.Dimension == 0 {
		return Header{}, ErrInvalidDimension
	}
	if !h.Compression.Valid() {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidCompression, uint16(h.Compression))
	}
	if reserved := binary.LittleEndian.Uint16(b[14:]); reserved != 0 {
		return Header{}, fmt.Errorf("%w: reserved field is 0x%04x", ErrCorrupt, reserved)
	}
	return h, nil
}

// Floats returns count*dimension, failing when the body could not be addressed.
func (h Header) Floats() (int, error) {
	if h.Dimension == 0 {
		return 0, ErrInvalidDimension
	}
	if h.Count > uint64(math.MaxInt/4)/uint64(h.Dimension) {
		return 0, fmt.Errorf("%w: %d vectors of dimension %d overflow the address space", ErrCorrupt, h.Count, h.Dimension)
	}
	return int(h.Count) * int(h.Dimension), nil
}

// BodySize returns the size of an uncompressed body in bytes.
func (h Header) BodySize() (int64, error) {
	n, err := h.Floats()
	if err != nil {
		return 0, err
	}
	return int64(n) * 4, nil
}
