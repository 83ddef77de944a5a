package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// chunkFloats bounds the conversion buffer and the allocation step when
// decoding, so a corrupt count cannot force one huge allocation.
const chunkFloats = 16 * 1024

// DecodeOptions control validation while decoding.
type DecodeOptions struct {
	// MaxCount rejects snapshots with more vectors. Zero means unlimited.
	MaxCount uint64

	// Size is the total snapshot size when known (file size). It lets the
	// decoder reject truncated or padded input before reading the body.
	// Zero means unknown.
	Size int64

	// Accept, when set, sees the validated header before the body is
	// allocated. A non-nil error aborts decoding and is returned unchanged.
	Accept func(h Header) error
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Encode writes a snapshot of data to w and returns the bytes written.
// len(data) must equal h.Count*h.Dimension.
func Encode(w io.Writer, h Header, data []float32) (int64, error) {
	if h.Dimension == 0 {
		return 0, fmt.Errorf("persistence: dimension must be positive")
	}
	if !h.Compression.Valid() {
		return 0, fmt.Errorf("persistence: unknown compression %d", uint16(h.Compression))
	}
	if uint64(len(data)) != h.Count*uint64(h.Dimension) {
		return 0, fmt.Errorf("persistence: %d floats do not hold %d vectors of dimension %d", len(data), h.Count, h.Dimension)
	}

	cw := &countingWriter{w: w}
	if _, err := cw.Write(h.AppendBinary(make([]byte, 0, HeaderSize))); err != nil {
		return cw.n, err
	}

	var crc uint32
	if h.Compression == CompressionNone {
		sum := &summingWriter{w: cw}
		if err := writeFloats(sum, data); err != nil {
			return cw.n, err
		}
		crc = sum.crc
	} else {
		var buf bytes.Buffer
		zw, err := newCompressor(&buf, h.Compression)
		if err != nil {
			return cw.n, err
		}
		sum := &summingWriter{w: zw}
		if err := writeFloats(sum, data); err != nil {
			_ = zw.Close()
			return cw.n, err
		}
		if err := zw.Close(); err != nil {
			return cw.n, err
		}
		crc = sum.crc

		if _, err := cw.Write(binary.LittleEndian.AppendUint64(nil, uint64(buf.Len()))); err != nil {
			return cw.n, err
		}
		if _, err := buf.WriteTo(cw); err != nil {
			return cw.n, err
		}
	}

	if _, err := cw.Write(binary.LittleEndian.AppendUint32(nil, crc)); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadHeader reads and validates only the header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, truncated(err, "header")
	}
	return ParseHeader(b[:])
}

// Decode reads a complete snapshot from r. r must end where the snapshot
// ends; any further byte is reported as ErrTrailingData.
func Decode(r io.Reader, opts DecodeOptions) (Header, []float32, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	if opts.MaxCount > 0 && h.Count > opts.MaxCount {
		return Header{}, nil, fmt.Errorf("%w: %d > %d", ErrTooManyVectors, h.Count, opts.MaxCount)
	}
	if opts.Accept != nil {
		if err := opts.Accept(h); err != nil {
			return Header{}, nil, err
		}
	}

	total, err := h.Floats()
	if err != nil {
		return Header{}, nil, err
	}

	var data []float32
	var crc *summingReader
	if h.Compression == CompressionNone {
		if opts.Size > 0 {
			if err := checkSize(opts.Size, HeaderSize+int64(total)*4+TrailerSize); err != nil {
				return Header{}, nil, err
			}
		}
		crc = &summingReader{r: r}
		if data, err = readFloats(crc, total); err != nil {
			return Header{}, nil, truncated(err, "body")
		}
	} else {
		crc, data, err = decodeCompressed(r, h, total, opts)
		if err != nil {
			return Header{}, nil, err
		}
	}

	var trailer [TrailerSize]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return Header{}, nil, truncated(err, "checksum")
	}
	if err := crc.verify(binary.LittleEndian.Uint32(trailer[:])); err != nil {
		return Header{}, nil, err
	}

	var one [1]byte
	switch _, err := io.ReadFull(r, one[:]); {
	case err == nil:
		return Header{}, nil, ErrTrailingData
	case !errors.Is(err, io.EOF):
		return Header{}, nil, err
	}

	return h, data, nil
}

func decodeCompressed(r io.Reader, h Header, total int, opts DecodeOptions) (*summingReader, []float32, error) {
	var lb [8]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, nil, truncated(err, "compressed length")
	}
	clen := binary.LittleEndian.Uint64(lb[:])
	if clen > math.MaxInt64 {
		return nil, nil, fmt.Errorf("%w: compressed length %d", ErrCorrupt, clen)
	}
	if opts.Size > 0 {
		if err := checkSize(opts.Size, HeaderSize+8+int64(clen)+TrailerSize); err != nil {
			return nil, nil, err
		}
	}

	lr := &io.LimitedReader{R: r, N: int64(clen)}
	dec, err := newDecompressor(lr, h.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s body: %w", ErrCorrupt, h.Compression, err)
	}
	defer dec.Close()

	crc := &summingReader{r: dec}
	data, err := readFloats(crc, total)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s body: %w", ErrCorrupt, h.Compression, err)
	}

	// The stream must end exactly after the declared body.
	var one [1]byte
	if n, err := io.ReadFull(dec, one[:]); n > 0 || !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %s body longer than %d vectors", ErrCorrupt, h.Compression, h.Count)
	}
	if _, err := io.Copy(io.Discard, lr); err != nil {
		return nil, nil, err
	}
	if lr.N != 0 {
		return nil, nil, truncated(io.ErrUnexpectedEOF, "compressed body")
	}
	return crc, data, nil
}

func checkSize(actual, want int64) error {
	switch {
	case actual < want:
		return fmt.Errorf("%w: size %d, want %d", ErrTruncated, actual, want)
	case actual > want:
		return fmt.Errorf("%w: size %d, want %d", ErrTrailingData, actual, want)
	}
	return nil
}

// truncated maps short reads to ErrTruncated and passes other errors through.
func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return err
}

func writeFloats(w io.Writer, data []float32) error {
	buf := make([]byte, 4*min(len(data), chunkFloats))
	for len(data) > 0 {
		n := min(len(data), chunkFloats)
		for i, f := range data[:n] {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf[:n*4]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func readFloats(r io.Reader, total int) ([]float32, error) {
	data := make([]float32, 0, min(total, chunkFloats))
	buf := make([]byte, 4*min(total, chunkFloats))
	for len(data) < total {
		n := min(total-len(data), chunkFloats)
		if _, err := io.ReadFull(r, buf[:n*4]); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
		}
	}
	return data, nil
}
