package persistence

import (
	"bytes"

	"github.com/hupe1980/vecflat/internal/mmap"
)

// LoadMapped decodes the snapshot at path through a read-only memory mapping.
// Vectors are copied out before the mapping is released.
func LoadMapped(path string, opts DecodeOptions) (Header, []float32, error) {
	r, err := mmap.Open(path, mmap.HintSequential)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()

	data, err := r.Bytes()
	if err != nil {
		return Header{}, nil, err
	}
	opts.Size = int64(len(data))
	return Decode(bytes.NewReader(data), opts)
}
