// Package persistence implements the binary snapshot format of a flat index.
//
// A snapshot is a 24-byte little-endian header, the vector body, and a
// CRC32-C trailer:
//
//	offset size field
//	0      4    magic      0x56464C54 ("VFLT")
//	4      4    version    1
//	8      4    dimension
//	12     2    compression (0 none, 1 lz4, 2 zstd)
//	14     2    reserved
//	16     8    count
//	24     ...  body
//	end-4  4    CRC32-C of the uncompressed body
//
// An uncompressed body is count*dimension float32 values, row-major, in ID
// order. A compressed body is a uint64 length followed by one compressed
// stream of those same bytes.
//
// Every structural problem found while decoding wraps [ErrCorrupt].
// Files are written atomically with [SaveToFile].
package persistence
