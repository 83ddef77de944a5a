// Package flat implements [index.Backend] with exhaustive inner-product search.
//
// Vectors live in a single row-major []float32, so row i holds the vector with
// ID i. Queries score blocks of rows with [distance.DotRows] and keep the best
// k candidates in a bounded heap. Results are ordered by descending score with
// ties broken by ascending ID; NaN scores rank last.
//
// Flat does no locking of its own.
package flat
