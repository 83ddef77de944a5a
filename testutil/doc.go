// Package testutil generates deterministic vectors and computes reference
// rankings for tests and benchmarks.
//
//	rng := testutil.NewRNG(42)
//	rows := rng.Vectors(1000, 128)
//	want := testutil.ExactSearch(rows, rows[0], 10)
package testutil
