package distance

// Dot calculates the inner product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	b = b[:len(a)]

	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}

// DotRows scores q against every row of a contiguous row-major block.
// len(block) must be a multiple of len(q) and out must hold one slot per row.
func DotRows(q, block []float32, out []float32) {
	dim := len(q)
	if dim == 0 {
		return
	}

	for i := range out {
		row := block[i*dim : (i+1)*dim : (i+1)*dim]
		out[i] = Dot(q, row)
	}
}
