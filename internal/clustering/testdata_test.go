package clustering

// basis returns the unit vector e_i in dim dimensions.
func basis(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1

	return v
}

// nearCentroid returns n vectors close to e_0: e_0 + 0.1 e_j for j cycling over 1..10.
func nearCentroid(dim, n int) [][]float32 {
	out := make([][]float32, n)

	for i := range n {
		v := basis(dim, 0)
		v[1+i%10] = 0.1
		out[i] = v
	}

	return out
}

// scattered returns n mutually orthogonal vectors starting at dimension offset.
func scattered(dim, offset, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range n {
		out[i] = basis(dim, offset+i)
	}

	return out
}
