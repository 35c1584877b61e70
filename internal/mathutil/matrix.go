package mathutil

// Vec is a float64 vector.
type Vec = []float64

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// NewMat creates a rows x cols matrix initialized to zero.
// All rows share one backing array.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// NewVec creates a vector of length n initialized to zero.
func NewVec(n int) Vec {
	return make(Vec, n)
}

// ScaleVec stores alpha*src in dst.
func ScaleVec(dst Vec, alpha float64, src Vec) {
	for i := range dst {
		dst[i] = alpha * src[i]
	}
}

// ArgMin returns the index of the smallest element; the first one wins ties.
// It returns -1 for an empty vector.
func ArgMin(v Vec) int {
	best := -1
	for i, x := range v {
		if best < 0 || x < v[best] {
			best = i
		}
	}
	return best
}
