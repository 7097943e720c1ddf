package simd

import "math"

// Dot returns the inner product of a and b. Lengths must match.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("simd: Dot length mismatch")
	}
	return dotImpl(a, b)
}

func dotUnrolled(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for i := n; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

// Axpy computes y += alpha*x.
func Axpy(alpha float32, x, y []float32) {
	if len(x) != len(y) {
		panic("simd: Axpy length mismatch")
	}
	for i, v := range x {
		y[i] += alpha * v
	}
}

// RMSNorm writes x / rms(x) * weight into out. A nil weight means all ones.
func RMSNorm(out, x, weight []float32, eps float32) {
	var ss float64
	for _, v := range x {
		ss += float64(v) * float64(v)
	}
	scale := float32(1 / math.Sqrt(ss/float64(len(x))+float64(eps)))
	for i, v := range x {
		out[i] = v * scale
		if weight != nil {
			out[i] *= weight[i]
		}
	}
}

// MatVec computes out[r] = dot(w[r*cols:(r+1)*cols], x) for rows [lo, hi).
func MatVec(out, w, x []float32, lo, hi int) {
	cols := len(x)
	for r := lo; r < hi; r++ {
		out[r] = dotImpl(w[r*cols:(r+1)*cols], x)
	}
}
