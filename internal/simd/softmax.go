// Package simd holds the float32 kernels used by the CPU forward pass.
package simd

import "math"

var (
	softmaxImpl func(x []float32)
	dotImpl     func(a, b []float32) float32
)

func init() {
	softmaxImpl = softmaxScalar
	dotImpl = dotUnrolled
}

// Softmax normalizes x in place.
func Softmax(x []float32) {
	softmaxImpl(x)
}

func softmaxScalar(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}

	var sum float64
	for i := range x {
		e := math.Exp(float64(x[i] - max))
		x[i] = float32(e)
		sum += e
	}

	if sum > 0 {
		inv := float32(1 / sum)
		for i := range x {
			x[i] *= inv
		}
	}
}
