package simd

import (
	"math"
	"testing"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"empty", nil, nil, 0},
		{"short", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"unrolled", []float32{1, 1, 1, 1, 1, 1, 1}, []float32{1, 2, 3, 4, 5, 6, 7}, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dot(tt.a, tt.b); got != tt.want {
				t.Errorf("Dot = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDotLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Dot([]float32{1}, []float32{1, 2})
}

func TestAxpy(t *testing.T) {
	y := []float32{1, 1, 1}
	Axpy(2, []float32{1, 2, 3}, y)
	want := []float32{3, 5, 7}
	for i := range y {
		if y[i] != want[i] {
			t.Fatalf("Axpy = %v, want %v", y, want)
		}
	}
}

func TestRMSNorm(t *testing.T) {
	x := []float32{3, 4}
	out := make([]float32, 2)
	RMSNorm(out, x, nil, 0)
	// rms = sqrt((9+16)/2)
	rms := math.Sqrt(12.5)
	for i, v := range x {
		if math.Abs(float64(out[i])-float64(v)/rms) > 1e-6 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], float64(v)/rms)
		}
	}

	RMSNorm(out, x, []float32{2, 0}, 0)
	if out[1] != 0 || math.Abs(float64(out[0])-2*3/rms) > 1e-6 {
		t.Errorf("weighted RMSNorm = %v", out)
	}
}

func TestMatVec(t *testing.T) {
	w := []float32{
		1, 0,
		0, 1,
		1, 1,
	}
	out := make([]float32, 3)
	MatVec(out, w, []float32{2, 3}, 0, 2)
	MatVec(out, w, []float32{2, 3}, 2, 3)
	want := []float32{2, 3, 5}
	for i := range out {
		if out[i] != want[i] {
			t.Fatalf("MatVec = %v, want %v", out, want)
		}
	}
}

func TestHost(t *testing.T) {
	h := Host()
	if h.Threads <= 0 {
		t.Errorf("Threads = %d", h.Threads)
	}
	if h.Brand == "" || h.GOARCH == "" {
		t.Errorf("incomplete host info: %+v", h)
	}
	if h.String() == "" {
		t.Error("empty String()")
	}
}
