package simd

import (
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	testCases := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "simple",
			input:    []float32{1, 2, 3},
			expected: []float32{0.09003057, 0.24472847, 0.66524096},
		},
		{
			name:     "negative",
			input:    []float32{-1, -2, -3},
			expected: []float32{0.66524096, 0.24472847, 0.09003057},
		},
		{
			name:     "zero",
			input:    []float32{0, 0, 0},
			expected: []float32{0.33333333, 0.33333333, 0.33333333},
		},
		{
			name:     "large",
			input:    []float32{1000, 1000},
			expected: []float32{0.5, 0.5},
		},
		{
			name:     "empty",
			input:    []float32{},
			expected: []float32{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := make([]float32, len(tc.input))
			copy(input, tc.input)
			Softmax(input)
			if len(input) != len(tc.expected) {
				t.Errorf("expected length %d, got %d", len(tc.expected), len(input))
			}
			for i := range input {
				if math.Abs(float64(input[i]-tc.expected[i])) > 1e-6 {
					t.Errorf("expected %v, got %v", tc.expected, input)
					break
				}
			}
		})
	}
}
