package model

import (
	"math"
	"testing"
)

func TestAuditVector(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name string
		in   []float32
		want VectorAudit
	}{
		{"empty", nil, VectorAudit{}},
		{"spread", []float32{-1, 0, 1, 2}, VectorAudit{Len: 4, Min: -1, Max: 2, Mean: 0.5, RMS: float32(math.Sqrt(1.5))}},
		{"constant", []float32{3, 3, 3}, VectorAudit{Len: 3, Min: 3, Max: 3, Mean: 3, RMS: 3, Flat: true}},
		{"single", []float32{2}, VectorAudit{Len: 1, Min: 2, Max: 2, Mean: 2, RMS: 2}},
		{"non-finite skipped", []float32{nan, inf, 1, 3}, VectorAudit{Len: 4, Min: 1, Max: 3, Mean: 2, RMS: float32(math.Sqrt(5)), NaNs: 1, Infs: 1}},
		{"all nan", []float32{nan, nan}, VectorAudit{Len: 2, NaNs: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuditVector(tt.in); got != tt.want {
				t.Errorf("AuditVector(%v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}

	if AuditVector([]float32{nan}).Finite() || !AuditVector([]float32{1}).Finite() {
		t.Error("Finite mismatch")
	}
}
