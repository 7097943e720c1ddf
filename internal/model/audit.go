package model

import "math"

// VectorAudit summarizes the value range of an embedding or logit row.
type VectorAudit struct {
	Len  int
	Min  float32
	Max  float32
	Mean float32
	RMS  float32
	NaNs int
	Infs int
	// Flat is set when every finite value is (nearly) the same.
	Flat bool
}

// Finite reports whether v held no NaN or Inf values.
func (a VectorAudit) Finite() bool { return a.NaNs == 0 && a.Infs == 0 }

// AuditVector inspects v for non-finite values and a degenerate spread.
// Min, Max, Mean and RMS cover the finite values only.
func AuditVector(v []float32) VectorAudit {
	a := VectorAudit{Len: len(v)}
	if len(v) == 0 {
		return a
	}

	var sum, sumSq float64
	var n int
	a.Min, a.Max = math.MaxFloat32, -math.MaxFloat32
	for _, x := range v {
		switch {
		case math.IsNaN(float64(x)):
			a.NaNs++
			continue
		case math.IsInf(float64(x), 0):
			a.Infs++
			continue
		}
		a.Min = min(a.Min, x)
		a.Max = max(a.Max, x)
		sum += float64(x)
		sumSq += float64(x) * float64(x)
		n++
	}
	if n == 0 {
		a.Min, a.Max = 0, 0
		return a
	}

	mean := sum / float64(n)
	a.Mean = float32(mean)
	a.RMS = float32(math.Sqrt(sumSq / float64(n)))
	// For a constant c, RMS = |c| and the variance vanishes.
	variance := sumSq/float64(n) - mean*mean
	a.Flat = n > 1 && variance < 1e-12*max(1, mean*mean)
	return a
}
