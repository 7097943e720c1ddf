package bench

import (
	"math"
	"strconv"
	"time"
)

// Clock measures elapsed time. Implementations must be monotonic.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// SystemClock reads the runtime's monotonic clock.
var SystemClock Clock = systemClock{}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ComputeRate returns tokens per millisecond. A zero or negative elapsed
// time yields +Inf.
func ComputeRate(length int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return math.Inf(1)
	}
	return float64(length) / Milliseconds(elapsed)
}

// FormatRate renders a rate for the report line.
func FormatRate(rate float64) string {
	switch {
	case math.IsInf(rate, 1):
		return "inf"
	case math.IsNaN(rate):
		return "nan"
	}
	return strconv.FormatFloat(rate, 'f', 4, 64)
}
