package bench

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-bench/internal/model"
)

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// RunMany performs runs benchmark runs against m, at most concurrency at a
// time. Every run gets its own session. Results are ordered by run index.
// The first failure cancels runs that have not started yet.
func RunMany(ctx context.Context, m model.Model, opts Options, runs, concurrency int) ([]*Result, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	opts.Out = &lockedWriter{w: opts.Out}

	results := make([]*Result, runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < runs; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d := NewDriver(m, opts)
			d.run = i
			r, err := d.Run()
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary aggregates the results of several runs.
type Summary struct {
	Runs                   int
	MinRate, MaxRate       float64
	MeanRate               float64
	MinElapsed, MaxElapsed time.Duration
	MeanElapsed            time.Duration
}

func Summarize(results []*Result) Summary {
	s := Summary{Runs: len(results)}
	if len(results) == 0 {
		return s
	}
	s.MinRate, s.MaxRate = math.Inf(1), math.Inf(-1)
	s.MinElapsed, s.MaxElapsed = time.Duration(math.MaxInt64), 0
	var rateSum float64
	var elapsedSum time.Duration
	for _, r := range results {
		s.MinRate = math.Min(s.MinRate, r.Rate)
		s.MaxRate = math.Max(s.MaxRate, r.Rate)
		rateSum += r.Rate
		s.MinElapsed = min(s.MinElapsed, r.Elapsed)
		s.MaxElapsed = max(s.MaxElapsed, r.Elapsed)
		elapsedSum += r.Elapsed
	}
	s.MeanRate = rateSum / float64(len(results))
	s.MeanElapsed = elapsedSum / time.Duration(len(results))
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("runs:%d, time elapsed min/mean/max: %.3f/%.3f/%.3fms, len/ms min/mean/max: %s/%s/%s",
		s.Runs,
		Milliseconds(s.MinElapsed), Milliseconds(s.MeanElapsed), Milliseconds(s.MaxElapsed),
		FormatRate(s.MinRate), FormatRate(s.MeanRate), FormatRate(s.MaxRate))
}
