package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/23skdu/longbow-bench/internal/bench"
	"github.com/23skdu/longbow-bench/internal/export"
	"github.com/23skdu/longbow-bench/internal/logger"
	"github.com/23skdu/longbow-bench/internal/metrics"
	"github.com/23skdu/longbow-bench/internal/model"
	"github.com/23skdu/longbow-bench/internal/simd"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

func run(ctx context.Context, out io.Writer, s Settings, archName, path string) error {
	// Source conflicts are rejected before anything is loaded.
	src, err := tokenizer.SourceFromFlags(s.TokenizerPath, s.TokenizerRepository)
	if err != nil {
		return err
	}
	arch, err := model.ParseArchitecture(archName)
	if err != nil {
		return err
	}
	query, err := bench.LoadQuery(s.QueryFile, s.Bench.MaxQueryBytes)
	if err != nil {
		return err
	}

	host := simd.Host()
	fmt.Fprintf(out, "host: %s, threads: %d\n", host, s.Session.Threads)

	var loaded model.LoadProgress
	progress := model.StdoutProgress(out)
	start := time.Now()
	m, err := model.Load(arch, path, src, s.Model, func(p model.LoadProgress) {
		if p.Phase == model.PhaseLoaded {
			loaded = p
		}
		progress(p)
	})
	if err != nil {
		metrics.RecordFailure("load")
		return err
	}
	loadElapsed := time.Since(start)
	metrics.RecordModelLoad(m.Architecture(), loadElapsed, loaded.Tensors, loaded.Bytes)
	fmt.Fprintf(out, "model load time: %.3fms\n", bench.Milliseconds(loadElapsed))

	results, err := bench.RunMany(ctx, m, bench.Options{
		Text:       query,
		PrependBOS: s.Bench.PrependBOS,
		Session:    s.Session,
		Path:       path,
		Out:        out,
	}, s.Bench.Runs, s.Bench.Concurrency)
	if err != nil {
		return err
	}
	if len(results) > 1 {
		fmt.Fprintln(out, bench.Summarize(results))
	}

	batch := &export.Batch{Architecture: m.Architecture(), ModelPath: path, Results: results}
	if err := exportBatch(ctx, s, batch); err != nil {
		return err
	}

	if s.MetricsFile != "" {
		if err := metrics.WriteTextfile(s.MetricsFile); err != nil {
			return err
		}
		logger.Log.Info("Wrote metrics", "path", s.MetricsFile)
	}
	return nil
}

func exportBatch(ctx context.Context, s Settings, b *export.Batch) (err error) {
	var exporters []export.Exporter
	if s.ArrowOut != "" {
		exporters = append(exporters, export.NewFileExporter(s.ArrowOut))
	}
	if s.FlightAddr != "" {
		fe, err := export.DialFlight(s.FlightAddr)
		if err != nil {
			return err
		}
		exporters = append(exporters, fe)
	}
	if len(exporters) == 0 {
		return nil
	}

	e := export.Multi(exporters...)
	defer func() {
		if cerr := e.Close(); err == nil {
			err = cerr
		}
	}()
	return e.Export(ctx, b)
}
