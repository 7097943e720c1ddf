package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/logger"
	"github.com/23skdu/longbow-bench/internal/ollama"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

var ErrArchitectureMismatch = errors.New("architecture mismatch")

// LoadError is returned by Load. It always names the requested
// architecture and path.
type LoadError struct {
	Architecture string
	Path         string
	Err          error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s model from %q: %v", e.Architecture, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load opens the GGUF model at path, builds its tokenizer from src and hands
// both to the architecture loader. A nil arch is detected from the file's
// general.architecture. path may be an ollama:// reference. progress may be nil.
func Load(arch *Architecture, path string, src tokenizer.Source, params config.ModelParameters, progress ProgressFunc) (Model, error) {
	requested := "auto"
	if arch != nil {
		requested = arch.Name
	}
	fail := func(err error) (Model, error) {
		return nil, &LoadError{Architecture: requested, Path: path, Err: err}
	}
	if progress == nil {
		progress = func(LoadProgress) {}
	}
	if err := params.Validate(); err != nil {
		return fail(err)
	}

	start := time.Now()
	resolved := path
	if ollama.IsReference(path) {
		p, err := ollama.ResolveModelPath(path)
		if err != nil {
			return fail(err)
		}
		resolved = p
	}

	f, err := gguf.Open(resolved, gguf.LoadOptions{PreferMmap: params.PreferMmap})
	if err != nil {
		return fail(err)
	}
	defer func() {
		_ = f.Close()
	}()

	report, err := gguf.NewMetadataAnalyzer(f).Analyze()
	if err != nil {
		return fail(err)
	}
	if arch == nil {
		a, ok := Lookup(report.Architecture)
		if !ok {
			return fail(fmt.Errorf("no loader for architecture %q", report.Architecture))
		}
		arch = a
		logger.Log.Info("Detected architecture", "architecture", arch.Name, "path", path)
	} else if !arch.matches(report.Architecture) {
		return fail(fmt.Errorf("%w: file is %q", ErrArchitectureMismatch, report.Architecture))
	}

	hp := config.Hyperparameters{
		Architecture:    arch.Name,
		EmbeddingLength: report.EmbeddingLength,
		VocabSize:       report.VocabSize,
		ContextLength:   report.ContextLength,
		BlockCount:      report.BlockCount,
		AttentionHeads:  report.AttentionHeads,
		Eps:             1e-5,
	}
	if eps, ok := f.KV[report.Architecture+".attention.layer_norm_rms_epsilon"].(float32); ok && eps > 0 {
		hp.Eps = eps
	}
	progress(LoadProgress{Phase: PhaseHyperparametersLoaded})

	if params.ContextSize < hp.ContextLength {
		hp.ContextLength = params.ContextSize
	}
	progress(LoadProgress{Phase: PhaseContextSize, ContextSize: hp.ContextLength})

	tok, err := tokenizer.Load(src, f)
	if err != nil {
		return fail(fmt.Errorf("tokenizer (%s): %w", src, err))
	}
	if hp.VocabSize == 0 {
		hp.VocabSize = tok.VocabSize()
	}

	if params.UseGPU {
		logger.Log.Warn("GPU acceleration requested but not available; using the CPU backend",
			"gpu_layers", params.GPULayers)
	}

	m, err := arch.Load(&LoadContext{
		File:            f,
		Hyperparameters: hp,
		Tokenizer:       tok,
		Params:          params,
		Progress:        progress,
	})
	if err != nil {
		return fail(err)
	}

	var bytes int64
	for _, t := range f.Tensors {
		bytes += int64(t.SizeBytes())
	}
	progress(LoadProgress{Phase: PhaseLoaded, Bytes: bytes, Tensors: len(f.Tensors)})
	logger.Log.Info("Model loaded", "architecture", arch.Name, "path", path,
		"tensors", len(f.Tensors), "bytes", bytes, "elapsed", time.Since(start))
	return m, nil
}
