package reference

import (
	"fmt"

	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/model"
)

type block struct {
	attnNorm []float32
	wq       []float32 // dim x dim
	wk       []float32
	wv       []float32
	wo       []float32
	ffnNorm  []float32
	ffnUp    []float32 // ff x dim
	ffnDown  []float32 // dim x ff
	ff       int
}

type weights struct {
	tokEmbd    []float32 // vocab x dim
	output     []float32 // vocab x dim, shares tokEmbd when untied weights are absent
	outputNorm []float32
	blocks     []block
}

// loader decodes tensors and reports each one.
type loader struct {
	f        *gguf.GGUFFile
	progress model.ProgressFunc
	total    int
	n        int
}

func (l *loader) tensor(name string, rows, cols int) ([]float32, error) {
	t, ok := l.f.Tensor(name)
	if !ok {
		return nil, fmt.Errorf("missing tensor %s", name)
	}
	if got := t.NumElements(); got != uint64(rows*cols) {
		return nil, fmt.Errorf("tensor %s has %d elements, want %dx%d", name, got, rows, cols)
	}
	if len(t.Dimensions) > 0 && cols > 1 && t.Dimensions[0] != uint64(cols) {
		return nil, fmt.Errorf("tensor %s row width %d, want %d", name, t.Dimensions[0], cols)
	}
	data, err := gguf.Decode(t)
	if err != nil {
		return nil, err
	}
	l.n++
	l.progress(model.LoadProgress{Phase: model.PhaseTensorLoaded, TensorName: name, Current: l.n, Total: l.total})
	return data, nil
}

func (l *loader) optional(name string, rows, cols int) ([]float32, error) {
	if _, ok := l.f.Tensor(name); !ok {
		return nil, nil
	}
	return l.tensor(name, rows, cols)
}

func loadWeights(ctx *model.LoadContext, dim, vocab, layers int) (*weights, error) {
	f := ctx.File
	required := []string{"token_embd.weight"}
	for i := 0; i < layers; i++ {
		for _, n := range []string{"attn_q", "attn_k", "attn_v", "attn_output", "ffn_up", "ffn_down"} {
			required = append(required, fmt.Sprintf("blk.%d.%s.weight", i, n))
		}
	}
	if missing := gguf.NewMetadataAnalyzer(f).FindMissingTensors(required); len(missing) > 0 {
		return nil, fmt.Errorf("missing tensors: %v", missing)
	}

	l := &loader{f: f, progress: ctx.Progress, total: len(f.Tensors)}
	w := &weights{blocks: make([]block, layers)}
	var err error

	if w.tokEmbd, err = l.tensor("token_embd.weight", vocab, dim); err != nil {
		return nil, err
	}
	if w.outputNorm, err = l.optional("output_norm.weight", 1, dim); err != nil {
		return nil, err
	}
	if w.output, err = l.optional("output.weight", vocab, dim); err != nil {
		return nil, err
	}
	if w.output == nil {
		w.output = w.tokEmbd
	}

	for i := range w.blocks {
		b := &w.blocks[i]
		name := func(s string) string { return fmt.Sprintf("blk.%d.%s.weight", i, s) }

		up, _ := f.Tensor(name("ffn_up"))
		if up.NumElements()%uint64(dim) != 0 {
			return nil, fmt.Errorf("%s: %d elements not a multiple of %d", up.Name, up.NumElements(), dim)
		}
		b.ff = int(up.NumElements() / uint64(dim))

		for _, m := range []struct {
			dst        *[]float32
			name       string
			rows, cols int
		}{
			{&b.wq, "attn_q", dim, dim},
			{&b.wk, "attn_k", dim, dim},
			{&b.wv, "attn_v", dim, dim},
			{&b.wo, "attn_output", dim, dim},
			{&b.ffnUp, "ffn_up", b.ff, dim},
			{&b.ffnDown, "ffn_down", dim, b.ff},
		} {
			if *m.dst, err = l.tensor(name(m.name), m.rows, m.cols); err != nil {
				return nil, err
			}
		}
		if b.attnNorm, err = l.optional(name("attn_norm"), 1, dim); err != nil {
			return nil, err
		}
		if b.ffnNorm, err = l.optional(name("ffn_norm"), 1, dim); err != nil {
			return nil, err
		}
	}
	return w, nil
}
