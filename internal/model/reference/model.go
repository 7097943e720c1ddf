// Package reference is a CPU forward pass shared by the registered model
// families. It computes a real causal transformer over GGUF weights but does
// not reproduce each family's exact layer layout.
package reference

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/logger"
	"github.com/23skdu/longbow-bench/internal/metrics"
	"github.com/23skdu/longbow-bench/internal/model"
	"github.com/23skdu/longbow-bench/internal/simd"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

// parallelThreshold is the row count below which matrix products stay on
// the calling goroutine.
const parallelThreshold = 256

type Model struct {
	name       string
	hp         config.Hyperparameters
	tok        tokenizer.Tokenizer
	w          *weights
	activation func(float32) float32
	heads      int
	headDim    int
}

var _ model.Model = (*Model)(nil)

func newModel(v variant, ctx *model.LoadContext) (*Model, error) {
	hp := ctx.Hyperparameters
	if t, ok := ctx.File.Tensor("token_embd.weight"); ok && len(t.Dimensions) == 2 {
		if hp.EmbeddingLength == 0 {
			hp.EmbeddingLength = int(t.Dimensions[0])
		}
		hp.VocabSize = int(t.Dimensions[1])
	}
	if hp.AttentionHeads == 0 {
		hp.AttentionHeads = 1
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if n := ctx.Tokenizer.VocabSize(); n > hp.VocabSize {
		return nil, fmt.Errorf("tokenizer vocabulary (%d) larger than model vocabulary (%d)", n, hp.VocabSize)
	}

	w, err := loadWeights(ctx, hp.EmbeddingLength, hp.VocabSize, hp.BlockCount)
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("Reference weights loaded", "architecture", v.name,
		"dim", hp.EmbeddingLength, "vocab", hp.VocabSize, "blocks", hp.BlockCount, "heads", hp.AttentionHeads)

	return &Model{
		name:       v.name,
		hp:         hp,
		tok:        ctx.Tokenizer,
		w:          w,
		activation: v.activation,
		heads:      hp.AttentionHeads,
		headDim:    hp.EmbeddingLength / hp.AttentionHeads,
	}, nil
}

func (m *Model) Architecture() string { return m.name }

func (m *Model) Tokenizer() tokenizer.Tokenizer { return m.tok }

func (m *Model) Hyperparameters() config.Hyperparameters { return m.hp }

// StartSession panics on an invalid configuration. The context is capped
// at the model's context length.
func (m *Model) StartSession(cfg config.SessionConfig) *model.InferenceSession {
	cfg = cfg.WithDefaults()
	if cfg.ContextSize > m.hp.ContextLength {
		cfg.ContextSize = m.hp.ContextLength
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("reference: %v", err))
	}
	return model.NewSession(m, cfg, newKVCache(cfg, len(m.w.blocks), m.hp.EmbeddingLength))
}

func (m *Model) Evaluate(s *model.InferenceSession, ids []tokenizer.TokenID, out *model.OutputRequest) {
	release := s.Acquire(m, len(ids))
	defer release()
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if id < 0 || int(id) >= m.hp.VocabSize {
			panic(fmt.Sprintf("reference: token id %d out of range (vocab %d)", id, m.hp.VocabSize))
		}
	}

	cache := s.State().(*kvCache)
	threads := s.Config().Threads
	sc := newScratch(m)

	var rows [][]float32
	var hidden []float32
	for i, id := range ids {
		hidden = m.forward(cache, sc, id, s.NPast()+i, threads)
		if out.WantsLogits() {
			rows = append(rows, m.logits(hidden, threads))
		}
	}

	if out.WantsEmbeddings() {
		recordInstability("embeddings", hidden)
		out.SetEmbeddings(hidden)
	}
	for _, row := range rows {
		recordInstability("logits", row)
	}
	out.SetLogits(rows)

	var last []float32
	if len(rows) > 0 {
		last = rows[len(rows)-1]
	}
	s.Advance(ids, last)
	metrics.RecordKVCacheStats(cache.capacityBytes(), cache.usedBytes(s.NPast()))
	metrics.RecordContextLength(s.NPast())
}

type scratch struct {
	h, q, k, v, attn, tmp, kRow, vRow, scores, up, proj []float32
}

func newScratch(m *Model) *scratch {
	dim := m.hp.EmbeddingLength
	ff := 0
	for _, b := range m.w.blocks {
		if b.ff > ff {
			ff = b.ff
		}
	}
	return &scratch{
		h: make([]float32, dim), q: make([]float32, dim), k: make([]float32, dim),
		v: make([]float32, dim), attn: make([]float32, dim), tmp: make([]float32, dim),
		kRow: make([]float32, dim), vRow: make([]float32, dim), proj: make([]float32, dim),
		up: make([]float32, ff),
	}
}

// forward runs one token at pos and returns its normalized final hidden state.
func (m *Model) forward(cache *kvCache, sc *scratch, id tokenizer.TokenID, pos, threads int) []float32 {
	dim := m.hp.EmbeddingLength
	x := make([]float32, dim)
	copy(x, m.w.tokEmbd[int(id)*dim:(int(id)+1)*dim])

	for l := range m.w.blocks {
		b := &m.w.blocks[l]

		simd.RMSNorm(sc.h, x, b.attnNorm, m.hp.Eps)
		matVec(sc.q, b.wq, sc.h, threads)
		matVec(sc.k, b.wk, sc.h, threads)
		matVec(sc.v, b.wv, sc.h, threads)
		cache.store(l, pos, sc.k, sc.v)

		m.attend(cache, sc, l, pos)
		matVec(sc.proj, b.wo, sc.attn, threads)
		simd.Axpy(1, sc.proj, x)

		simd.RMSNorm(sc.h, x, b.ffnNorm, m.hp.Eps)
		up := sc.up[:b.ff]
		matVec(up, b.ffnUp, sc.h, threads)
		for i, u := range up {
			up[i] = m.activation(u)
		}
		matVec(sc.proj, b.ffnDown, up, threads)
		simd.Axpy(1, sc.proj, x)
	}

	out := make([]float32, dim)
	simd.RMSNorm(out, x, m.w.outputNorm, m.hp.Eps)
	return out
}

// attend computes causal multi-head attention of sc.q over positions 0..pos.
func (m *Model) attend(cache *kvCache, sc *scratch, layer, pos int) {
	if cap(sc.scores) < pos+1 {
		sc.scores = make([]float32, pos+1)
	}
	scores := sc.scores[:pos+1]
	for i := range sc.attn {
		sc.attn[i] = 0
	}
	scale := float32(1 / math.Sqrt(float64(m.headDim)))

	for h := 0; h < m.heads; h++ {
		lo, hi := h*m.headDim, (h+1)*m.headDim
		for t := 0; t <= pos; t++ {
			cache.key(layer, t, sc.kRow)
			scores[t] = simd.Dot(sc.q[lo:hi], sc.kRow[lo:hi]) * scale
		}
		simd.Softmax(scores)
		for t := 0; t <= pos; t++ {
			cache.value(layer, t, sc.vRow)
			simd.Axpy(scores[t], sc.vRow[lo:hi], sc.attn[lo:hi])
		}
	}
}

func (m *Model) logits(hidden []float32, threads int) []float32 {
	row := make([]float32, m.hp.VocabSize)
	matVec(row, m.w.output, hidden, threads)
	return row
}

// matVec splits large products across threads goroutines.
func matVec(out, w, x []float32, threads int) {
	rows := len(out)
	if threads <= 1 || rows < parallelThreshold {
		simd.MatVec(out, w, x, 0, rows)
		return
	}
	var g errgroup.Group
	g.SetLimit(threads)
	chunk := (rows + threads - 1) / threads
	for lo := 0; lo < rows; lo += chunk {
		hi := min(lo+chunk, rows)
		g.Go(func() error {
			simd.MatVec(out, w, x, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

func recordInstability(name string, v []float32) {
	if a := model.AuditVector(v); !a.Finite() {
		metrics.RecordNumericalInstability(name, a.NaNs, a.Infs)
	}
}
