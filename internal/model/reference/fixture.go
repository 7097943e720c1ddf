package reference

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/23skdu/longbow-bench/internal/gguf"
)

// FixtureOptions shapes a small synthetic model. Zero fields take the
// defaults of DefaultFixture.
type FixtureOptions struct {
	Architecture  string
	Words         []string
	Dim           int
	Heads         int
	Blocks        int
	FeedForward   int
	ContextLength int
	Seed          int64
	F16           bool
}

func DefaultFixture() FixtureOptions {
	return FixtureOptions{
		Architecture: "llama",
		Words: strings.Fields(`the quick brown fox jumps over lazy dog func return
			err nil if for range package import model session token`),
		Dim:           16,
		Heads:         2,
		Blocks:        1,
		FeedForward:   32,
		ContextLength: 512,
		Seed:          1,
	}
}

// FixtureVocab is the SentencePiece vocabulary written for opts: control
// tokens, "▁"-prefixed words, then all 256 byte pieces so any text
// tokenizes.
func FixtureVocab(opts FixtureOptions) []string {
	vocab := []string{"<unk>", "<s>", "</s>", "▁"}
	for _, w := range opts.Words {
		vocab = append(vocab, "▁"+w, w)
	}
	for b := 0; b < 256; b++ {
		vocab = append(vocab, fmt.Sprintf("<0x%02X>", b))
	}
	return vocab
}

// WriteFixture writes a runnable GGUF model with deterministic random
// weights to path.
func WriteFixture(path string, opts FixtureOptions) error {
	d := DefaultFixture()
	if opts.Architecture == "" {
		opts.Architecture = d.Architecture
	}
	if opts.Words == nil {
		opts.Words = d.Words
	}
	opts.Dim = orDefault(opts.Dim, d.Dim)
	opts.Heads = orDefault(opts.Heads, d.Heads)
	opts.Blocks = orDefault(opts.Blocks, d.Blocks)
	opts.FeedForward = orDefault(opts.FeedForward, d.FeedForward)
	opts.ContextLength = orDefault(opts.ContextLength, d.ContextLength)
	if opts.Seed == 0 {
		opts.Seed = d.Seed
	}

	vocab := FixtureVocab(opts)
	arch := opts.Architecture
	rng := rand.New(rand.NewSource(opts.Seed))
	random := func(n int, scale float32) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = (rng.Float32()*2 - 1) * scale
		}
		return out
	}
	ones := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = 1
		}
		return out
	}

	w := gguf.NewWriter().
		SetString(gguf.KeyArchitecture, arch).
		SetString(gguf.KeyName, "fixture-"+arch).
		SetUint32(arch+".context_length", uint32(opts.ContextLength)).
		SetUint32(arch+".embedding_length", uint32(opts.Dim)).
		SetUint32(arch+".block_count", uint32(opts.Blocks)).
		SetUint32(arch+".attention.head_count", uint32(opts.Heads)).
		SetFloat32(arch+".attention.layer_norm_rms_epsilon", 1e-5).
		SetString(gguf.KeyTokenizerType, "llama").
		SetStrings(gguf.KeyTokens, vocab).
		SetUint32(gguf.KeyBOSID, 1).
		SetUint32(gguf.KeyEOSID, 2).
		SetUint32(gguf.KeyUnknownID, 0)

	add := w.AddTensorF32
	if opts.F16 {
		add = w.AddTensorF16
	}
	dim, ff := uint64(opts.Dim), uint64(opts.FeedForward)
	add("token_embd.weight", []uint64{dim, uint64(len(vocab))}, random(opts.Dim*len(vocab), 1))
	add("output_norm.weight", []uint64{dim}, ones(opts.Dim))
	for i := 0; i < opts.Blocks; i++ {
		name := func(s string) string { return fmt.Sprintf("blk.%d.%s.weight", i, s) }
		scale := float32(1 / float64(opts.Dim))
		add(name("attn_norm"), []uint64{dim}, ones(opts.Dim))
		add(name("attn_q"), []uint64{dim, dim}, random(opts.Dim*opts.Dim, 4*scale))
		add(name("attn_k"), []uint64{dim, dim}, random(opts.Dim*opts.Dim, 4*scale))
		add(name("attn_v"), []uint64{dim, dim}, random(opts.Dim*opts.Dim, 4*scale))
		add(name("attn_output"), []uint64{dim, dim}, random(opts.Dim*opts.Dim, scale))
		add(name("ffn_norm"), []uint64{dim}, ones(opts.Dim))
		add(name("ffn_up"), []uint64{dim, ff}, random(opts.Dim*opts.FeedForward, scale))
		add(name("ffn_down"), []uint64{ff, dim}, random(opts.Dim*opts.FeedForward, scale))
	}
	return w.WriteFile(path)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
