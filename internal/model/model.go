// Package model defines what the benchmark needs from a loaded model: a
// tokenizer, per-run inference sessions and a single evaluation entry point.
package model

import (
	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

// Model is read-only after loading and safe to share between goroutines.
// Sessions are not: each concurrent caller needs its own.
type Model interface {
	// StartSession creates a session bound to this model. Zero fields of
	// cfg take their defaults.
	StartSession(cfg config.SessionConfig) *InferenceSession

	// Evaluate feeds ids through the model, advancing s by len(ids) and
	// filling the slots of out that are present. It does not fail: foreign
	// sessions, concurrent use, invalid ids and context overflow panic.
	Evaluate(s *InferenceSession, ids []tokenizer.TokenID, out *OutputRequest)

	Tokenizer() tokenizer.Tokenizer

	// Architecture is the registry name the model was loaded as.
	Architecture() string
}

// OutputRequest selects the outputs Evaluate computes. A nil slot is not
// computed and stays nil; a non-nil slot, even pointing at an empty slice,
// is overwritten with the result.
type OutputRequest struct {
	// AllLogits receives one vocabulary-sized row per evaluated token.
	AllLogits *[][]float32
	// Embeddings receives the final hidden state of the last token.
	Embeddings *[]float32
}

// EmbeddingsRequest asks for embeddings only.
func EmbeddingsRequest() *OutputRequest {
	return &OutputRequest{Embeddings: new([]float32)}
}

func (r *OutputRequest) WantsLogits() bool     { return r != nil && r.AllLogits != nil }
func (r *OutputRequest) WantsEmbeddings() bool { return r != nil && r.Embeddings != nil }

// SetLogits stores rows if the logits slot is present.
func (r *OutputRequest) SetLogits(rows [][]float32) {
	if r.WantsLogits() {
		*r.AllLogits = rows
	}
}

// SetEmbeddings stores v if the embeddings slot is present.
func (r *OutputRequest) SetEmbeddings(v []float32) {
	if r.WantsEmbeddings() {
		*r.Embeddings = v
	}
}
