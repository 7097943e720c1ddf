package model

import (
	"fmt"
	"sync/atomic"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

// InferenceSession holds the incremental state of one evaluation sequence.
// It is created by a Model and may only be evaluated by that model, one
// call at a time. There is no Close; it is released with its last reference.
type InferenceSession struct {
	owner  Model
	config config.SessionConfig

	nPast      int
	tokens     []tokenizer.TokenID
	lastLogits []float32
	state      any

	busy atomic.Bool
}

// NewSession is called by Model implementations. state carries the
// architecture's own per-session data such as its KV cache.
func NewSession(owner Model, cfg config.SessionConfig, state any) *InferenceSession {
	return &InferenceSession{owner: owner, config: cfg, state: state}
}

func (s *InferenceSession) Config() config.SessionConfig { return s.config }

// NPast is the number of tokens evaluated so far.
func (s *InferenceSession) NPast() int { return s.nPast }

// Tokens returns a copy of the evaluated token history.
func (s *InferenceSession) Tokens() []tokenizer.TokenID {
	return append([]tokenizer.TokenID(nil), s.tokens...)
}

// LastLogits are the logits of the most recently evaluated token, if the
// model computed them.
func (s *InferenceSession) LastLogits() []float32 { return s.lastLogits }

func (s *InferenceSession) State() any { return s.state }

// Acquire claims s for one evaluation of n tokens by m and returns the
// release func. It panics if s belongs to another model, is already being
// evaluated, or would overflow its context.
func (s *InferenceSession) Acquire(m Model, n int) (release func()) {
	if s.owner != m {
		panic(fmt.Sprintf("model: session created by %s evaluated by %s", describe(s.owner), describe(m)))
	}
	if !s.busy.CompareAndSwap(false, true) {
		panic("model: concurrent use of InferenceSession")
	}
	if s.nPast+n > s.config.ContextSize {
		s.busy.Store(false)
		panic(fmt.Sprintf("model: context overflow: %d past + %d new > %d", s.nPast, n, s.config.ContextSize))
	}
	return func() { s.busy.Store(false) }
}

// Advance records ids as evaluated. lastLogits may be nil.
func (s *InferenceSession) Advance(ids []tokenizer.TokenID, lastLogits []float32) {
	s.nPast += len(ids)
	s.tokens = append(s.tokens, ids...)
	if lastLogits != nil {
		s.lastLogits = lastLogits
	}
}

func describe(m Model) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s model %p", m.Architecture(), m)
}
