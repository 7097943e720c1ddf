package bench

import (
	"errors"
	"fmt"
)

// State is a step of a single benchmark run. Runs only move forward.
type State int

const (
	Idle State = iota
	TokenizerReady
	SessionReady
	Evaluated
	Reported
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TokenizerReady:
		return "tokenizer-ready"
	case SessionReady:
		return "session-ready"
	case Evaluated:
		return "evaluated"
	case Reported:
		return "reported"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stage names the part of a run that failed.
type Stage string

const (
	StageTokenizer Stage = "tokenizer"
	StageTokenize  Stage = "tokenize"
	StageEvaluate  Stage = "evaluate"
)

// ErrDriverUsed is returned when Run is called on a driver that already ran.
var ErrDriverUsed = errors.New("bench: driver already ran")

// ErrContextOverflow is returned when the tokenized input does not fit the
// session context.
var ErrContextOverflow = errors.New("bench: input exceeds session context")

// StageError reports a failed run with enough context to diagnose it.
type StageError struct {
	Stage        Stage
	Architecture string
	Path         string
	Err          error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s model %q: %v", e.Stage, e.Architecture, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
