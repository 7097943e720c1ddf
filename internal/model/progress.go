package model

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

type Phase int

const (
	PhaseHyperparametersLoaded Phase = iota
	PhaseContextSize
	PhaseTensorLoaded
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseHyperparametersLoaded:
		return "hyperparameters"
	case PhaseContextSize:
		return "context"
	case PhaseTensorLoaded:
		return "tensor"
	case PhaseLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// LoadProgress is one loading event. Which fields are set depends on Phase.
type LoadProgress struct {
	Phase Phase

	ContextSize int // PhaseContextSize

	TensorName string // PhaseTensorLoaded
	Current    int    // 1-based
	Total      int

	Bytes   int64 // PhaseLoaded
	Tensors int
}

// ProgressFunc observes model loading.
type ProgressFunc func(LoadProgress)

// StdoutProgress prints loading events to w.
func StdoutProgress(w io.Writer) ProgressFunc {
	label := color.New(color.FgCyan, color.Bold).SprintFunc()
	done := color.New(color.FgGreen, color.Bold).SprintFunc()

	return func(p LoadProgress) {
		switch p.Phase {
		case PhaseHyperparametersLoaded:
			fmt.Fprintf(w, "%s hyperparameters\n", label("Loaded"))
		case PhaseContextSize:
			fmt.Fprintf(w, "%s %d tokens\n", label("Context size:"), p.ContextSize)
		case PhaseTensorLoaded:
			fmt.Fprintf(w, "%s tensor %d/%d %s\n", label("Loaded"), p.Current, p.Total, p.TensorName)
		case PhaseLoaded:
			fmt.Fprintf(w, "%s %d tensors (%.2f MB)\n", done("Loaded model:"), p.Tensors, float64(p.Bytes)/(1<<20))
		}
	}
}
