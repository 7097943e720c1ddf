package bench

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/logger"
	"github.com/23skdu/longbow-bench/internal/metrics"
	"github.com/23skdu/longbow-bench/internal/model"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

// Options configures a run.
type Options struct {
	Text       string
	PrependBOS bool
	Session    config.SessionConfig
	// Path is the model path, used in diagnostics only.
	Path  string
	Clock Clock
	Out   io.Writer
}

// Result is the outcome of one run.
type Result struct {
	Run        int
	IDs        []tokenizer.TokenID
	Length     int
	Elapsed    time.Duration // tokenization through evaluation
	Evaluate   time.Duration // evaluation alone
	Rate       float64       // tokens per millisecond
	Embeddings []float32
}

// Driver performs one benchmark run against a loaded model.
type Driver struct {
	model model.Model
	opts  Options
	run   int
	state State
}

func NewDriver(m model.Model, opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Driver{model: m, opts: opts}
}

func (d *Driver) State() State { return d.state }

func (d *Driver) fail(stage Stage, err error) error {
	metrics.RecordFailure(string(stage))
	return &StageError{
		Stage:        stage,
		Architecture: d.model.Architecture(),
		Path:         d.opts.Path,
		Err:          err,
	}
}

// Run tokenizes the query, evaluates it in a fresh session and reports the
// throughput. The clock covers tokenization and evaluation; session setup
// happens before it starts.
func (d *Driver) Run() (*Result, error) {
	if d.state != Idle {
		return nil, ErrDriverUsed
	}
	log := logger.Log.With("run", d.run)

	tok := d.model.Tokenizer()
	if tok == nil {
		return nil, d.fail(StageTokenizer, errors.New("model has no tokenizer"))
	}
	d.state = TokenizerReady

	session := d.model.StartSession(d.opts.Session)
	out := model.EmbeddingsRequest()
	d.state = SessionReady

	clock := d.opts.Clock
	start := clock.Now()
	tokens, err := tok.Tokenize(d.opts.Text, d.opts.PrependBOS)
	if err != nil {
		return nil, d.fail(StageTokenize, err)
	}
	ids := tokenizer.IDs(tokens)
	metrics.RecordTokenizerEncode(len(ids), clock.Since(start))
	fmt.Fprintf(d.opts.Out, "input length: %d\n", len(ids))

	if cfg := session.Config(); session.NPast()+len(ids) > cfg.ContextSize {
		return nil, d.fail(StageEvaluate, fmt.Errorf("%w: %d tokens exceed context size %d",
			ErrContextOverflow, session.NPast()+len(ids), cfg.ContextSize))
	}

	evalStart := clock.Now()
	d.model.Evaluate(session, ids, out)
	evalElapsed := clock.Since(evalStart)
	elapsed := clock.Since(start)
	d.state = Evaluated

	if len(ids) > 0 && len(*out.Embeddings) == 0 {
		return nil, d.fail(StageEvaluate, errors.New("model produced no embeddings"))
	}

	rate := ComputeRate(len(ids), elapsed)
	fmt.Fprintf(d.opts.Out, "input len:%d, time elapsed: %.3fms, len/ms: %s\n",
		len(ids), Milliseconds(elapsed), FormatRate(rate))
	metrics.RecordRun(d.model.Architecture(), len(ids), elapsed, evalElapsed, rate)
	d.state = Reported

	if a := model.AuditVector(*out.Embeddings); !a.Finite() || a.Flat {
		log.Warn("Degenerate embedding", "nan", a.NaNs, "inf", a.Infs, "flat", a.Flat)
	} else {
		log.Debug("Run complete", "tokens", len(ids), "elapsed", elapsed, "evaluate", evalElapsed,
			"embedding_min", a.Min, "embedding_max", a.Max, "embedding_rms", a.RMS)
	}
	return &Result{
		Run:        d.run,
		IDs:        ids,
		Length:     len(ids),
		Elapsed:    elapsed,
		Evaluate:   evalElapsed,
		Rate:       rate,
		Embeddings: *out.Embeddings,
	}, nil
}
