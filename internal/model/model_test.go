package model

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

type stubModel struct {
	tok tokenizer.Tokenizer
}

func (m *stubModel) StartSession(cfg config.SessionConfig) *InferenceSession {
	return NewSession(m, cfg.WithDefaults(), nil)
}

func (m *stubModel) Evaluate(s *InferenceSession, ids []tokenizer.TokenID, out *OutputRequest) {
	release := s.Acquire(m, len(ids))
	defer release()
	if len(ids) == 0 {
		return
	}
	out.SetEmbeddings([]float32{0.1, 0.2, 0.3})
	rows := make([][]float32, len(ids))
	for i := range rows {
		rows[i] = []float32{float32(ids[i])}
	}
	out.SetLogits(rows)
	s.Advance(ids, rows[len(rows)-1])
}

func (m *stubModel) Tokenizer() tokenizer.Tokenizer { return m.tok }
func (m *stubModel) Architecture() string           { return "stub" }

func TestOutputRequestSlots(t *testing.T) {
	r := &OutputRequest{}
	r.SetEmbeddings([]float32{1})
	r.SetLogits([][]float32{{1}})
	if r.Embeddings != nil || r.AllLogits != nil {
		t.Error("absent slots were populated")
	}

	r = EmbeddingsRequest()
	if !r.WantsEmbeddings() || r.WantsLogits() {
		t.Errorf("EmbeddingsRequest wants = %v/%v", r.WantsEmbeddings(), r.WantsLogits())
	}
	if len(*r.Embeddings) != 0 {
		t.Error("fresh embeddings slot should be empty")
	}
	r.SetEmbeddings([]float32{1, 2})
	if len(*r.Embeddings) != 2 {
		t.Errorf("embeddings = %v", *r.Embeddings)
	}

	var nilReq *OutputRequest
	if nilReq.WantsEmbeddings() || nilReq.WantsLogits() {
		t.Error("nil request should want nothing")
	}
}

func TestSessionAdvance(t *testing.T) {
	m := &stubModel{}
	s := m.StartSession(config.SessionConfig{})
	if s.Config().ContextSize != 2048 {
		t.Errorf("context = %d, want default 2048", s.Config().ContextSize)
	}

	var logits [][]float32
	m.Evaluate(s, []tokenizer.TokenID{4, 5}, &OutputRequest{AllLogits: &logits})
	m.Evaluate(s, []tokenizer.TokenID{6}, EmbeddingsRequest())

	if s.NPast() != 3 {
		t.Errorf("NPast = %d, want 3", s.NPast())
	}
	tokens := s.Tokens()
	if len(tokens) != 3 || tokens[2] != 6 {
		t.Errorf("tokens = %v", tokens)
	}
	tokens[0] = 99
	if s.Tokens()[0] == 99 {
		t.Error("Tokens() exposed internal history")
	}
	if got := s.LastLogits(); len(got) != 1 || got[0] != 6 {
		t.Errorf("last logits = %v", got)
	}
	if len(logits) != 2 {
		t.Errorf("logit rows = %d, want 2", len(logits))
	}
}

func expectPanic(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q", want)
		}
		if msg, _ := r.(string); !strings.Contains(msg, want) {
			t.Errorf("panic %v, want %q", r, want)
		}
	}()
	fn()
}

func TestSessionAcquire(t *testing.T) {
	a, b := &stubModel{}, &stubModel{}

	s := a.StartSession(config.SessionConfig{ContextSize: 4})
	expectPanic(t, "evaluated by", func() { b.Evaluate(s, []tokenizer.TokenID{1}, EmbeddingsRequest()) })

	release := s.Acquire(a, 1)
	expectPanic(t, "concurrent use", func() { a.Evaluate(s, []tokenizer.TokenID{1}, EmbeddingsRequest()) })
	release()

	expectPanic(t, "context overflow", func() { a.Evaluate(s, make([]tokenizer.TokenID, 5), EmbeddingsRequest()) })

	// The session is usable again after the overflow panic.
	a.Evaluate(s, make([]tokenizer.TokenID, 4), EmbeddingsRequest())
	if s.NPast() != 4 {
		t.Errorf("NPast = %d, want 4", s.NPast())
	}
}

func TestRegistry(t *testing.T) {
	load := func(*LoadContext) (Model, error) { return &stubModel{}, nil }
	if _, ok := Lookup("registry-test"); !ok {
		Register(&Architecture{Name: "registry-test", Aliases: []string{"regtest"}, Load: load})
	}

	if a, ok := Lookup("REGISTRY-TEST"); !ok || a.Name != "registry-test" {
		t.Errorf("Lookup by name = %v, %v", a, ok)
	}
	if a, ok := Lookup("regtest"); !ok || a.Name != "registry-test" {
		t.Errorf("Lookup by alias = %v, %v", a, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("unexpected architecture")
	}

	expectPanic(t, "registered twice", func() {
		Register(&Architecture{Name: "registry-test", Load: load})
	})

	if a, err := ParseArchitecture("auto"); a != nil || err != nil {
		t.Errorf("ParseArchitecture(auto) = %v, %v", a, err)
	}
	if _, err := ParseArchitecture("nope"); err == nil || !strings.Contains(err.Error(), "registry-test") {
		t.Errorf("ParseArchitecture(nope) err = %v", err)
	}
}

var stubArch = &Architecture{
	Name: "stubarch",
	Load: func(ctx *LoadContext) (Model, error) {
		if ctx.Hyperparameters.EmbeddingLength == 0 {
			return nil, errors.New("no embedding length")
		}
		return &stubModel{tok: ctx.Tokenizer}, nil
	},
}

func init() {
	Register(stubArch)
}

func writeStubModel(t *testing.T, arch string, withEmbedding bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.gguf")
	w := gguf.NewWriter().
		SetString(gguf.KeyArchitecture, arch).
		SetStrings(gguf.KeyTokens, []string{"<s>", "a", "b"}).
		SetUint32(gguf.KeyBOSID, 0)
	if withEmbedding {
		w.SetUint32(arch+".embedding_length", 3)
	}
	w.AddTensorF32("token_embd.weight", []uint64{3, 3}, make([]float32, 9))
	if err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeStubModel(t, "stubarch", true)

	var phases []Phase
	m, err := Load(nil, path, tokenizer.Embedded{}, config.DefaultModelParameters(), func(p LoadProgress) {
		phases = append(phases, p.Phase)
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	toks, err := m.Tokenizer().Tokenize("ab", true)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if got := tokenizer.IDs(toks); len(got) != 3 || got[0] != 0 {
		t.Errorf("ids = %v", got)
	}
	want := []Phase{PhaseHyperparametersLoaded, PhaseContextSize, PhaseLoaded}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase %d = %v, want %v", i, phases[i], want[i])
		}
	}

	params := config.DefaultModelParameters()
	params.UseGPU = true
	if _, err := Load(stubArch, path, tokenizer.Embedded{}, params, nil); err != nil {
		t.Errorf("GPU request should fall back to CPU, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	good := writeStubModel(t, "stubarch", true)
	noEmbedding := writeStubModel(t, "stubarch", false)
	unknown := writeStubModel(t, "unknownarch", true)

	badParams := config.DefaultModelParameters()
	badParams.ContextSize = 0

	tests := []struct {
		name     string
		arch     *Architecture
		path     string
		src      tokenizer.Source
		params   config.ModelParameters
		wantArch string
		wantIs   error
	}{
		{"missing file", stubArch, filepath.Join(t.TempDir(), "none.gguf"), tokenizer.Embedded{}, config.DefaultModelParameters(), "stubarch", os.ErrNotExist},
		{"unknown architecture", nil, unknown, tokenizer.Embedded{}, config.DefaultModelParameters(), "auto", nil},
		{"bad tokenizer file", stubArch, good, tokenizer.File{Path: filepath.Join(t.TempDir(), "tok.json")}, config.DefaultModelParameters(), "stubarch", os.ErrNotExist},
		{"architecture loader error", stubArch, noEmbedding, tokenizer.Embedded{}, config.DefaultModelParameters(), "stubarch", nil},
		{"invalid parameters", nil, good, tokenizer.Embedded{}, badParams, "auto", nil},
		{"missing ollama model", nil, "ollama://missing-model-for-test", tokenizer.Embedded{}, config.DefaultModelParameters(), "auto", nil},
	}

	t.Setenv("OLLAMA_MODELS", t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.arch, tt.path, tt.src, tt.params, nil)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err = %v, want *LoadError", err)
			}
			if le.Architecture != tt.wantArch || le.Path != tt.path {
				t.Errorf("LoadError = %+v", le)
			}
			if !strings.Contains(err.Error(), tt.wantArch) || !strings.Contains(err.Error(), tt.path) {
				t.Errorf("message %q lacks architecture or path", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want wrapping %v", err, tt.wantIs)
			}
		})
	}
}

func TestStdoutProgress(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var buf bytes.Buffer
	p := StdoutProgress(&buf)
	p(LoadProgress{Phase: PhaseHyperparametersLoaded})
	p(LoadProgress{Phase: PhaseContextSize, ContextSize: 2048})
	p(LoadProgress{Phase: PhaseTensorLoaded, TensorName: "token_embd.weight", Current: 1, Total: 2})
	p(LoadProgress{Phase: PhaseLoaded, Bytes: 1 << 20, Tensors: 2})

	want := "Loaded hyperparameters\n" +
		"Context size: 2048 tokens\n" +
		"Loaded tensor 1/2 token_embd.weight\n" +
		"Loaded model: 2 tensors (1.00 MB)\n"
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
	if PhaseLoaded.String() != "loaded" {
		t.Errorf("Phase string = %s", PhaseLoaded)
	}
}
