package tokenizer

import (
	"errors"
	"fmt"
	"os"

	"github.com/gomlx/go-huggingface/hub"

	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/logger"
)

// Source says where a model's tokenizer comes from. It is one of
// Embedded, File or Remote.
type Source interface {
	fmt.Stringer
	isSource()
}

// Embedded uses the vocabulary stored in the model file.
type Embedded struct{}

// File reads a HuggingFace tokenizer.json.
type File struct {
	Path string
}

// Remote loads the tokenizer of a HuggingFace repository.
type Remote struct {
	Repository string
}

func (Embedded) isSource() {}
func (File) isSource()     {}
func (Remote) isSource()   {}

func (Embedded) String() string { return "embedded" }
func (s File) String() string   { return "file:" + s.Path }
func (s Remote) String() string { return "hf:" + s.Repository }

// SourceFromFlags picks the source for the command-line flags.
func SourceFromFlags(path, repository string) (Source, error) {
	switch {
	case path != "" && repository != "":
		return nil, ErrConflictingSources
	case path != "":
		return File{Path: path}, nil
	case repository != "":
		return Remote{Repository: repository}, nil
	default:
		return Embedded{}, nil
	}
}

// Fetcher resolves Remote sources.
type Fetcher interface {
	// Fetch downloads file from repository and returns its local path.
	Fetch(repository, file string) (string, error)
	// Tokenizer builds the repository's tokenizer with the hub tokenizers
	// package. It returns ErrUnsupportedTokenizer for classes it cannot build.
	Tokenizer(repository string) (Tokenizer, error)
}

type hubFetcher struct{}

func (hubFetcher) repo(repository string) *hub.Repo {
	repo := hub.New(repository)
	if token := os.Getenv("HF_TOKEN"); token != "" {
		repo = repo.WithAuth(token)
	}
	return repo
}

func (f hubFetcher) Fetch(repository, file string) (string, error) {
	return f.repo(repository).DownloadFile(file)
}

func (f hubFetcher) Tokenizer(repository string) (Tokenizer, error) {
	tok, err := hubTokenizerFor(f.repo(repository))
	if err != nil {
		return nil, err
	}
	return NewHubTokenizer(tok), nil
}

// DefaultFetcher serves Remote sources. Downloads are cached by the hub client.
var DefaultFetcher Fetcher = hubFetcher{}

// Load builds the tokenizer for src. model supplies the embedded vocabulary
// and may be nil for the other sources.
func Load(src Source, model *gguf.GGUFFile) (Tokenizer, error) {
	switch s := src.(type) {
	case Embedded:
		if model == nil {
			return nil, fmt.Errorf("embedded tokenizer: no model file")
		}
		return FromGGUF(model)
	case File:
		return LoadJSONFile(s.Path)
	case Remote:
		return loadRemote(s.Repository)
	default:
		return nil, fmt.Errorf("unknown tokenizer source %T", src)
	}
}

// loadRemote prefers the hub tokenizers package and falls back to parsing
// tokenizer.json for classes it does not support.
func loadRemote(repository string) (Tokenizer, error) {
	logger.Log.Info("Fetching tokenizer", "repository", repository)
	tok, err := DefaultFetcher.Tokenizer(repository)
	switch {
	case err == nil:
		logger.Log.Debug("Loaded hub tokenizer", "repository", repository, "vocab", tok.VocabSize())
		return tok, nil
	case !errors.Is(err, ErrUnsupportedTokenizer):
		return nil, fmt.Errorf("load tokenizer from %s: %w", repository, err)
	}
	logger.Log.Debug("Falling back to tokenizer.json", "repository", repository, "reason", err.Error())

	path, err := DefaultFetcher.Fetch(repository, "tokenizer.json")
	if err != nil {
		return nil, fmt.Errorf("fetch tokenizer from %s: %w", repository, err)
	}
	return LoadJSONFile(path)
}

// FromGGUF reads the tokenizer.ggml.* metadata of a model file.
func FromGGUF(f *gguf.GGUFFile) (*Vocabulary, error) {
	pieces := f.GetStrings(gguf.KeyTokens)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%s not found in %s", gguf.KeyTokens, f.Path)
	}

	opts := Options{BOS: NoToken, Unknown: NoToken}
	switch f.GetString(gguf.KeyTokenizerType) {
	case "llama", "spm":
		opts.Style = StyleSentencePiece
	case "gpt2", "bpe":
		opts.Style = StyleByteLevel
	}
	if id, ok := f.GetUint(gguf.KeyBOSID); ok {
		opts.BOS = TokenID(id)
	}
	if id, ok := f.GetUint(gguf.KeyUnknownID); ok {
		opts.Unknown = TokenID(id)
	}

	v, err := NewVocabulary(pieces, opts)
	if err != nil {
		return nil, fmt.Errorf("embedded tokenizer: %w", err)
	}
	logger.Log.Debug("Loaded embedded tokenizer", "vocab", len(pieces), "style", opts.Style.String())
	return v, nil
}
