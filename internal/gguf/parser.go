package gguf

import (
	"fmt"

	ggufparser "github.com/gpustack/gguf-parser-go"
)

// ParserSummary is a second read of a model file's metadata by
// gguf-parser-go. It adds size, parameter and bits-per-weight figures and
// is compared with AnalysisReport by Mismatches.
type ParserSummary struct {
	Architecture    string
	ContextLength   uint64
	EmbeddingLength uint64
	BlockCount      uint64
	AttentionHeads  uint64
	TokenizerModel  string
	Tokens          uint64
	BOS             int64
	Size            string
	Parameters      string
	BitsPerWeight   string
}

// ParseSummary reads path with gguf-parser-go. Large arrays such as the
// token list are skipped; only their lengths are kept.
func ParseSummary(path string) (*ParserSummary, error) {
	f, err := ggufparser.ParseGGUFFile(path, ggufparser.SkipLargeMetadata(), ggufparser.UseMMap())
	if err != nil {
		return nil, fmt.Errorf("gguf-parser: %w", err)
	}
	arch := f.Architecture()
	tok := f.Tokenizer()
	return &ParserSummary{
		Architecture:    arch.Architecture,
		ContextLength:   arch.MaximumContextLength,
		EmbeddingLength: arch.EmbeddingLength,
		BlockCount:      arch.BlockCount,
		AttentionHeads:  arch.AttentionHeadCount,
		TokenizerModel:  tok.Model,
		Tokens:          tok.TokensLength,
		BOS:             tok.BOSTokenID,
		Size:            f.ModelSize.String(),
		Parameters:      f.ModelParameters.String(),
		BitsPerWeight:   f.ModelBitsPerWeight.String(),
	}, nil
}

// Mismatches lists the fields where s and r disagree. Values s leaves at
// zero are not compared, since r substitutes defaults for absent keys.
func (s *ParserSummary) Mismatches(r *AnalysisReport) []string {
	var out []string
	if s.Architecture != "" && s.Architecture != r.Architecture {
		out = append(out, fmt.Sprintf("architecture: %q vs %q", r.Architecture, s.Architecture))
	}
	for _, c := range []struct {
		name   string
		report int
		parsed uint64
	}{
		{"context length", r.ContextLength, s.ContextLength},
		{"embedding length", r.EmbeddingLength, s.EmbeddingLength},
		{"blocks", r.BlockCount, s.BlockCount},
		{"attention heads", r.AttentionHeads, s.AttentionHeads},
		{"vocab size", r.VocabSize, s.Tokens},
	} {
		if c.parsed != 0 && uint64(c.report) != c.parsed {
			out = append(out, fmt.Sprintf("%s: %d vs %d", c.name, c.report, c.parsed))
		}
	}
	return out
}

func (s *ParserSummary) String() string {
	return fmt.Sprintf(`Model Size:       %s
Parameters:       %s
Bits Per Weight:  %s
Tokenizer Model:  %s
`,
		s.Size,
		s.Parameters,
		s.BitsPerWeight,
		s.TokenizerModel,
	)
}
