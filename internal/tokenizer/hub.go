package tokenizer

import (
	"errors"
	"fmt"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/gomlx/go-huggingface/tokenizers"
	"github.com/gomlx/go-huggingface/tokenizers/api"
	"github.com/gomlx/go-huggingface/tokenizers/sentencepiece"
)

// ErrUnsupportedTokenizer is returned by Fetcher.Tokenizer when the hub
// tokenizers package cannot build the repository's tokenizer class.
var ErrUnsupportedTokenizer = errors.New("tokenizer class not supported by hub tokenizers")

// hubClasses are the tokenizer_config.json classes tokenizers.New registers.
var hubClasses = map[string]bool{
	"GemmaTokenizer": true,
}

func hubTokenizerFor(repo *hub.Repo) (api.Tokenizer, error) {
	cfg, err := tokenizers.GetConfig(repo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTokenizer, err)
	}
	if !hubClasses[cfg.TokenizerClass] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTokenizer, cfg.TokenizerClass)
	}
	return tokenizers.New(repo)
}

// hubTokenizer serves a tokenizer built by the go-huggingface tokenizers
// package. Its encoder normalizes the text, so tokens carry no offsets.
type hubTokenizer struct {
	tok   api.Tokenizer
	bos   TokenID
	vocab int
}

// NewHubTokenizer wraps tok. The vocabulary size is read from
// SentencePiece model info, or from a VocabSize method when tok has one.
func NewHubTokenizer(tok api.Tokenizer) Tokenizer {
	h := &hubTokenizer{tok: tok, bos: NoToken}
	if id, err := tok.SpecialTokenID(api.TokBeginningOfSentence); err == nil && id >= 0 {
		h.bos = TokenID(id)
	}
	switch t := tok.(type) {
	case *sentencepiece.Tokenizer:
		if t.Info != nil {
			h.vocab = t.Info.VocabularySize
		}
	case interface{ VocabSize() int }:
		h.vocab = t.VocabSize()
	}
	return h
}

func (h *hubTokenizer) Tokenize(text string, prependBOS bool) ([]Token, error) {
	var out []Token
	if prependBOS {
		if h.bos == NoToken {
			return nil, ErrNoBOS
		}
		out = append(out, Token{ID: h.bos})
	}
	if text == "" {
		return out, nil
	}
	for _, id := range h.tok.Encode(text) {
		if id < 0 || (h.vocab > 0 && id >= h.vocab) {
			return nil, fmt.Errorf("hub tokenizer produced id %d outside vocab size %d", id, h.vocab)
		}
		out = append(out, Token{ID: TokenID(id)})
	}
	return out, nil
}

// Decode skips the BOS token, matching Vocabulary.
func (h *hubTokenizer) Decode(ids []TokenID) (string, error) {
	raw := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 0 || (h.vocab > 0 && int(id) >= h.vocab) {
			return "", fmt.Errorf("token id %d out of range (vocab size %d)", id, h.vocab)
		}
		if id == h.bos {
			continue
		}
		raw = append(raw, int(id))
	}
	return h.tok.Decode(raw), nil
}

func (h *hubTokenizer) BOS() (TokenID, bool) { return h.bos, h.bos != NoToken }
func (h *hubTokenizer) VocabSize() int       { return h.vocab }
