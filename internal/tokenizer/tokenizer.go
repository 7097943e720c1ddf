// Package tokenizer turns query text into the token ids a model evaluates.
package tokenizer

import (
	"errors"
	"fmt"
)

// TokenID indexes a vocabulary.
type TokenID int32

// NoToken marks an unset special token.
const NoToken TokenID = -1

// Token is one tokenized piece. Offset is the byte offset of the piece in the
// input text, or nil when normalization rewrote the text.
type Token struct {
	Offset *int
	ID     TokenID
}

// Tokenizer is safe for concurrent use. Tokenize is deterministic.
type Tokenizer interface {
	Tokenize(text string, prependBOS bool) ([]Token, error)
	Decode(ids []TokenID) (string, error)
	BOS() (TokenID, bool)
	VocabSize() int
}

var (
	ErrNoBOS              = errors.New("tokenizer has no beginning-of-sequence token")
	ErrConflictingSources = errors.New("cannot specify both --tokenizer-path and --tokenizer-repository")
	ErrEmptyVocabulary    = errors.New("empty vocabulary")
)

// TokenizeError reports a segment the vocabulary cannot represent.
type TokenizeError struct {
	Offset  int
	Segment string
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("cannot tokenize %q at byte %d", e.Segment, e.Offset)
}

// IDs drops offsets.
func IDs(tokens []Token) []TokenID {
	ids := make([]TokenID, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	return ids
}
