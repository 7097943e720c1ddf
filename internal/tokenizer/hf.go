package tokenizer

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// bosCandidates are checked in order when tokenizer.json names no BOS.
var bosCandidates = []string{"<s>", "<|begin_of_text|>", "<bos>", "[CLS]", "<|endoftext|>"}

type hfTokenizer struct {
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
	Normalizer   json.RawMessage `json:"normalizer"`
	PreTokenizer json.RawMessage `json:"pre_tokenizer"`
	Decoder      json.RawMessage `json:"decoder"`
	Model        struct {
		Type     string          `json:"type"`
		Vocab    json.RawMessage `json:"vocab"`
		UnkToken *string         `json:"unk_token"`
		UnkID    *int            `json:"unk_id"`
	} `json:"model"`
}

// component is the shape shared by normalizers, pre-tokenizers and decoders.
type component struct {
	Type          string      `json:"type"`
	Normalizers   []component `json:"normalizers"`
	PreTokenizers []component `json:"pretokenizers"`
	Decoders      []component `json:"decoders"`
	Content       string      `json:"content"`
	Pattern       struct {
		String string `json:"String"`
	} `json:"pattern"`
}

func (c component) has(pred func(component) bool) bool {
	if pred(c) {
		return true
	}
	for _, group := range [][]component{c.Normalizers, c.PreTokenizers, c.Decoders} {
		for _, sub := range group {
			if sub.has(pred) {
				return true
			}
		}
	}
	return false
}

func parseComponent(raw json.RawMessage) component {
	var c component
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &c)
	}
	return c
}

// LoadJSONFile reads a HuggingFace tokenizer.json.
func LoadJSONFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	v, err := ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// ParseJSON builds a Vocabulary from tokenizer.json contents. Only the
// vocabulary and special tokens are used; merges are not needed for
// greedy longest-match.
func ParseJSON(data []byte) (*Vocabulary, error) {
	var hf hfTokenizer
	if err := json.Unmarshal(data, &hf); err != nil {
		return nil, err
	}

	byID := map[int]string{}
	switch hf.Model.Type {
	case "Unigram":
		var entries [][2]json.RawMessage
		if err := json.Unmarshal(hf.Model.Vocab, &entries); err != nil {
			return nil, fmt.Errorf("unigram vocab: %w", err)
		}
		for i, e := range entries {
			var piece string
			if err := json.Unmarshal(e[0], &piece); err != nil {
				return nil, fmt.Errorf("unigram vocab entry %d: %w", i, err)
			}
			byID[i] = piece
		}
	case "BPE", "WordPiece", "WordLevel", "":
		var vocab map[string]int
		if err := json.Unmarshal(hf.Model.Vocab, &vocab); err != nil {
			return nil, fmt.Errorf("%s vocab: %w", hf.Model.Type, err)
		}
		for piece, id := range vocab {
			byID[id] = piece
		}
	default:
		return nil, fmt.Errorf("unsupported tokenizer model %q", hf.Model.Type)
	}
	for _, t := range hf.AddedTokens {
		byID[t.ID] = t.Content
	}

	size := 0
	for id := range byID {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d", id)
		}
		if id+1 > size {
			size = id + 1
		}
	}
	pieces := make([]string, size)
	for id, p := range byID {
		pieces[id] = p
	}

	opts := Options{Style: detectStyle(hf), BOS: NoToken, Unknown: NoToken}
	if hf.Model.UnkID != nil {
		opts.Unknown = TokenID(*hf.Model.UnkID)
	} else if hf.Model.UnkToken != nil {
		for id, p := range pieces {
			if p == *hf.Model.UnkToken {
				opts.Unknown = TokenID(id)
				break
			}
		}
	}
	special := map[string]int{}
	for _, t := range hf.AddedTokens {
		if t.Special {
			special[t.Content] = t.ID
		}
	}
	for _, c := range bosCandidates {
		if id, ok := special[c]; ok {
			opts.BOS = TokenID(id)
			break
		}
	}
	return NewVocabulary(pieces, opts)
}

func detectStyle(hf hfTokenizer) Style {
	pre := parseComponent(hf.PreTokenizer)
	dec := parseComponent(hf.Decoder)
	norm := parseComponent(hf.Normalizer)

	isType := func(t string) func(component) bool {
		return func(c component) bool { return c.Type == t }
	}
	switch {
	case pre.has(isType("ByteLevel")) || dec.has(isType("ByteLevel")):
		return StyleByteLevel
	case pre.has(isType("Metaspace")) || dec.has(isType("Metaspace")):
		return StyleSentencePiece
	case norm.has(func(c component) bool {
		return c.Type == "Replace" && c.Pattern.String == " " && strings.Contains(c.Content, spaceMarker)
	}):
		return StyleSentencePiece
	}
	return StylePlain
}
