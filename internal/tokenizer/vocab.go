package tokenizer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Style selects how text is rewritten before vocabulary matching.
type Style int

const (
	// StylePlain matches the text as is.
	StylePlain Style = iota
	// StyleSentencePiece replaces spaces with "▁" and prefixes one.
	StyleSentencePiece
	// StyleByteLevel maps every byte to its GPT-2 printable rune ("Ġ" for space).
	StyleByteLevel
)

const spaceMarker = "▁"

func (s Style) String() string {
	switch s {
	case StylePlain:
		return "plain"
	case StyleSentencePiece:
		return "sentencepiece"
	case StyleByteLevel:
		return "byte-level"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// Options configures a Vocabulary. BOS and Unknown take NoToken when absent.
type Options struct {
	Style   Style
	BOS     TokenID
	Unknown TokenID
}

// Vocabulary is a greedy longest-match tokenizer over a fixed piece list.
type Vocabulary struct {
	pieces []string
	ids    map[string]TokenID
	style  Style
	bos    TokenID
	unk    TokenID
	maxLen int

	byteIDs [256]TokenID // <0xNN> fallback pieces, NoToken when missing
}

// NewVocabulary indexes pieces by id. Empty pieces are placeholders and
// never match; on duplicate pieces the lowest id wins.
func NewVocabulary(pieces []string, opts Options) (*Vocabulary, error) {
	if len(pieces) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{
		pieces: pieces,
		ids:    make(map[string]TokenID, len(pieces)),
		style:  opts.Style,
		bos:    opts.BOS,
		unk:    opts.Unknown,
	}
	for _, id := range []TokenID{opts.BOS, opts.Unknown} {
		if id != NoToken && (id < 0 || int(id) >= len(pieces)) {
			return nil, fmt.Errorf("special token %d out of range (vocab size %d)", id, len(pieces))
		}
	}
	for i := range v.byteIDs {
		v.byteIDs[i] = NoToken
	}
	for i, p := range pieces {
		if p == "" {
			continue
		}
		if _, dup := v.ids[p]; !dup {
			v.ids[p] = TokenID(i)
		}
		if len(p) > v.maxLen {
			v.maxLen = len(p)
		}
		if b, ok := parseBytePiece(p); ok && v.byteIDs[b] == NoToken {
			v.byteIDs[b] = TokenID(i)
		}
	}
	if v.maxLen == 0 {
		return nil, ErrEmptyVocabulary
	}
	return v, nil
}

func (v *Vocabulary) VocabSize() int { return len(v.pieces) }

func (v *Vocabulary) Style() Style { return v.style }

func (v *Vocabulary) BOS() (TokenID, bool) { return v.bos, v.bos != NoToken }

// Token returns the piece for id.
func (v *Vocabulary) Token(id TokenID) (string, bool) {
	if id < 0 || int(id) >= len(v.pieces) {
		return "", false
	}
	return v.pieces[id], true
}

// Lookup returns the id of an exact piece.
func (v *Vocabulary) Lookup(piece string) (TokenID, bool) {
	id, ok := v.ids[piece]
	return id, ok
}

func (v *Vocabulary) Tokenize(text string, prependBOS bool) ([]Token, error) {
	var out []Token
	if prependBOS {
		if v.bos == NoToken {
			return nil, ErrNoBOS
		}
		out = append(out, Token{ID: v.bos})
	}

	normalized := norm.NFC.String(text)
	withOffsets := normalized == text
	if normalized == "" {
		return out, nil
	}

	src, origin := v.pretokenize(normalized)
	for i := 0; i < len(src); {
		id, n := v.longestMatch(src[i:])
		if n > 0 {
			out = append(out, v.token(id, origin[i], withOffsets))
			i += n
			continue
		}

		_, size := utf8.DecodeRuneInString(src[i:])
		if fallback, ok := v.byteFallback(src[i : i+size]); ok {
			for k, id := range fallback {
				out = append(out, v.token(id, origin[i+k], withOffsets))
			}
		} else if v.unk != NoToken {
			out = append(out, v.token(v.unk, origin[i], withOffsets))
		} else {
			return nil, &TokenizeError{Offset: origin[i], Segment: src[i : i+size]}
		}
		i += size
	}
	return out, nil
}

func (v *Vocabulary) token(id TokenID, offset int, withOffset bool) Token {
	if !withOffset {
		return Token{ID: id}
	}
	return Token{Offset: &offset, ID: id}
}

func (v *Vocabulary) longestMatch(s string) (TokenID, int) {
	n := v.maxLen
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if id, ok := v.ids[s[:n]]; ok {
			return id, n
		}
	}
	return NoToken, 0
}

func (v *Vocabulary) byteFallback(seg string) ([]TokenID, bool) {
	if v.style == StyleByteLevel {
		return nil, false
	}
	ids := make([]TokenID, len(seg))
	for i := 0; i < len(seg); i++ {
		if ids[i] = v.byteIDs[seg[i]]; ids[i] == NoToken {
			return nil, false
		}
	}
	return ids, true
}

// pretokenize rewrites text for matching. origin maps each byte of the
// rewritten text to the input byte it came from.
func (v *Vocabulary) pretokenize(text string) (string, []int) {
	var b strings.Builder
	origin := make([]int, 0, len(text)+len(spaceMarker))
	emit := func(s string, at int) {
		b.WriteString(s)
		for range len(s) {
			origin = append(origin, at)
		}
	}

	switch v.style {
	case StyleSentencePiece:
		emit(spaceMarker, 0)
		for i := 0; i < len(text); i++ {
			if text[i] == ' ' {
				emit(spaceMarker, i)
			} else {
				emit(text[i:i+1], i)
			}
		}
	case StyleByteLevel:
		for i := 0; i < len(text); i++ {
			emit(string(byteToRune[text[i]]), i)
		}
	default:
		emit(text, 0)
		for i := range origin {
			origin[i] = i
		}
	}
	return b.String(), origin
}

// Decode joins pieces back into text. The BOS token is skipped.
func (v *Vocabulary) Decode(ids []TokenID) (string, error) {
	var raw []byte
	for _, id := range ids {
		p, ok := v.Token(id)
		if !ok {
			return "", fmt.Errorf("token id %d out of range (vocab size %d)", id, len(v.pieces))
		}
		if id == v.bos {
			continue
		}
		if b, ok := parseBytePiece(p); ok && v.style != StyleByteLevel {
			raw = append(raw, b)
			continue
		}
		raw = append(raw, p...)
	}

	switch v.style {
	case StyleSentencePiece:
		s := strings.ReplaceAll(string(raw), spaceMarker, " ")
		return strings.TrimPrefix(s, " "), nil
	case StyleByteLevel:
		out := make([]byte, 0, len(raw))
		for _, r := range string(raw) {
			if b, ok := runeToByte[r]; ok {
				out = append(out, b)
			} else {
				out = utf8.AppendRune(out, r)
			}
		}
		return string(out), nil
	}
	return string(raw), nil
}

// parseBytePiece recognizes "<0xNN>".
func parseBytePiece(p string) (byte, bool) {
	if len(p) != 6 || !strings.HasPrefix(p, "<0x") || p[5] != '>' {
		return 0, false
	}
	n, err := strconv.ParseUint(p[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}

var (
	byteToRune [256]rune
	runeToByte = make(map[rune]byte, 256)
)

// GPT-2 byte-to-unicode table: printable latin-1 bytes map to themselves,
// the rest to U+0100 onwards in byte order.
func init() {
	next := rune(256)
	for b := 0; b < 256; b++ {
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		if printable {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = next
			next++
		}
		runeToByte[byteToRune[b]] = byte(b)
	}
}
