package bench

import (
	_ "embed"
	"fmt"
	"os"
	"unicode/utf8"
)

//go:embed query.txt
var defaultQuery string

// DefaultQuery returns the built-in query text.
func DefaultQuery() string { return defaultQuery }

// Truncate cuts s to at most maxBytes without splitting a UTF-8 sequence.
// maxBytes <= 0 means no limit.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	n := maxBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// LoadQuery reads the query from path, or the built-in query when path is
// empty, and truncates it to maxBytes.
func LoadQuery(path string, maxBytes int) (string, error) {
	text := defaultQuery
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read query: %w", err)
		}
		text = string(data)
	}
	return Truncate(text, maxBytes), nil
}
