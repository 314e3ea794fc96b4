package util

import (
	"strings"
	"unicode"
)

// SplitSentences splits on terminal punctuation followed by whitespace or end of
// text, so identifiers such as "qDT1.1" stay intact.
func SplitSentences(s string) []string {
	out := make([]string, 0, 8)
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if x := strings.TrimSpace(b.String()); x != "" {
			out = append(out, x)
		}
		b.Reset()
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
