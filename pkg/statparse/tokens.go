package statparse

import (
	"strings"
	"unicode"
)

// token is one whitespace-delimited word with its rune span in the full text.
type token struct {
	text       string
	start, end int
}

// tokenize splits text into lines of tokens. Colons and equals signs separate
// tokens as well, so "Goals:3" reads like "Goals 3".
func tokenize(text string) [][]token {
	var lines [][]token
	var cur []token
	var b strings.Builder
	start := 0
	flush := func(end int) {
		if b.Len() > 0 {
			cur = append(cur, token{text: b.String(), start: start, end: end})
			b.Reset()
		}
	}
	i := 0
	for _, r := range text {
		switch {
		case r == '\n':
			flush(i)
			lines = append(lines, cur)
			cur = nil
		case unicode.IsSpace(r) || r == ':' || r == '=':
			flush(i)
		default:
			if b.Len() == 0 {
				start = i
			}
			b.WriteRune(r)
		}
		i++
	}
	flush(i)
	lines = append(lines, cur)
	return lines
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// trimNoise strips wrapping punctuation that OCR attaches to words.
func trimNoise(s string) string {
	return strings.Trim(s, ".,;()[]{}\"'`-_*")
}
