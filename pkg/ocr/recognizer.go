// Package ocr wraps the text recognition engine. Callers hand in a
// preprocessed PNG and receive text plus a confidence signal; the engine
// itself is treated as a black box.
package ocr

import (
	"context"
	"strings"
)

// Result is the raw output of one recognition call.
type Result struct {
	Text string
	// Confidence is the mean symbol confidence in [0,1]. Zero when the engine
	// produced nothing it could vouch for.
	Confidence float64
	// CharConfidence is aligned rune-for-rune with Text. Nil when the engine
	// gave no per-symbol data.
	CharConfidence []float64
}

// Empty reports whether the result carries no text.
func (r Result) Empty() bool { return strings.TrimSpace(r.Text) == "" }

// SpanConfidence averages per-character confidence over runes [from, to) of
// Text, skipping whitespace. It falls back to Confidence when no per-symbol
// data is present.
func (r Result) SpanConfidence(from, to int) float64 {
	if len(r.CharConfidence) == 0 {
		return r.Confidence
	}
	runes := []rune(r.Text)
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if to > len(r.CharConfidence) {
		to = len(r.CharConfidence)
	}
	var sum float64
	var n int
	for i := from; i < to; i++ {
		if isSpace(runes[i]) {
			continue
		}
		sum += r.CharConfidence[i]
		n++
	}
	if n == 0 {
		return r.Confidence
	}
	return sum / float64(n)
}

// Join concatenates results line-wise, keeping CharConfidence aligned.
func Join(parts ...Result) Result {
	var b strings.Builder
	var chars []float64
	var sum float64
	var weight int
	aligned := true
	for i, p := range parts {
		if i > 0 && b.Len() > 0 {
			b.WriteRune('\n')
			chars = append(chars, 0)
		}
		b.WriteString(p.Text)
		n := len([]rune(p.Text))
		if len(p.CharConfidence) == n {
			chars = append(chars, p.CharConfidence...)
		} else {
			aligned = false
		}
		sum += p.Confidence * float64(n)
		weight += n
	}
	out := Result{Text: b.String()}
	if weight > 0 {
		out.Confidence = sum / float64(weight)
	}
	if aligned && len(chars) == len([]rune(out.Text)) {
		out.CharConfidence = chars
	}
	return out
}

// Recognizer turns one preprocessed image into text. Implementations must
// honour ctx cancellation and must not return text with a confidence that
// overstates its quality.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (Result, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, png []byte) (Result, error)

func (f RecognizerFunc) Recognize(ctx context.Context, png []byte) (Result, error) {
	return f(ctx, png)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
