// Package statparse turns raw OCR text into a set of located statistic
// readings. Fields it cannot find are absent from the result, never zero.
package statparse

import (
	"leaguestats/pkg/catalog"
	"leaguestats/pkg/ocr"
)

// Field is one located statistic.
type Field struct {
	RawToken   string  `json:"raw_token"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	// FuzzyLabel is set when the label only matched after OCR folding.
	FuzzyLabel bool   `json:"fuzzy_label,omitempty"`
	Label      string `json:"label"`
	Line       int    `json:"line"`
}

// Set maps catalog field names to readings.
type Set map[string]Field

// Options tunes the parser.
type Options struct {
	// FuzzyPenalty is the fraction of confidence removed when a label needed
	// fuzzy matching.
	FuzzyPenalty float64
	// MaxNoise is how many non-numeric words may sit between a label and its value.
	MaxNoise int
}

func DefaultOptions() Options {
	return Options{FuzzyPenalty: 0.2, MaxNoise: 2}
}

// Parser is bound to one catalog snapshot and may be shared across goroutines.
type Parser struct {
	cat    *catalog.Catalog
	labels []label
	opts   Options
}

func New(cat *catalog.Catalog, opts Options) *Parser {
	if opts.FuzzyPenalty < 0 || opts.FuzzyPenalty > 1 {
		opts.FuzzyPenalty = DefaultOptions().FuzzyPenalty
	}
	if opts.MaxNoise < 0 {
		opts.MaxNoise = 0
	}
	return &Parser{cat: cat, labels: buildLabels(cat), opts: opts}
}

// Parse is New(cat, opts).Parse(res).
func Parse(res ocr.Result, cat *catalog.Catalog, opts Options) Set {
	return New(cat, opts).Parse(res)
}

// ParseText parses text whose characters are all fully trusted, e.g. manual entry.
func ParseText(text string, cat *catalog.Catalog) Set {
	return Parse(ocr.Result{Text: text, Confidence: 1}, cat, DefaultOptions())
}

// Parse never fails; unusable input gives an empty set.
func (p *Parser) Parse(res ocr.Result) (out Set) {
	out = Set{}
	defer func() {
		// malformed input yields an empty set
		if r := recover(); r != nil {
			out = Set{}
		}
	}()

	lines := tokenize(res.Text)
	for li := 0; li < len(lines); li++ {
		pending := p.scanLine(res, lines[li], li, out)
		if len(pending) < 2 || li+1 >= len(lines) {
			continue
		}
		// header row: labels on this line, values on the next one
		if p.fillFromValueRow(res, pending, lines[li+1], li+1, out) {
			li++
		}
	}
	return out
}

// scanLine records label/value pairs in one line and returns the labels that
// were left without a value.
func (p *Parser) scanLine(res ocr.Result, toks []token, line int, out Set) []labelMatch {
	var pending []labelMatch
	i := 0
	for i < len(toks) {
		m, ok := matchLabel(p.labels, toks, i)
		if !ok {
			i++
			continue
		}
		f, _ := p.cat.Field(m.field)
		next, tok, found := p.findValue(f.Kind, toks, i+m.n)
		if !found {
			if _, atLabel := matchLabel(p.labels, toks, next); atLabel || next >= len(toks) {
				// nothing but the label itself, or another label right after
				pending = append(pending, m)
			}
			i = next
			continue
		}
		if v, ok := parseValue(f.Kind, tok.text); ok {
			p.record(out, m, tok, v, line, res)
		}
		i = next
	}
	return pending
}

// findValue scans forward from j for the value of a field of the given kind.
// It stops at the next label. next is where label scanning resumes.
func (p *Parser) findValue(kind catalog.Kind, toks []token, j int) (next int, tok token, found bool) {
	noise := 0
	for ; j < len(toks); j++ {
		t := toks[j]
		if kind == catalog.KindBoolean {
			if _, ok := booleanWord(t.text); ok {
				return j + 1, t, true
			}
		}
		if _, isLabel := matchLabel(p.labels, toks, j); isLabel {
			return j, token{}, false
		}
		switch {
		case kind != catalog.KindBoolean && numericShaped(t.text):
			return j + 1, t, true
		case !hasLetter(t.text) && !hasDigit(t.text):
			// punctuation such as "-" or "|"
			continue
		case kind == catalog.KindBoolean:
			// the first real word decides a boolean
			return j + 1, t, true
		}
		noise++
		if noise > p.opts.MaxNoise {
			return j, token{}, false
		}
	}
	return j, token{}, false
}

// fillFromValueRow pairs labels with the value tokens of the following line,
// left to right. It only applies when that line has no labels and exactly one
// candidate per label.
func (p *Parser) fillFromValueRow(res ocr.Result, labels []labelMatch, toks []token, line int, out Set) bool {
	var values []token
	for i := range toks {
		if _, isLabel := matchLabel(p.labels, toks, i); isLabel {
			return false
		}
		t := toks[i]
		if _, ok := booleanWord(t.text); ok || numericShaped(t.text) {
			values = append(values, t)
		}
	}
	if len(values) != len(labels) {
		return false
	}
	for i, m := range labels {
		f, _ := p.cat.Field(m.field)
		if v, ok := parseValue(f.Kind, values[i].text); ok {
			p.record(out, m, values[i], v, line, res)
		}
	}
	return true
}

func (p *Parser) record(out Set, m labelMatch, tok token, v float64, line int, res ocr.Result) {
	conf := res.SpanConfidence(tok.start, tok.end)
	if m.fuzzy {
		conf *= 1 - p.opts.FuzzyPenalty
	}
	switch {
	case conf < 0:
		conf = 0
	case conf > 1:
		conf = 1
	}
	if prev, dup := out[m.field]; dup && prev.Confidence >= conf {
		return
	}
	out[m.field] = Field{
		RawToken:   tok.text,
		Value:      v,
		Confidence: conf,
		FuzzyLabel: m.fuzzy,
		Label:      m.text,
		Line:       line,
	}
}
