package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// StatChars is the default whitelist for stat tables: labels, digits and the
// punctuation that shows up around values.
const StatChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,:%/-()+ "

// TesseractConfig controls the engine session created for every call.
type TesseractConfig struct {
	Language    string
	Whitelist   string
	PageSegMode gosseract.PageSegMode
}

// Tesseract recognises text with a fresh gosseract client per call; clients
// are not safe for concurrent use.
type Tesseract struct {
	cfg TesseractConfig
}

func NewTesseract(cfg TesseractConfig) *Tesseract {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PageSegMode == 0 {
		cfg.PageSegMode = gosseract.PSM_SINGLE_BLOCK
	}
	return &Tesseract{cfg: cfg}
}

// Recognize runs the engine in its own goroutine so a deadline on ctx returns
// ErrTimeout promptly. The engine call itself cannot be interrupted and is
// left to finish in the background.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (Result, error) {
	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := t.recognize(png)
		ch <- outcome{res, err}
	}()
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case o := <-ch:
		return o.res, o.err
	}
}

func (t *Tesseract) recognize(png []byte) (Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.cfg.Language); err != nil {
		return Result{}, fmt.Errorf("%w: set language: %v", ErrUnavailable, err)
	}
	// stat labels are abbreviations, not dictionary words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	if err := client.SetPageSegMode(t.cfg.PageSegMode); err != nil {
		return Result{}, fmt.Errorf("%w: set psm: %v", ErrUnavailable, err)
	}
	if t.cfg.Whitelist != "" {
		if err := client.SetWhitelist(t.cfg.Whitelist); err != nil {
			return Result{}, fmt.Errorf("%w: set whitelist: %v", ErrUnavailable, err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return Result{}, fmt.Errorf("%w: set image: %v", ErrUnavailable, err)
	}
	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	text = cleanText(text)
	if text == "" {
		return Result{}, nil
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil || len(boxes) == 0 {
		// text without symbol evidence cannot be vouched for
		return Result{Text: text}, nil
	}
	symbols := make([]symbol, 0, len(boxes))
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" {
			continue
		}
		symbols = append(symbols, symbol{text: w, conf: clamp01(b.Confidence / 100)})
	}
	return align(text, symbols), nil
}

type symbol struct {
	text string
	conf float64
}

// align maps symbol confidences onto the runes of text. Symbols that cannot
// be matched within a short look-ahead are skipped; unmatched runes and
// whitespace get the mean.
func align(text string, symbols []symbol) Result {
	runes := []rune(text)
	chars := make([]float64, len(runes))
	matched := make([]bool, len(runes))
	var sum float64
	for _, s := range symbols {
		sum += s.conf
	}
	mean := 0.0
	if len(symbols) > 0 {
		mean = sum / float64(len(symbols))
	}

	const lookahead = 3
	si := 0
	for i, r := range runes {
		if isSpace(r) || si >= len(symbols) {
			continue
		}
		for k := si; k < len(symbols) && k < si+lookahead; k++ {
			if first := []rune(symbols[k].text); len(first) > 0 && first[0] == r {
				chars[i] = symbols[k].conf
				matched[i] = true
				si = k + 1
				break
			}
		}
	}
	for i := range chars {
		if !matched[i] {
			chars[i] = mean
		}
	}
	return Result{Text: text, Confidence: mean, CharConfidence: chars}
}

// cleanText trims each line and drops blank lines, keeping line structure.
func cleanText(t string) string {
	t = strings.ReplaceAll(t, "\r", "")
	t = strings.ReplaceAll(t, "\t", " ")
	var lines []string
	for _, l := range strings.Split(t, "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
