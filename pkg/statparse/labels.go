package statparse

import (
	"sort"
	"strings"

	"leaguestats/pkg/catalog"
)

// label is one recognised phrase for a field, split into words.
type label struct {
	field  string
	words  []string
	folded []string
}

type labelMatch struct {
	field string
	n     int
	fuzzy bool
	text  string
}

// labelFold collapses characters OCR commonly confuses inside words.
var labelFold = strings.NewReplacer(
	"0", "o",
	"1", "l",
	"i", "l",
	"|", "l",
	"!", "l",
	"5", "s",
)

func foldLabel(s string) string { return labelFold.Replace(s) }

func buildLabels(cat *catalog.Catalog) []label {
	var out []label
	for _, f := range cat.Fields() {
		for _, l := range f.Labels() {
			words := strings.Fields(l)
			folded := make([]string, len(words))
			for i, w := range words {
				folded[i] = foldLabel(w)
			}
			out = append(out, label{field: f.Name, words: words, folded: folded})
		}
	}
	// longest phrase first so "shots on target" wins over "shots"
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].words) > len(out[j].words) })
	return out
}

func labelKey(s string) string {
	return strings.ToLower(trimNoise(s))
}

// matchLabel finds the best label starting at toks[i]. Longer phrases win,
// and at equal length an exact reading beats a fuzzy one.
func matchLabel(labels []label, toks []token, i int) (labelMatch, bool) {
	var best labelMatch
	found := false
	for _, l := range labels {
		if found && len(l.words) < best.n {
			break
		}
		if i+len(l.words) > len(toks) {
			continue
		}
		fuzzy := false
		ok := true
		for k, w := range l.words {
			key := labelKey(toks[i+k].text)
			if key == w {
				continue
			}
			// a bare number is a value, never a misread label
			if hasLetter(key) && foldLabel(key) == l.folded[k] {
				fuzzy = true
				continue
			}
			ok = false
			break
		}
		if !ok {
			continue
		}
		if !found || (best.fuzzy && !fuzzy) {
			best = labelMatch{field: l.field, n: len(l.words), fuzzy: fuzzy, text: strings.Join(l.words, " ")}
			found = true
		}
	}
	return best, found
}
