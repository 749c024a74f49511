package statparse

import (
	"math"
	"strconv"
	"strings"

	"leaguestats/pkg/catalog"
)

// digitFold undoes letter-for-digit confusions inside numeric tokens.
var digitFold = strings.NewReplacer(
	"O", "0",
	"o", "0",
	"l", "1",
	"I", "1",
	"|", "1",
)

var (
	trueWords = map[string]bool{
		"yes": true, "true": true, "1": true, "y": true,
		"✓": true, "✔": true, "☑": true, "✅": true,
	}
	falseWords = map[string]bool{
		"no": true, "false": true, "0": true, "n": true,
		"✗": true, "✘": true, "☒": true, "❌": true,
	}
)

// booleanWord reports whether s belongs to the closed boolean vocabulary.
func booleanWord(s string) (value, ok bool) {
	k := strings.ToLower(trimNoise(s))
	if trueWords[k] {
		return true, true
	}
	if falseWords[k] {
		return false, true
	}
	return false, false
}

// numericShaped tokens are value candidates for numeric kinds.
func numericShaped(s string) bool { return hasDigit(s) }

// parseValue converts a candidate token for the given kind. ok is false when
// the token cannot be read; the field is then left absent.
func parseValue(kind catalog.Kind, raw string) (float64, bool) {
	if kind == catalog.KindBoolean {
		v, ok := booleanWord(raw)
		if !ok {
			return 0, false
		}
		if v {
			return 1, true
		}
		return 0, true
	}

	s := strings.Trim(raw, ",;()[]")
	if hasDigit(s) {
		s = digitFold.Replace(s)
	}
	percent := false
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		percent = true
	}
	if percent && kind != catalog.KindPercent {
		return 0, false
	}
	v, ok := parseDecimal(s)
	if !ok {
		return 0, false
	}
	switch kind {
	case catalog.KindPercent:
		return v / 100, true
	case catalog.KindInteger:
		if v != math.Trunc(v) {
			return 0, false
		}
	}
	return v, true
}

// parseDecimal accepts digit runs with at most one decimal point.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return 0, false
		}
	}
	if digits == 0 || dots > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
