package statparse

import (
	"strings"
	"testing"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/ocr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsenceVersusZero(t *testing.T) {
	cat := catalog.Default()

	set := ParseText("Assists 1", cat)
	_, ok := set["goals"]
	assert.False(t, ok, "goals has no label in the text and must be absent")

	set = ParseText("Goals 0", cat)
	g, ok := set["goals"]
	require.True(t, ok)
	assert.Equal(t, 0.0, g.Value)
	assert.Greater(t, g.Confidence, 0.0)
	assert.Equal(t, "0", g.RawToken)
}

func TestParseKinds(t *testing.T) {
	cat := catalog.Default()
	text := strings.Join([]string{
		"Goals: 2",
		"Match Rating 8.5",
		"Pass Accuracy 87%",
		"Clean Sheet ✓",
		"MOTM no",
		"Shots on Target 3",
		"Shots 5",
	}, "\n")
	set := ParseText(text, cat)

	assert.Equal(t, 2.0, set["goals"].Value)
	assert.Equal(t, 8.5, set["rating"].Value)
	assert.InDelta(t, 0.87, set["pass_accuracy"].Value, 1e-9)
	assert.Equal(t, 1.0, set["clean_sheet"].Value)
	motm, ok := set["motm"]
	require.True(t, ok)
	assert.Equal(t, 0.0, motm.Value)
	assert.Equal(t, 3.0, set["shots_on_target"].Value)
	assert.Equal(t, 5.0, set["shots"].Value)
}

func TestParseRejectsUnparseableTokens(t *testing.T) {
	cat := catalog.Default()
	cases := map[string]string{
		"multiple decimal points": "Rating 7.5.1",
		"fractional integer":      "Goals 2.5",
		"stray characters":        "Saves 4x",
		"boolean outside vocab":   "Clean Sheet maybe",
		"percent on a count":      "Tackles 40%",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			set := ParseText(text, cat)
			assert.Empty(t, set, "got %+v", set)
		})
	}
}

func TestParseFuzzyLabelPenalty(t *testing.T) {
	cat := catalog.Default()
	exact := ParseText("Goals 3", cat)["goals"]
	fuzzy := ParseText("G0als 3", cat)["goals"]

	assert.False(t, exact.FuzzyLabel)
	assert.True(t, fuzzy.FuzzyLabel)
	assert.Equal(t, 3.0, fuzzy.Value)
	assert.InDelta(t, exact.Confidence*0.8, fuzzy.Confidence, 1e-9)
}

func TestParseDigitSubstitutionInValues(t *testing.T) {
	cat := catalog.Default()
	set := ParseText("Passes 4O\nMinutes 9O\nSaves O", cat)
	assert.Equal(t, 40.0, set["passes"].Value)
	assert.Equal(t, 90.0, set["minutes"].Value)
	// "O" alone has no digit so it is never read as zero
	_, ok := set["saves"]
	assert.False(t, ok)
}

func TestParseSeveralPairsPerLine(t *testing.T) {
	cat := catalog.Default()
	set := ParseText("Goals 2 | Assists 1 | Tackles - 4", cat)
	assert.Equal(t, 2.0, set["goals"].Value)
	assert.Equal(t, 1.0, set["assists"].Value)
	assert.Equal(t, 4.0, set["tackles"].Value)
}

func TestParseLabelWithoutValueStopsAtNextLabel(t *testing.T) {
	cat := catalog.Default()
	set := ParseText("Goals Assists 2", cat)
	_, ok := set["goals"]
	assert.False(t, ok)
	assert.Equal(t, 2.0, set["assists"].Value)
}

func TestParseHeaderRowLayout(t *testing.T) {
	cat := catalog.Default()
	set := ParseText("Goals Assists Rating\n2 1 7.4", cat)
	assert.Equal(t, 2.0, set["goals"].Value)
	assert.Equal(t, 1.0, set["assists"].Value)
	assert.Equal(t, 7.4, set["rating"].Value)
	assert.Equal(t, 1, set["rating"].Line)
}

func TestParseUsesCharacterConfidence(t *testing.T) {
	cat := catalog.Default()
	text := "Goals 12"
	chars := []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.5, 0.6, 0.4}
	res := ocr.Result{Text: text, Confidence: 0.8, CharConfidence: chars}

	set := Parse(res, cat, DefaultOptions())
	assert.InDelta(t, 0.5, set["goals"].Confidence, 1e-9)
}

func TestParseDuplicateKeepsMostConfident(t *testing.T) {
	cat := catalog.Default()
	text := "Goals 1\nGoals 2"
	chars := make([]float64, len([]rune(text)))
	for i := range chars {
		chars[i] = 0.5
	}
	chars[len(chars)-1] = 0.95
	set := Parse(ocr.Result{Text: text, Confidence: 0.6, CharConfidence: chars}, cat, DefaultOptions())
	assert.Equal(t, 2.0, set["goals"].Value)
}

func TestParseNeverPanics(t *testing.T) {
	cat := catalog.Default()
	inputs := []string{
		"",
		"\n\n\n",
		"%%%% ::: ===",
		"Goals",
		"Rating .",
		"✓✓✓ ✗",
		strings.Repeat("Goals ", 500),
		"\x00\xff\xfe",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { ParseText(in, cat) })
	}
	assert.Empty(t, ParseText("%%%% ::: ===", cat))
}

func TestParseMismatchedCharConfidence(t *testing.T) {
	cat := catalog.Default()
	// shorter confidence slice than text must not panic
	res := ocr.Result{Text: "Goals 3", Confidence: 0.7, CharConfidence: []float64{0.9}}
	set := Parse(res, cat, DefaultOptions())
	assert.InDelta(t, 0.7, set["goals"].Confidence, 1e-9)
}
