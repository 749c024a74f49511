package normalize

import (
	"testing"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/statparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Field{
		{Name: "goals", Kind: catalog.KindInteger, Min: 0, Max: 15, Critical: true},
		{Name: "rating", Kind: catalog.KindNumber, Min: 0, Max: 10, Critical: true},
		{Name: "pass_accuracy", Kind: catalog.KindPercent, Min: 0, Max: 1},
		{Name: "motm", Kind: catalog.KindBoolean},
		{Name: "minutes", Kind: catalog.KindInteger, Min: 1, Max: 130},
	})
	require.NoError(t, err)
	return c
}

func TestNormalizeAlwaysComplete(t *testing.T) {
	cat := smallCatalog(t)
	rec := Normalize(statparse.Set{}, cat)

	require.Len(t, rec.Values, cat.Len())
	for _, name := range cat.Names() {
		assert.Equal(t, StatusDefaulted, rec.Status[name], name)
		assert.Equal(t, 0.0, rec.FieldConfidence[name], name)
	}
	assert.Equal(t, 0.0, rec.Values["goals"])
	assert.False(t, rec.Bool("motm"))
	// default pulled into bounds
	assert.Equal(t, 1.0, rec.Values["minutes"])
	assert.Equal(t, 0.0, rec.OverallConfidence)
	assert.Equal(t, cat.Version(), rec.CatalogVersion)
}

func TestNormalizeClampsWithZeroConfidence(t *testing.T) {
	cat := smallCatalog(t)
	cases := []struct {
		field string
		raw   float64
		want  float64
	}{
		{"goals", 40, 15},
		{"rating", -2, 0},
		{"rating", 11.5, 10},
		{"pass_accuracy", 1.3, 1},
		{"minutes", 0, 1},
	}
	for _, tc := range cases {
		set := statparse.Set{tc.field: {Value: tc.raw, Confidence: 0.95}}
		rec := Normalize(set, cat)
		f, _ := cat.Field(tc.field)
		v := rec.Values[tc.field]
		assert.Equal(t, tc.want, v, tc.field)
		assert.True(t, f.InRange(v))
		assert.Equal(t, 0.0, rec.FieldConfidence[tc.field], tc.field)
		assert.Equal(t, StatusClamped, rec.Status[tc.field])
		require.Len(t, rec.Warnings, 1)
		assert.Equal(t, tc.raw, rec.Warnings[0].Raw)
	}
}

func TestNormalizeWeightsCriticalFields(t *testing.T) {
	cat := smallCatalog(t)
	set := statparse.Set{
		"goals":  {Value: 2, Confidence: 1},
		"rating": {Value: 7.5, Confidence: 1},
		"motm":   {Value: 1, Confidence: 1},
	}
	rec := Normalize(set, cat)
	// weights: goals 3, rating 3, pass_accuracy 1, motm 1, minutes 1
	assert.InDelta(t, 7.0/9.0, rec.OverallConfidence, 1e-9)
	assert.Equal(t, StatusOK, rec.Status["goals"])
	assert.True(t, rec.Bool("motm"))
	assert.ElementsMatch(t, []string{"pass_accuracy", "minutes"}, rec.Defaulted())
}

func TestNormalizeFromParsedText(t *testing.T) {
	cat := catalog.Default()
	rec := Normalize(statparse.ParseText("Goals 3\nAssists 1\nRating 12", cat), cat)
	assert.Equal(t, 3.0, rec.Values["goals"])
	assert.Equal(t, 1.0, rec.Values["assists"])
	assert.Equal(t, 10.0, rec.Values["rating"])
	assert.Equal(t, 0.0, rec.FieldConfidence["rating"])
	assert.Equal(t, 1.0, rec.FieldConfidence["goals"])
	assert.GreaterOrEqual(t, rec.OverallConfidence, 0.0)
	assert.LessOrEqual(t, rec.OverallConfidence, 1.0)
}

func TestOverallIgnoresUnknownFields(t *testing.T) {
	cat := smallCatalog(t)
	got := Overall(map[string]float64{"goals": 1, "bogus": 1}, cat)
	assert.InDelta(t, 3.0/9.0, got, 1e-9)
}
