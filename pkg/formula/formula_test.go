package formula

import (
	"errors"
	"sync"
	"testing"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/normalize"
	"leaguestats/pkg/statparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Field{
		{Name: "goals", Kind: catalog.KindInteger, Min: 0, Max: 15},
		{Name: "assists", Kind: catalog.KindInteger, Min: 0, Max: 15},
		{Name: "shots", Kind: catalog.KindInteger, Min: 0, Max: 40},
		{Name: "rating", Kind: catalog.KindNumber, Min: 0, Max: 10},
		{Name: "motm", Kind: catalog.KindBoolean},
		{Name: "clean_sheet", Kind: catalog.KindBoolean},
	})
	require.NoError(t, err)
	return cat
}

func mustCompile(t *testing.T, src string, cat *catalog.Catalog) *Compiled {
	t.Helper()
	c, err := Compile(src, cat)
	require.NoError(t, err, src)
	return c
}

func TestCompileAndEvaluateWeightedSum(t *testing.T) {
	cat := testCatalog(t)
	c := mustCompile(t, "(goals * 2) + (assists * 1)", cat)
	assert.Equal(t, []string{"assists", "goals"}, c.Fields)
	assert.Equal(t, cat.Version(), c.CatalogVersion)

	res, err := c.Evaluate(Vars{"goals": 3, "assists": 1})
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.Value)
	assert.False(t, res.Degenerate)
	assert.Empty(t, res.Flags)
}

func TestEvaluateAgainstNormalizedRecord(t *testing.T) {
	cat := testCatalog(t)
	rec := normalize.Normalize(statparse.ParseText("Goals 2\nAssists 3\nMotm yes", cat), cat)
	c := mustCompile(t, "goals + assists + (motm ? 5 : 0)", cat)
	res, err := c.Evaluate(rec)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Value)
}

func TestDivisionByZeroIsFlagged(t *testing.T) {
	cat := testCatalog(t)
	c := mustCompile(t, "goals / shots", cat)

	res, err := c.Evaluate(Vars{"goals": 0, "shots": 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Value)
	assert.True(t, res.Degenerate)
	assert.Equal(t, []string{FlagDivisionByZero}, res.Flags)

	// a computed zero is not degenerate
	res, err = c.Evaluate(Vars{"goals": 0, "shots": 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Value)
	assert.False(t, res.Degenerate)

	mixed := mustCompile(t, "goals * 2 + goals / shots", cat)
	res, err = mixed.Evaluate(Vars{"goals": 2, "shots": 0})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Value)
	assert.True(t, res.Degenerate)
}

func TestNonFiniteIsFlagged(t *testing.T) {
	cat := testCatalog(t)
	c := mustCompile(t, "rating * rating", cat)
	res, err := c.Evaluate(Vars{"rating": 1e308})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Value)
	assert.True(t, res.Degenerate)
	assert.Equal(t, []string{FlagNonFinite}, res.Flags)
}

func TestMissingFieldIsEvaluationError(t *testing.T) {
	cat := testCatalog(t)
	c := mustCompile(t, "goals + assists", cat)
	_, err := c.Evaluate(Vars{"goals": 1})
	var ee *EvaluationError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "assists", ee.Field)
}

func TestPrecedenceAndAssociativity(t *testing.T) {
	cat := testCatalog(t)
	vars := Vars{"goals": 3, "assists": 1, "shots": 6, "rating": 7.5, "motm": 1, "clean_sheet": 0}
	cases := []struct {
		src  string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 - 4 - 3", 3},
		{"12 / 2 / 3", 2},
		{"-goals + 5", 2},
		{"- -goals", 3},
		{".5 * shots", 3},
		{"goals / shots * 2", 1},
		{"goals > 2 ? 10 : goals > 0 ? 5 : 0", 10},
		{"goals > 1 && assists > 1 ? 1 : 0", 0},
		{"goals > 1 || assists > 1 ? 1 : 0", 1},
		{"goals + 1 > shots - 3 ? 1 : 0", 1},
		{"motm == 1 ? rating : 0", 7.5},
		{"!clean_sheet ? 1 : 2", 1},
		{"motm && !clean_sheet ? 4 : 0", 4},
		{"motm != clean_sheet ? 1 : 0", 1},
		{"(goals >= 3) == (assists <= 1) ? 1 : 0", 1},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			c := mustCompile(t, tc.src, cat)
			res, err := c.Evaluate(vars)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, res.Value, 1e-9)
		})
	}
}

func TestTernaryNestsToTheRight(t *testing.T) {
	cat := testCatalog(t)
	c := mustCompile(t, "goals > 2 ? 10 : goals > 0 ? 5 : 0", cat)
	for goals, want := range map[float64]float64{3: 10, 1: 5, 0: 0} {
		res, err := c.Evaluate(Vars{"goals": goals})
		require.NoError(t, err)
		assert.Equal(t, want, res.Value, "goals=%v", goals)
	}
}

func TestCompileErrorsCarryPosition(t *testing.T) {
	cat := testCatalog(t)
	cases := []struct {
		src   string
		pos   int
		token string
	}{
		{"goals + unknown", 8, "unknown"},
		{"goals + motm", 8, "motm"},
		{"goals * (assists + 1", 8, "("},
		{"goals +", 7, ""},
		{"goals $ 2", 6, "$"},
		{"goals = 2", 6, "="},
		{"1.2.3", 0, "1.2.3"},
		{"2goals", 0, "2g"},
		{"goals ? 1 : 0", 6, "?"},
		{"motm == 2 ? 1 : 0", 5, "=="},
		{"motm > 0 ? 1 : 0", 5, ">"},
		{"!goals", 0, "!"},
		{"goals && motm ? 1 : 0", 6, "&&"},
		{"motm ? 1 : 0 ? 1 : 0", 13, "?"},
		{"goals 2", 6, "2"},
		{"(goals))", 7, ")"},
		{"", 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			_, err := Compile(tc.src, cat)
			var fe *Error
			require.True(t, errors.As(err, &fe), "want *Error, got %v", err)
			assert.Equal(t, tc.pos, fe.Pos, fe.Error())
			assert.Equal(t, tc.token, fe.Token)
			assert.NotEmpty(t, fe.Message)
		})
	}
}

func TestBooleanResultIsRejected(t *testing.T) {
	cat := testCatalog(t)
	_, err := Compile("goals > 1", cat)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Message, "must produce a number")

	_, err = Compile("motm", cat)
	require.Error(t, err)

	_, err = Compile("motm ? 1 : clean_sheet", cat)
	require.Error(t, err)
}

func TestDeepNestingIsRejected(t *testing.T) {
	cat := testCatalog(t)
	src := ""
	for i := 0; i < 500; i++ {
		src += "("
	}
	src += "goals"
	for i := 0; i < 500; i++ {
		src += ")"
	}
	_, err := Compile(src, cat)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Message, "nested too deeply")
}

func TestCompiledIsSafeForConcurrentUse(t *testing.T) {
	cat := testCatalog(t)
	c := mustCompile(t, "goals / shots + assists", cat)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shots := float64(i % 2)
			res, err := c.Evaluate(Vars{"goals": 2, "shots": shots, "assists": 1})
			assert.NoError(t, err)
			assert.Equal(t, shots == 0, res.Degenerate)
		}(i)
	}
	wg.Wait()
}
