package ocr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"leaguestats/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Recognize(ctx context.Context, png []byte) (Result, error) {
	args := m.Called(ctx, png)
	return args.Get(0).(Result), args.Error(1)
}

func TestAlignMatchesSymbolsToRunes(t *testing.T) {
	res := align("Goals 3", []symbol{
		{"G", 0.9}, {"o", 0.8}, {"a", 0.9}, {"l", 0.7}, {"s", 0.9}, {"3", 0.5},
	})
	require.Len(t, res.CharConfidence, 7)
	assert.InDelta(t, 0.5, res.CharConfidence[6], 1e-9)
	assert.InDelta(t, 0.9, res.CharConfidence[0], 1e-9)
	// the space gets the mean
	assert.InDelta(t, res.Confidence, res.CharConfidence[5], 1e-9)
	assert.InDelta(t, (0.9+0.8+0.9+0.7+0.9+0.5)/6, res.Confidence, 1e-9)
}

func TestAlignSkipsUnmatchedSymbols(t *testing.T) {
	res := align("ab", []symbol{{"x", 0.1}, {"a", 0.9}, {"b", 0.8}})
	assert.InDelta(t, 0.9, res.CharConfidence[0], 1e-9)
	assert.InDelta(t, 0.8, res.CharConfidence[1], 1e-9)
}

func TestSpanConfidence(t *testing.T) {
	r := Result{Text: "ab 12", Confidence: 0.5, CharConfidence: []float64{1, 1, 0.5, 0.4, 0.6}}
	assert.InDelta(t, 0.5, r.SpanConfidence(3, 5), 1e-9)
	// whitespace only span falls back to the scalar
	assert.InDelta(t, 0.5, r.SpanConfidence(2, 3), 1e-9)

	flat := Result{Text: "12", Confidence: 0.7}
	assert.InDelta(t, 0.7, flat.SpanConfidence(0, 2), 1e-9)
}

func TestJoinKeepsAlignment(t *testing.T) {
	j := Join(
		Result{Text: "Goals 2", Confidence: 0.8, CharConfidence: []float64{.8, .8, .8, .8, .8, .8, .8}},
		Result{Text: "Shots 4", Confidence: 0.6, CharConfidence: []float64{.6, .6, .6, .6, .6, .6, .6}},
	)
	assert.Equal(t, "Goals 2\nShots 4", j.Text)
	require.Len(t, j.CharConfidence, len([]rune(j.Text)))
	assert.InDelta(t, 0.7, j.Confidence, 1e-9)

	mixed := Join(Result{Text: "a", Confidence: 1, CharConfidence: []float64{1}}, Result{Text: "b", Confidence: 0})
	assert.Nil(t, mixed.CharConfidence)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Goals 2\nAssists 1", cleanText("  Goals\t 2 \r\n\n Assists   1\n"))
	assert.Equal(t, "", cleanText(" \n \n"))
}

func TestGuardedTimeout(t *testing.T) {
	slow := RecognizerFunc(func(ctx context.Context, _ []byte) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	g := NewGuarded(slow, GuardOptions{Timeout: 20 * time.Millisecond}, logging.Discard())

	_, err := g.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTimeout)
	// timeouts do not count against the engine
	assert.Equal(t, "closed", g.State())
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	m := &mockRecognizer{}
	m.On("Recognize", mock.Anything, mock.Anything).Return(Result{}, errors.New("engine crashed"))

	g := NewGuarded(m, GuardOptions{FailureThreshold: 2, Cooldown: time.Minute}, logging.Discard())
	for i := 0; i < 2; i++ {
		_, err := g.Recognize(context.Background(), []byte("png"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	_, err := g.Recognize(context.Background(), []byte("png"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "open", g.State())
	// no retries: exactly one engine call per request that reached it
	m.AssertNumberOfCalls(t, "Recognize", 2)
}

func TestGuardedPassesResultThrough(t *testing.T) {
	var calls int32
	ok := RecognizerFunc(func(ctx context.Context, _ []byte) (Result, error) {
		atomic.AddInt32(&calls, 1)
		return Result{Text: "Goals 1", Confidence: 0.9}, nil
	})
	g := NewGuarded(ok, GuardOptions{Timeout: time.Second}, logging.Discard())
	res, err := g.Recognize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Goals 1", res.Text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
