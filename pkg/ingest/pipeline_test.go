package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/logging"
	"leaguestats/pkg/ocr"
	"leaguestats/pkg/reconcile"
	"leaguestats/pkg/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func screenshot(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			c := color.NRGBA{R: 240, G: 240, B: 240, A: 255}
			if (x/7+y/5)%3 == 0 {
				c = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// byWidth answers with the text registered for the crop's width, so results
// do not depend on which goroutine runs first.
func byWidth(texts map[int]string, calls *int32) ocr.Recognizer {
	return ocr.RecognizerFunc(func(ctx context.Context, b []byte) (ocr.Result, error) {
		atomic.AddInt32(calls, 1)
		cfg, err := png.DecodeConfig(bytes.NewReader(b))
		if err != nil {
			return ocr.Result{}, err
		}
		text, ok := texts[cfg.Width]
		if !ok {
			return ocr.Result{}, fmt.Errorf("unexpected crop width %d", cfg.Width)
		}
		return ocr.Result{Text: text, Confidence: 0.9}, nil
	})
}

var twoRegions = []region.Region{
	{X: 0, Y: 0, Width: 200, Height: 60},
	{X: 0, Y: 100, Width: 100, Height: 60},
}

func newPipeline(rec ocr.Recognizer, store reconcile.Store) *Pipeline {
	var engine *reconcile.Engine
	if store != nil {
		engine = reconcile.NewEngine(store, reconcile.Options{Tolerances: reconcile.DefaultTolerances()}, logging.Discard())
	}
	return New(catalog.NewHolder(catalog.Default()), rec, engine, Options{
		Extract: region.DefaultOptions(),
	}, logging.Discard())
}

func TestRunExtractsAndReconciles(t *testing.T) {
	var calls int32
	rec := byWidth(map[int]string{200: "Goals 2\nAssists 1", 100: "Rating 7.5"}, &calls)
	store := reconcile.NewMemoryStore()
	p := newPipeline(rec, store)
	key := reconcile.MatchKey("p1", "m1")

	resp, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: twoRegions, Key: &key, Position: "ST"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "Goals 2\nAssists 1\nRating 7.5", resp.Text)
	assert.Equal(t, 2.0, resp.Record.Values["goals"])
	assert.Equal(t, 1.0, resp.Record.Values["assists"])
	assert.Equal(t, 7.5, resp.Record.Values["rating"])
	assert.InDelta(t, 0.9, resp.FieldConfidence["goals"], 1e-9)
	assert.Zero(t, resp.FieldConfidence["saves"])
	assert.Greater(t, resp.OverallConfidence, 0.0)
	assert.Equal(t, reconcile.StatusApplied, resp.Status)
	assert.Empty(t, resp.RegionErrors)
	assert.Equal(t, catalog.Default().Version(), resp.Record.CatalogVersion)

	again, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: twoRegions, Key: &key})
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusSuperseded, again.Status)
	assert.Equal(t, 1, store.Len())
}

func TestRunWithoutKeyDoesNotPersist(t *testing.T) {
	var calls int32
	store := reconcile.NewMemoryStore()
	p := newPipeline(byWidth(map[int]string{200: "Goals 4", 100: ""}, &calls), store)
	resp, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: twoRegions})
	require.NoError(t, err)
	assert.Equal(t, 4.0, resp.Record.Values["goals"])
	assert.Empty(t, resp.Status)
	assert.Nil(t, resp.Outcome)
	assert.Zero(t, store.Len())
}

func TestRunIsolatesBadRegions(t *testing.T) {
	var calls int32
	p := newPipeline(byWidth(map[int]string{200: "Goals 1"}, &calls), nil)
	regions := []region.Region{
		{X: -5, Y: 0, Width: 50, Height: 50},
		twoRegions[0],
		{X: 390, Y: 190, Width: 50, Height: 50},
	}
	resp, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: regions})
	require.NoError(t, err)
	require.Len(t, resp.RegionErrors, 2)
	assert.Equal(t, 0, resp.RegionErrors[0].Index)
	assert.Equal(t, 2, resp.RegionErrors[1].Index)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, 1.0, resp.Record.Values["goals"])
}

func TestRunRequestLevelFailures(t *testing.T) {
	var calls int32
	p := newPipeline(byWidth(nil, &calls), nil)

	_, err := p.Run(context.Background(), Request{Image: []byte("not an image"), Regions: twoRegions})
	assert.ErrorIs(t, err, region.ErrCorruptImage)

	_, err = p.Run(context.Background(), Request{Image: screenshot(t)})
	assert.ErrorIs(t, err, region.ErrNoRegions)

	resp, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: []region.Region{{X: 0, Y: 0, Width: 4, Height: 4}}})
	assert.ErrorIs(t, err, ErrNoUsableRegion)
	assert.Len(t, resp.RegionErrors, 1)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRunSurfacesOCRTimeout(t *testing.T) {
	slow := ocr.RecognizerFunc(func(ctx context.Context, _ []byte) (ocr.Result, error) {
		return ocr.Result{}, ocr.ErrTimeout
	})
	store := reconcile.NewMemoryStore()
	p := newPipeline(slow, store)
	key := reconcile.MatchKey("p1", "m1")
	_, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: twoRegions, Key: &key})
	assert.ErrorIs(t, err, ocr.ErrTimeout)
	assert.Zero(t, store.Len())
}

func TestRunSkipsReconcileWhenNothingRead(t *testing.T) {
	var calls int32
	store := reconcile.NewMemoryStore()
	p := newPipeline(byWidth(map[int]string{200: "???", 100: "..."}, &calls), store)
	key := reconcile.MatchKey("p1", "m1")
	resp, err := p.Run(context.Background(), Request{Image: screenshot(t), Regions: twoRegions, Key: &key})
	require.NoError(t, err)
	assert.Empty(t, resp.Status)
	assert.Contains(t, resp.Warnings, "nothing to reconcile")
	assert.Zero(t, store.Len())
	assert.Zero(t, resp.OverallConfidence)
}
