package process

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leaguestats/models"
	"leaguestats/pkg/ingest"
	"leaguestats/pkg/ocr"
	"leaguestats/pkg/reconcile"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFunc func(ctx context.Context, req ingest.Request) (ingest.Response, error)

func (f ingestFunc) Run(ctx context.Context, req ingest.Request) (ingest.Response, error) {
	return f(ctx, req)
}

type memAudit struct {
	mu   sync.Mutex
	rows []models.Upload
	done map[string]bool
}

func (m *memAudit) Create(_ context.Context, u *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *u)
	return nil
}

func (m *memAudit) ProcessedPath(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[path], nil
}

func (m *memAudit) snapshot() []models.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Upload(nil), m.rows...)
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(3, 3, color.Black)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

const goodManifest = `{"regions":[{"x":0,"y":0,"width":40,"height":20}],"player_id":"p1","match_id":"m1","position":"ST"}`

func quietLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

func TestScanArchivesByOutcome(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "a.json"), goodManifest)
	writePNG(t, filepath.Join(dir, "b.png"))
	writeFile(t, filepath.Join(dir, "b.json"), `{"regions":`)
	writePNG(t, filepath.Join(dir, "c.png")) // no manifest yet
	writePNG(t, filepath.Join(dir, "d.png"))
	writeFile(t, filepath.Join(dir, "d.json"), `{"regions":[{"x":0,"y":0,"width":1,"height":1}],"position":"GK"}`)

	var mu sync.Mutex
	var seen []ingest.Request
	in := ingestFunc(func(_ context.Context, req ingest.Request) (ingest.Response, error) {
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		if req.Position == "GK" {
			return ingest.Response{RequestID: "r-d"}, ingest.ErrNoUsableRegion
		}
		return ingest.Response{RequestID: "r-a", Status: reconcile.StatusApplied, OverallConfidence: 0.9}, nil
	})
	audit := &memAudit{}
	w, err := New(Options{Dir: dir, Workers: 2}, in, audit, quietLogger())
	require.NoError(t, err)

	st, err := w.Scan(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Processed)
	assert.EqualValues(t, 2, st.Failed)
	assert.EqualValues(t, 1, st.Deferred)

	assert.FileExists(t, filepath.Join(dir, "processed", "a.png"))
	assert.FileExists(t, filepath.Join(dir, "processed", "a.json"))
	assert.FileExists(t, filepath.Join(dir, "failed", "b.png"))
	assert.FileExists(t, filepath.Join(dir, "failed", "d.json"))
	assert.FileExists(t, filepath.Join(dir, "c.png"))

	require.Len(t, seen, 2)
	for _, req := range seen {
		if req.Position == "ST" {
			require.NotNil(t, req.Key)
			assert.Equal(t, "p1", req.Key.PlayerID)
			assert.Len(t, req.Regions, 1)
		} else {
			assert.Nil(t, req.Key)
		}
	}

	rows := audit.snapshot()
	require.Len(t, rows, 3)
	failed := 0
	for _, r := range rows {
		if r.Failed {
			failed++
			assert.NotEmpty(t, r.FailedReason)
		} else {
			assert.Equal(t, "image/png", r.ContentType)
			assert.Equal(t, string(reconcile.StatusApplied), r.Status)
			assert.NotEmpty(t, r.RecordKey)
		}
	}
	assert.Equal(t, 2, failed)
}

func TestScanLeavesTransientFailuresInPlace(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "a.json"), goodManifest)

	calls := 0
	in := ingestFunc(func(context.Context, ingest.Request) (ingest.Response, error) {
		calls++
		if calls == 1 {
			return ingest.Response{}, ocr.ErrTimeout
		}
		return ingest.Response{RequestID: "ok"}, nil
	})
	audit := &memAudit{}
	w, err := New(Options{Dir: dir, Workers: 1}, in, audit, quietLogger())
	require.NoError(t, err)

	st, err := w.Scan(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Deferred)
	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.Empty(t, audit.snapshot())

	st, err = w.Scan(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Processed)
	assert.FileExists(t, filepath.Join(dir, "processed", "a.png"))
}

func TestScanSkipsAlreadyIngested(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	writePNG(t, img)
	writeFile(t, filepath.Join(dir, "a.json"), goodManifest)

	in := ingestFunc(func(context.Context, ingest.Request) (ingest.Response, error) {
		t.Error("ingest must not run twice")
		return ingest.Response{}, nil
	})
	w, err := New(Options{Dir: dir}, in, &memAudit{done: map[string]bool{img: true}}, quietLogger())
	require.NoError(t, err)

	st, err := w.Scan(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Processed)
	assert.FileExists(t, filepath.Join(dir, "processed", "a.png"))
}

func TestManifestKey(t *testing.T) {
	k, err := Manifest{PlayerID: "p", SeasonID: "s", TeamID: "t"}.Key()
	require.NoError(t, err)
	assert.Equal(t, reconcile.ScopeSeason, k.Scope)

	k, err = Manifest{}.Key()
	require.NoError(t, err)
	assert.Nil(t, k)

	_, err = Manifest{PlayerID: "p", MatchID: "m", SeasonID: "s"}.Key()
	assert.Error(t, err)
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	done := make(chan string, 1)
	in := ingestFunc(func(_ context.Context, req ingest.Request) (ingest.Response, error) {
		done <- req.Position
		return ingest.Response{RequestID: "w"}, nil
	})
	w, err := New(Options{Dir: dir, Stable: 50 * time.Millisecond}, in, nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	writePNG(t, filepath.Join(dir, "late.png"))
	writeFile(t, filepath.Join(dir, "late.json"), goodManifest)

	select {
	case pos := <-done:
		assert.Equal(t, "ST", pos)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not pick up the screenshot")
	}
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "processed", "late.json"))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestMoveIntoDownscalesLargeImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.png")
	img := image.NewNRGBA(image.Rect(0, 0, 300, 300))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 31)
	}
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	fi, err := os.Stat(src)
	require.NoError(t, err)

	dst, err := moveInto(src, filepath.Join(dir, "out"), fi.Size()/4)
	require.NoError(t, err)
	assert.NoFileExists(t, src)

	out, err := os.Open(dst)
	require.NoError(t, err)
	defer out.Close()
	cfg, err := png.DecodeConfig(out)
	require.NoError(t, err)
	assert.Less(t, cfg.Width, 300)
}
