// Package process ingests screenshots dropped into a directory. Each image
// needs a sidecar manifest (shot.png + shot.json) naming its regions and,
// optionally, the record it belongs to. Finished pairs move to processed/,
// unreadable ones to failed/. Transient OCR failures stay in place and are
// retried on the next scan.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"leaguestats/models"
	"leaguestats/pkg/ingest"
	"leaguestats/pkg/ocr"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var errBadManifest = errors.New("invalid manifest")

// Ingester is satisfied by *ingest.Pipeline.
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) (ingest.Response, error)
}

// AuditStore is satisfied by *store.UploadStore.
type AuditStore interface {
	Create(ctx context.Context, u *models.Upload) error
	ProcessedPath(ctx context.Context, path string) (bool, error)
}

type Options struct {
	Dir     string
	Workers int
	// ArchiveMaxBytes downscales archived images above this size; 0 keeps
	// them as they are.
	ArchiveMaxBytes int64
	// Stable is how long a file must stop changing before it is picked up.
	Stable time.Duration
}

// Stats counts what one scan did.
type Stats struct {
	Processed int64
	Failed    int64
	Deferred  int64
}

type Worker struct {
	opts   Options
	ingest Ingester
	audit  AuditStore
	log    logrus.FieldLogger

	mu       sync.Mutex
	inflight map[string]bool
}

// New builds a worker. audit may be nil.
func New(opts Options, in Ingester, audit AuditStore, log logrus.FieldLogger) (*Worker, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch directory is not set")
	}
	abs, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	opts.Dir = abs
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Stable <= 0 {
		opts.Stable = 300 * time.Millisecond
	}
	return &Worker{opts: opts, ingest: in, audit: audit, log: log, inflight: map[string]bool{}}, nil
}

func (w *Worker) processedDir() string { return filepath.Join(w.opts.Dir, "processed") }
func (w *Worker) failedDir() string    { return filepath.Join(w.opts.Dir, "failed") }

// Scan processes every image currently in the directory and waits for the
// batch to finish.
func (w *Worker) Scan(ctx context.Context) (Stats, error) {
	var st Stats
	files := listImageFiles(w.opts.Dir)
	if len(files) == 0 {
		return st, nil
	}
	w.log.WithField("count", len(files)).Info("scanning watch directory")

	ch := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				w.handle(ctx, p, &st)
			}
		}()
	}
	for _, name := range files {
		select {
		case ch <- filepath.Join(w.opts.Dir, name):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(ch)
	wg.Wait()
	return st, ctx.Err()
}

// Watch scans once, then follows the directory until ctx is cancelled.
// Events are debounced so half-written files are not read.
func (w *Worker) Watch(ctx context.Context) error {
	if _, err := w.Scan(ctx); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.opts.Dir); err != nil {
		return err
	}
	w.log.WithField("dir", w.opts.Dir).Info("watching for screenshots")

	fileCh := make(chan string, 64)
	var st Stats
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range fileCh {
				w.handle(ctx, p, &st)
			}
		}()
	}
	defer func() {
		close(fileCh)
		wg.Wait()
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			p := ev.Name
			if strings.EqualFold(filepath.Ext(p), ".json") {
				img, found := imageForManifest(p)
				if !found {
					continue
				}
				p = img
			} else if !isSupportedExt(p) {
				continue
			}
			pending[p] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		case <-ticker.C:
			now := time.Now()
			for p, t := range pending {
				if now.Sub(t) < w.opts.Stable {
					continue
				}
				delete(pending, p)
				select {
				case fileCh <- p:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// handle runs one image. It is safe to call twice for the same path.
func (w *Worker) handle(ctx context.Context, path string, st *Stats) {
	w.mu.Lock()
	if w.inflight[path] {
		w.mu.Unlock()
		return
	}
	w.inflight[path] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
	}()

	switch err := w.processFile(ctx, path); {
	case err == nil:
		atomic.AddInt64(&st.Processed, 1)
	case errors.Is(err, errDeferred):
		atomic.AddInt64(&st.Deferred, 1)
	default:
		atomic.AddInt64(&st.Failed, 1)
	}
}

var errDeferred = errors.New("deferred")

func (w *Worker) processFile(ctx context.Context, path string) error {
	log := w.log.WithField("file", filepath.Base(path))
	if _, err := os.Stat(path); err != nil {
		// moved or removed by an earlier pass
		return errDeferred
	}
	mpath := manifestPath(path)
	if _, err := os.Stat(mpath); err != nil {
		log.Debug("no manifest yet")
		return errDeferred
	}

	if w.audit != nil {
		done, err := w.audit.ProcessedPath(ctx, path)
		if err != nil {
			log.WithError(err).Warn("audit lookup failed")
		} else if done {
			log.Info("already ingested, archiving")
			w.archive(log, path, mpath, w.processedDir())
			return nil
		}
	}

	m, err := readManifest(mpath)
	if err != nil {
		log.WithError(err).Warn("bad manifest")
		w.record(ctx, log, path, "", ingest.Response{}, err)
		w.archive(log, path, mpath, w.failedDir())
		return err
	}
	key, err := m.Key()
	if err != nil {
		err = fmt.Errorf("%w: %v", errBadManifest, err)
		log.WithError(err).Warn("bad manifest")
		w.record(ctx, log, path, "", ingest.Response{}, err)
		w.archive(log, path, mpath, w.failedDir())
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("read failed")
		return errDeferred
	}

	resp, err := w.ingest.Run(ctx, ingest.Request{
		Image:    data,
		Regions:  m.Regions,
		Key:      key,
		Position: m.Position,
	})
	recordKey := ""
	if key != nil {
		recordKey = key.String()
	}
	if err != nil && transient(err) {
		log.WithError(err).Warn("ingest deferred")
		return errDeferred
	}
	w.record(ctx, log, path, recordKey, resp, err)
	if err != nil {
		log.WithError(err).Warn("ingest failed")
		w.archive(log, path, mpath, w.failedDir())
		return err
	}

	log.WithFields(logrus.Fields{
		"request_id": resp.RequestID,
		"status":     resp.Status,
		"confidence": resp.OverallConfidence,
		"stats":      len(resp.Record.Values),
	}).Info("screenshot ingested")
	w.archive(log, path, mpath, w.processedDir())
	return nil
}

// transient errors leave the file where it is for the next scan.
func transient(err error) bool {
	return errors.Is(err, ocr.ErrTimeout) ||
		errors.Is(err, ocr.ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (w *Worker) record(ctx context.Context, log logrus.FieldLogger, path, recordKey string, resp ingest.Response, runErr error) {
	if w.audit == nil {
		return
	}
	reqID := resp.RequestID
	if reqID == "" {
		reqID = fmt.Sprintf("watch-%d", time.Now().UnixNano())
	}
	up := models.Upload{
		RequestID:         reqID,
		FileName:          filepath.Base(path),
		StorePath:         path,
		ContentType:       mimeFromExt(path),
		RecordKey:         recordKey,
		Status:            string(resp.Status),
		OverallConfidence: resp.OverallConfidence,
	}
	if runErr != nil {
		up.Failed = true
		up.FailedReason = runErr.Error()
		if len(up.FailedReason) > 255 {
			up.FailedReason = up.FailedReason[:255]
		}
	}
	if err := w.audit.Create(ctx, &up); err != nil {
		log.WithError(err).Warn("upload audit row not saved")
	}
}

func (w *Worker) archive(log logrus.FieldLogger, image, manifest, dir string) {
	if _, err := moveInto(image, dir, w.opts.ArchiveMaxBytes); err != nil {
		log.WithError(err).Warn("move image failed")
	}
	if _, err := moveInto(manifest, dir, 0); err != nil {
		log.WithError(err).Warn("move manifest failed")
	}
}
