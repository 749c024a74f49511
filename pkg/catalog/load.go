package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadFile reads a catalog from a YAML, JSON or TOML file with a top-level
// "fields" list.
func LoadFile(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var fields []Field
	if err := v.UnmarshalKey("fields", &fields); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	c, err := New(fields)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadOrDefault loads path when set and falls back to the built-in catalog otherwise.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Watch reloads the catalog file into h whenever it changes on disk until ctx
// is cancelled. Events are debounced; a reload that fails validation is logged
// and the previous snapshot stays live.
func Watch(ctx context.Context, path string, h *Holder, log logrus.FieldLogger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// watch the directory so editors that replace the file are still seen
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	target := filepath.Clean(path)
	log.WithField("path", target).Info("watching catalog")

	go func() {
		defer w.Close()
		var pending time.Time
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.Now()
				}
			case <-ticker.C:
				if pending.IsZero() || time.Since(pending) < 300*time.Millisecond {
					continue
				}
				pending = time.Time{}
				c, err := LoadFile(target)
				if err != nil {
					log.WithError(err).Warn("catalog reload rejected, keeping previous snapshot")
					continue
				}
				if prev := h.Load(); prev != nil && prev.Version() == c.Version() {
					continue
				}
				h.Swap(c)
				log.WithFields(logrus.Fields{"version": c.Version(), "fields": c.Len()}).Info("catalog reloaded")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("catalog watch error")
			}
		}
	}()
	return nil
}
