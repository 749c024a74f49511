// Package ingest runs one screenshot through extraction, OCR, parsing,
// normalization and, when a key is supplied, reconciliation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/logging"
	"leaguestats/pkg/normalize"
	"leaguestats/pkg/ocr"
	"leaguestats/pkg/reconcile"
	"leaguestats/pkg/region"
	"leaguestats/pkg/statparse"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoUsableRegion means every region in the request was rejected.
var ErrNoUsableRegion = errors.New("no usable region")

// Request is one screenshot with its annotated regions. Key is optional;
// without it the record is extracted but not persisted.
type Request struct {
	RequestID string
	Image     []byte
	Regions   []region.Region
	Key       *reconcile.Key
	Position  string
}

// RegionError reports a region that was skipped.
type RegionError struct {
	Index  int           `json:"index"`
	Region region.Region `json:"region"`
	Reason string        `json:"reason"`
}

// Response is the best-effort result. Status is empty when nothing was
// reconciled.
type Response struct {
	RequestID         string             `json:"request_id"`
	Record            normalize.Record   `json:"record"`
	OverallConfidence float64            `json:"overall_confidence"`
	FieldConfidence   map[string]float64 `json:"field_confidence"`
	Status            reconcile.Status   `json:"status,omitempty"`
	Outcome           *reconcile.Outcome `json:"outcome,omitempty"`
	RegionErrors      []RegionError      `json:"region_errors,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	Text              string             `json:"text"`
	Parsed            statparse.Set      `json:"parsed"`
}

type Options struct {
	Extract region.Options
	Parse   statparse.Options
	// OCRWorkers bounds concurrent recognitions per request.
	OCRWorkers int
}

// Pipeline is safe for concurrent use; each Run reads the catalog snapshot
// current at its start.
type Pipeline struct {
	catalogs  *catalog.Holder
	extractor *region.Extractor
	ocr       ocr.Recognizer
	reconcile *reconcile.Engine
	parseOpts statparse.Options
	workers   int
	log       logrus.FieldLogger
}

// New wires a pipeline. rec may be nil, in which case keys are ignored.
func New(catalogs *catalog.Holder, recognizer ocr.Recognizer, rec *reconcile.Engine, opts Options, log logrus.FieldLogger) *Pipeline {
	if opts.OCRWorkers <= 0 {
		opts.OCRWorkers = 4
	}
	return &Pipeline{
		catalogs:  catalogs,
		extractor: region.NewExtractor(opts.Extract),
		ocr:       recognizer,
		reconcile: rec,
		parseOpts: opts.Parse,
		workers:   opts.OCRWorkers,
		log:       log,
	}
}

// Run processes one request. Request-level failures are a corrupt image, an
// empty region list, no usable region, an OCR timeout or unavailable engine,
// and store errors. Everything else is reported inside the Response.
func (p *Pipeline) Run(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	resp := Response{RequestID: req.RequestID}
	log := p.log.WithField("request_id", req.RequestID)
	cat := p.catalogs.Load()

	img, err := region.DecodeBytes(req.Image)
	if err != nil {
		return resp, err
	}
	crops, err := p.extractor.Extract(img, req.Regions)
	if err != nil {
		return resp, err
	}

	var usable []region.Crop
	for _, c := range crops {
		if c.OK() {
			usable = append(usable, c)
			continue
		}
		reason := "unusable"
		if c.Err != nil {
			reason = c.Err.Error()
		}
		resp.RegionErrors = append(resp.RegionErrors, RegionError{Index: c.Index, Region: c.Region, Reason: reason})
	}
	if len(usable) == 0 {
		return resp, ErrNoUsableRegion
	}

	texts, err := p.recognize(ctx, usable)
	if err != nil {
		log.WithError(err).Warn("ocr failed")
		return resp, err
	}
	joined := ocr.Join(texts...)
	resp.Text = joined.Text
	log.WithField("text", logging.Snippet(joined.Text, 120)).Debug("ocr text")

	set := statparse.New(cat, p.parseOpts).Parse(joined)
	rec := normalize.Normalize(set, cat)
	resp.Parsed = set
	resp.Record = rec
	resp.OverallConfidence = rec.OverallConfidence
	resp.FieldConfidence = rec.FieldConfidence
	for _, w := range rec.Warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	if len(set) == 0 {
		resp.Warnings = append(resp.Warnings, "no statistics recognised")
	}

	if req.Key != nil && p.reconcile != nil {
		if len(set) == 0 {
			// an empty read carries no information worth a row
			resp.Warnings = append(resp.Warnings, "nothing to reconcile")
		} else {
			out, err := p.reconcile.Apply(ctx, *req.Key, rec, req.Position, cat)
			if err != nil {
				return resp, fmt.Errorf("reconcile: %w", err)
			}
			resp.Outcome = &out
			resp.Status = out.Status
		}
	}

	log.WithFields(logrus.Fields{
		"regions":    len(crops),
		"skipped":    len(resp.RegionErrors),
		"fields":     len(set),
		"confidence": fmt.Sprintf("%.3f", rec.OverallConfidence),
		"status":     resp.Status,
		"elapsed":    time.Since(start).String(),
	}).Info("ingest done")
	return resp, nil
}

// recognize runs OCR over crops with bounded parallelism and returns results
// in crop order. The first failure cancels the rest.
func (p *Pipeline) recognize(ctx context.Context, crops []region.Crop) ([]ocr.Result, error) {
	out := make([]ocr.Result, len(crops))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range crops {
		i := i
		g.Go(func() error {
			png, err := region.EncodePNG(crops[i].Image)
			if err != nil {
				return fmt.Errorf("encode region %d: %w", crops[i].Index, err)
			}
			res, err := p.ocr.Recognize(gctx, png)
			if err != nil {
				return fmt.Errorf("ocr region %d: %w", crops[i].Index, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
