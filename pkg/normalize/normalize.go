// Package normalize coerces parsed readings into a complete, bounds-checked
// record covering every catalog field.
package normalize

import (
	"fmt"
	"math"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/statparse"
)

// FieldStatus says where a record value came from.
type FieldStatus string

const (
	StatusOK        FieldStatus = "ok"
	StatusClamped   FieldStatus = "clamped"
	StatusDefaulted FieldStatus = "defaulted"
)

// Warning flags an out-of-range reading that was clamped.
type Warning struct {
	Field   string  `json:"field"`
	Raw     float64 `json:"raw"`
	Clamped float64 `json:"clamped"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v out of range, clamped to %v", w.Field, w.Raw, w.Clamped)
}

// Record is the canonical stat shape consumed by reconciliation, the formula
// engine and persistence. Booleans are stored as 1 or 0.
type Record struct {
	Values            map[string]float64     `json:"values"`
	FieldConfidence   map[string]float64     `json:"field_confidence"`
	Status            map[string]FieldStatus `json:"status"`
	OverallConfidence float64                `json:"overall_confidence"`
	Warnings          []Warning              `json:"warnings,omitempty"`
	CatalogVersion    string                 `json:"catalog_version"`
}

// Value returns a field's value and whether the record has it.
func (r Record) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Bool reads a boolean field.
func (r Record) Bool(name string) bool { return r.Values[name] != 0 }

// Defaulted lists fields that were filled rather than read.
func (r Record) Defaulted() []string {
	var out []string
	for name, s := range r.Status {
		if s == StatusDefaulted {
			out = append(out, name)
		}
	}
	return out
}

// Normalize never fails: every catalog field ends up in the record.
// Clamped and defaulted fields contribute zero confidence.
func Normalize(set statparse.Set, cat *catalog.Catalog) Record {
	fields := cat.Fields()
	rec := Record{
		Values:          make(map[string]float64, len(fields)),
		FieldConfidence: make(map[string]float64, len(fields)),
		Status:          make(map[string]FieldStatus, len(fields)),
		CatalogVersion:  cat.Version(),
	}
	for _, f := range fields {
		parsed, ok := set[f.Name]
		if !ok {
			rec.Values[f.Name] = f.Default()
			rec.FieldConfidence[f.Name] = 0
			rec.Status[f.Name] = StatusDefaulted
			continue
		}
		v, moved := f.Clamp(parsed.Value)
		if f.Kind == catalog.KindInteger {
			v = math.Round(v)
		}
		rec.Values[f.Name] = v
		if moved {
			rec.FieldConfidence[f.Name] = 0
			rec.Status[f.Name] = StatusClamped
			rec.Warnings = append(rec.Warnings, Warning{Field: f.Name, Raw: parsed.Value, Clamped: v})
			continue
		}
		rec.FieldConfidence[f.Name] = clamp01(parsed.Confidence)
		rec.Status[f.Name] = StatusOK
	}
	rec.OverallConfidence = Overall(rec.FieldConfidence, cat)
	return rec
}

// Overall is the weighted mean of per-field confidence, clamped to [0,1].
// Fields missing from conf count as zero.
func Overall(conf map[string]float64, cat *catalog.Catalog) float64 {
	var sum, weight float64
	for _, f := range cat.Fields() {
		w := f.EffectiveWeight()
		sum += w * conf[f.Name]
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return clamp01(sum / weight)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
