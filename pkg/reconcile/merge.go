package reconcile

import (
	"math"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/normalize"
)

// Status is the record-level reconciliation result.
type Status string

const (
	StatusApplied    Status = "APPLIED"
	StatusSuperseded Status = "SUPERSEDED"
	StatusRejected   Status = "REJECTED"
)

// FieldResult is the per-field decision.
type FieldResult string

const (
	FieldUnchanged FieldResult = "unchanged"
	FieldUpdated   FieldResult = "updated"
	FieldRejected  FieldResult = "rejected"
	// FieldSkipped marks fields the incoming record only defaulted.
	FieldSkipped FieldResult = "skipped"
)

// Tolerances is the largest difference at which two readings still agree,
// per field kind. Booleans always compare exactly.
type Tolerances struct {
	Integer float64 `json:"integer"`
	Number  float64 `json:"number"`
	Percent float64 `json:"percent"`
}

func DefaultTolerances() Tolerances {
	return Tolerances{Integer: 0, Number: 0.05, Percent: 0.005}
}

func (t Tolerances) For(k catalog.Kind) float64 {
	switch k {
	case catalog.KindInteger:
		return t.Integer
	case catalog.KindNumber:
		return t.Number
	case catalog.KindPercent:
		return t.Percent
	}
	return 0
}

// agree compares with a small epsilon so that a zero tolerance still
// tolerates float noise.
func (t Tolerances) agree(k catalog.Kind, a, b float64) bool {
	return math.Abs(a-b) <= t.For(k)+1e-9
}

// Merge decides the next row state. It is pure: prev and rec are not modified.
// A nil prev means the key has no row yet.
func Merge(prev *Snapshot, key Key, rec normalize.Record, position string, cat *catalog.Catalog, tol Tolerances) (Snapshot, map[string]FieldResult, Status) {
	fields := make(map[string]FieldResult, cat.Len())

	if prev == nil {
		next := Snapshot{
			Key:             key,
			Position:        position,
			Values:          make(map[string]float64, cat.Len()),
			FieldConfidence: make(map[string]float64, cat.Len()),
		}
		for _, f := range cat.Fields() {
			next.Values[f.Name] = valueOr(rec.Values, f.Name, f.Default())
			next.FieldConfidence[f.Name] = rec.FieldConfidence[f.Name]
			if rec.Status[f.Name] == normalize.StatusDefaulted {
				fields[f.Name] = FieldSkipped
			} else {
				fields[f.Name] = FieldUpdated
			}
		}
		next.OverallConfidence = normalize.Overall(next.FieldConfidence, cat)
		return next, fields, StatusApplied
	}

	next := prev.Clone()
	if next.Values == nil {
		next.Values = map[string]float64{}
	}
	if next.FieldConfidence == nil {
		next.FieldConfidence = map[string]float64{}
	}
	updated, rejected := 0, 0
	for _, f := range cat.Fields() {
		name := f.Name
		in, inOK := rec.Values[name]
		if !inOK || rec.Status[name] == normalize.StatusDefaulted {
			fields[name] = FieldSkipped
			if _, has := next.Values[name]; !has {
				// catalog grew since the row was written
				next.Values[name] = f.Default()
				next.FieldConfidence[name] = 0
			}
			continue
		}
		inConf := rec.FieldConfidence[name]
		cur, has := prev.Values[name]
		if !has {
			next.Values[name] = in
			next.FieldConfidence[name] = inConf
			fields[name] = FieldUpdated
			updated++
			continue
		}
		if tol.agree(f.Kind, cur, in) {
			fields[name] = FieldUnchanged
			continue
		}
		if prev.FieldConfidence[name] > inConf {
			fields[name] = FieldRejected
			rejected++
			continue
		}
		next.Values[name] = in
		next.FieldConfidence[name] = inConf
		fields[name] = FieldUpdated
		updated++
	}

	switch {
	case updated > 0:
		if position != "" {
			next.Position = position
		}
		next.OverallConfidence = normalize.Overall(next.FieldConfidence, cat)
		return next, fields, StatusApplied
	case rejected > 0:
		return prev.Clone(), fields, StatusRejected
	}
	return prev.Clone(), fields, StatusSuperseded
}

func valueOr(m map[string]float64, k string, def float64) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return def
}
