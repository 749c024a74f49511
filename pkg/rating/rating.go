// Package rating ranks players by a compiled formula and builds a team of the
// week from per-slot formulas.
package rating

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"leaguestats/pkg/formula"
	"leaguestats/pkg/normalize"
	"leaguestats/pkg/reconcile"

	"golang.org/x/sync/errgroup"
)

// Candidate is re-exported so callers need only this package.
type Candidate = formula.Candidate

// Ranked is one scored candidate. Index is the candidate's position in the
// input, used as the final tie-break.
type Ranked struct {
	Candidate  Candidate `json:"candidate"`
	Score      float64   `json:"score"`
	Degenerate bool      `json:"degenerate"`
	Flags      []string  `json:"flags,omitempty"`
	Index      int       `json:"index"`
}

// Summary counts what happened to every candidate.
type Summary struct {
	Total      int            `json:"total"`
	Scored     int            `json:"scored"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Degenerate int            `json:"degenerate"`
	Errors     map[string]int `json:"errors,omitempty"` // failure counts by field
}

type Options struct {
	TopN      int
	Formation string
	Workers   int
}

type outcome struct {
	res     formula.Result
	skipped bool
	err     error
}

// Rank scores candidates in parallel, drops skipped and failed ones, and
// orders the rest by score, then overall confidence, then input order. TopN
// of zero or less returns everything. Only ctx cancellation is returned as an
// error; a single player's failure never aborts the run.
func Rank(ctx context.Context, engine *formula.Engine, c *formula.Compiled, formulaPosition string, candidates []Candidate, opts Options) ([]Ranked, Summary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range candidates {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, skipped, err := engine.Score(c, formulaPosition, candidates[i], opts.Formation)
			results[i] = outcome{res: res, skipped: skipped, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Summary{}, err
	}

	sum := Summary{Total: len(candidates)}
	ranked := make([]Ranked, 0, len(candidates))
	for i, o := range results {
		switch {
		case o.skipped:
			sum.Skipped++
			continue
		case o.err != nil:
			sum.Failed++
			var ee *formula.EvaluationError
			if errors.As(o.err, &ee) {
				if sum.Errors == nil {
					sum.Errors = map[string]int{}
				}
				sum.Errors[ee.Field]++
			}
			continue
		}
		sum.Scored++
		if o.res.Degenerate {
			sum.Degenerate++
		}
		ranked = append(ranked, Ranked{
			Candidate:  candidates[i],
			Score:      o.res.Value,
			Degenerate: o.res.Degenerate,
			Flags:      o.res.Flags,
			Index:      i,
		})
	}

	sort.SliceStable(ranked, func(a, b int) bool { return less(ranked[a], ranked[b]) })
	if opts.TopN > 0 && len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}
	return ranked, sum, nil
}

func less(a, b Ranked) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	ac, bc := a.Candidate.Record.OverallConfidence, b.Candidate.Record.OverallConfidence
	if ac != bc {
		return ac > bc
	}
	return a.Index < b.Index
}

// FromSnapshot turns a stored row into a candidate.
func FromSnapshot(s reconcile.Snapshot) Candidate {
	return Candidate{
		PlayerID: s.Key.PlayerID,
		Position: s.Position,
		Record: normalize.Record{
			Values:            s.Values,
			FieldConfidence:   s.FieldConfidence,
			OverallConfidence: s.OverallConfidence,
		},
	}
}

func FromSnapshots(rows []reconcile.Snapshot) []Candidate {
	out := make([]Candidate, len(rows))
	for i, r := range rows {
		out[i] = FromSnapshot(r)
	}
	return out
}
