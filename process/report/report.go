// Package report prints plain-text leaderboards for the CLI.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"leaguestats/pkg/formula"
	"leaguestats/pkg/rating"
	"leaguestats/pkg/reconcile"
)

// Scope selects the stored rows a leaderboard covers: match ids, or a season
// optionally narrowed to one team.
type Scope struct {
	MatchIDs  []string
	SeasonID  string
	TeamID    string
	Formation string
	TopN      int
}

// Rows is satisfied by *store.StatStore.
type Rows interface {
	ListByMatches(ctx context.Context, matchIDs []string) ([]reconcile.Snapshot, error)
	ListBySeason(ctx context.Context, seasonID, teamID string) ([]reconcile.Snapshot, error)
}

// Leaderboard ranks the scoped rows with f and writes one line per player.
func Leaderboard(ctx context.Context, w io.Writer, rows Rows, engine *formula.Engine, f formula.Formula, c *formula.Compiled, s Scope) (rating.Summary, error) {
	var snaps []reconcile.Snapshot
	var err error
	switch {
	case len(s.MatchIDs) > 0 && s.SeasonID != "":
		return rating.Summary{}, fmt.Errorf("give matches or a season, not both")
	case len(s.MatchIDs) > 0:
		snaps, err = rows.ListByMatches(ctx, s.MatchIDs)
	case s.SeasonID != "":
		snaps, err = rows.ListBySeason(ctx, s.SeasonID, s.TeamID)
	default:
		return rating.Summary{}, fmt.Errorf("matches or a season is required")
	}
	if err != nil {
		return rating.Summary{}, err
	}

	ranked, sum, err := rating.Rank(ctx, engine, c, f.Position, rating.FromSnapshots(snaps), rating.Options{
		TopN:      s.TopN,
		Formation: s.Formation,
	})
	if err != nil {
		return sum, err
	}

	scope := "season " + s.SeasonID
	if len(s.MatchIDs) > 0 {
		scope = "matches " + strings.Join(s.MatchIDs, ",")
	} else if s.TeamID != "" {
		scope += " team " + s.TeamID
	}
	fmt.Fprintf(w, "Leaderboard %q (%s) for %s:\n", f.Name, f.Source, scope)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPLAYER\tPOS\tSCORE\tCONF\tFLAGS")
	for i, r := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t%s\n",
			i+1, r.Candidate.PlayerID, r.Candidate.Position, r.Score,
			r.Candidate.Record.OverallConfidence, strings.Join(r.Flags, ","))
	}
	if err := tw.Flush(); err != nil {
		return sum, err
	}
	fmt.Fprintf(w, "  players=%d scored=%d skipped=%d failed=%d degenerate=%d\n",
		sum.Total, sum.Scored, sum.Skipped, sum.Failed, sum.Degenerate)
	return sum, nil
}
