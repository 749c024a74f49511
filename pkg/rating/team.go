package rating

import (
	"context"
	"fmt"

	"leaguestats/pkg/formula"
)

// Slot is one place in the team sheet, scored by its own formula.
type Slot struct {
	Label           string            `json:"label"`
	Formula         *formula.Compiled `json:"-"`
	FormulaPosition string            `json:"formula_position"`
}

// Pick is the player chosen for a slot; Ranked is nil when nobody fitted.
type Pick struct {
	Slot   string  `json:"slot"`
	Ranked *Ranked `json:"ranked,omitempty"`
}

// TeamOfTheWeek fills slots in order, each with the best-ranked candidate not
// already picked.
func TeamOfTheWeek(ctx context.Context, engine *formula.Engine, slots []Slot, candidates []Candidate, formation string) ([]Pick, error) {
	used := make(map[string]bool, len(slots))
	picks := make([]Pick, 0, len(slots))
	for i, slot := range slots {
		if slot.Formula == nil {
			return nil, fmt.Errorf("slot %d (%s) has no formula", i, slot.Label)
		}
		ranked, _, err := Rank(ctx, engine, slot.Formula, slot.FormulaPosition, candidates, Options{Formation: formation})
		if err != nil {
			return nil, err
		}
		pick := Pick{Slot: slot.Label}
		for j := range ranked {
			if used[ranked[j].Candidate.PlayerID] {
				continue
			}
			r := ranked[j]
			pick.Ranked = &r
			used[r.Candidate.PlayerID] = true
			break
		}
		picks = append(picks, pick)
	}
	return picks, nil
}
