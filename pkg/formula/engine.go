package formula

import (
	"sync/atomic"

	"leaguestats/pkg/normalize"
)

// Candidate is one player's record offered for scoring.
type Candidate struct {
	PlayerID string           `json:"player_id"`
	Position string           `json:"position"`
	Record   normalize.Record `json:"record"`
}

// Engine applies compiled formulas with role scoping. The role table is
// replaced wholesale by SetRoles and read without locks.
type Engine struct {
	roles atomic.Pointer[RoleMap]
}

func NewEngine(roles *RoleMap) *Engine {
	e := &Engine{}
	if roles == nil {
		roles, _ = NewRoleMap(nil)
	}
	e.roles.Store(roles)
	return e
}

func (e *Engine) SetRoles(rm *RoleMap) {
	if rm == nil {
		rm, _ = NewRoleMap(nil)
	}
	e.roles.Store(rm)
}

func (e *Engine) Roles() *RoleMap { return e.roles.Load() }

// Score resolves the player's role under formation before evaluating. When
// the formula does not apply, skipped is true and nothing is evaluated.
func (e *Engine) Score(c *Compiled, formulaPosition string, cand Candidate, formation string) (res Result, skipped bool, err error) {
	if !e.roles.Load().Applies(formulaPosition, cand.Position, formation) {
		return Result{}, true, nil
	}
	res, err = c.Evaluate(cand.Record)
	return res, false, err
}
