package formula

import (
	"fmt"
	"sort"
	"strings"
)

// Mapping says that a player nominally at Position plays Role in Formation.
type Mapping struct {
	Position  string `json:"position"`
	Formation string `json:"formation"`
	Role      string `json:"role"`
}

type roleKey struct{ position, formation string }

// RoleMap is an immutable (position, formation) -> role table. Lookups are
// case-insensitive.
type RoleMap struct {
	byKey    map[roleKey]string
	mappings []Mapping
}

func canon(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// NewRoleMap rejects empty entries and more than one role for the same pair.
func NewRoleMap(mappings []Mapping) (*RoleMap, error) {
	rm := &RoleMap{byKey: make(map[roleKey]string, len(mappings))}
	for i, m := range mappings {
		m = Mapping{Position: canon(m.Position), Formation: strings.TrimSpace(m.Formation), Role: canon(m.Role)}
		if m.Position == "" || m.Formation == "" || m.Role == "" {
			return nil, fmt.Errorf("%w: entry %d needs position, formation and role", ErrInvalidMapping, i)
		}
		k := roleKey{m.Position, canon(m.Formation)}
		if _, dup := rm.byKey[k]; dup {
			return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateMapping, m.Position, m.Formation)
		}
		rm.byKey[k] = m.Role
		rm.mappings = append(rm.mappings, m)
	}
	sort.Slice(rm.mappings, func(i, j int) bool {
		a, b := rm.mappings[i], rm.mappings[j]
		if a.Formation != b.Formation {
			return a.Formation < b.Formation
		}
		return a.Position < b.Position
	})
	return rm, nil
}

// Role returns the tactical role of position in formation.
func (rm *RoleMap) Role(position, formation string) (string, bool) {
	if rm == nil {
		return "", false
	}
	r, ok := rm.byKey[roleKey{canon(position), canon(formation)}]
	return r, ok
}

// Applies reports whether a formula scoped to formulaPosition scores a player
// at playerPosition. An unscoped formula applies to everyone; otherwise the
// positions must match or the formation must map the player onto the scope.
func (rm *RoleMap) Applies(formulaPosition, playerPosition, formation string) bool {
	scope := canon(formulaPosition)
	if scope == "" {
		return true
	}
	if canon(playerPosition) == scope {
		return true
	}
	role, ok := rm.Role(playerPosition, formation)
	return ok && role == scope
}

func (rm *RoleMap) Mappings() []Mapping {
	if rm == nil {
		return nil
	}
	out := make([]Mapping, len(rm.mappings))
	copy(out, rm.mappings)
	return out
}

func (rm *RoleMap) Len() int {
	if rm == nil {
		return 0
	}
	return len(rm.mappings)
}
