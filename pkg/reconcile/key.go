// Package reconcile decides how a freshly extracted stat record merges into
// the persisted row for the same player and match or season. Storage itself
// is delegated to a Store with an atomic per-key upsert.
package reconcile

import (
	"fmt"
	"strings"
	"unicode"
)

// Scope selects which composite key identifies the row.
type Scope string

const (
	ScopeMatch  Scope = "match"
	ScopeSeason Scope = "season"
)

// Key identifies exactly one persisted row: (player, match) or
// (player, season, team).
type Key struct {
	Scope    Scope  `json:"scope"`
	PlayerID string `json:"player_id"`
	MatchID  string `json:"match_id,omitempty"`
	SeasonID string `json:"season_id,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

// MatchKey builds a match-scoped key.
func MatchKey(playerID, matchID string) Key {
	return Key{Scope: ScopeMatch, PlayerID: playerID, MatchID: matchID}
}

// SeasonKey builds a season-aggregate key.
func SeasonKey(playerID, seasonID, teamID string) Key {
	return Key{Scope: ScopeSeason, PlayerID: playerID, SeasonID: seasonID, TeamID: teamID}
}

// MaxIDLen bounds each identifier so the joined key fits the row's
// 255-byte unique column.
const MaxIDLen = 64

// Validate checks that the identifiers required by the scope are present
// and cannot be confused with the key separator.
func (k Key) Validate() error {
	if strings.TrimSpace(k.PlayerID) == "" {
		return fmt.Errorf("%w: player id required", ErrInvalidKey)
	}
	switch k.Scope {
	case ScopeMatch:
		if strings.TrimSpace(k.MatchID) == "" {
			return fmt.Errorf("%w: match id required", ErrInvalidKey)
		}
		return checkIDs(map[string]string{"player": k.PlayerID, "match": k.MatchID})
	case ScopeSeason:
		if strings.TrimSpace(k.SeasonID) == "" || strings.TrimSpace(k.TeamID) == "" {
			return fmt.Errorf("%w: season and team id required", ErrInvalidKey)
		}
		return checkIDs(map[string]string{"player": k.PlayerID, "season": k.SeasonID, "team": k.TeamID})
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidKey, k.Scope)
	}
}

func checkIDs(ids map[string]string) error {
	for name, id := range ids {
		if len(id) > MaxIDLen {
			return fmt.Errorf("%w: %s id longer than %d bytes", ErrInvalidKey, name, MaxIDLen)
		}
		if strings.ContainsFunc(id, func(r rune) bool { return r == ':' || unicode.IsControl(r) }) {
			return fmt.Errorf("%w: %s id %q contains ':' or a control character", ErrInvalidKey, name, id)
		}
	}
	return nil
}

// String is the composite key stored on the row's unique column.
func (k Key) String() string {
	if k.Scope == ScopeSeason {
		return fmt.Sprintf("season:%s:%s:%s", k.PlayerID, k.SeasonID, k.TeamID)
	}
	return fmt.Sprintf("match:%s:%s", k.PlayerID, k.MatchID)
}
