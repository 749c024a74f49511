package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leaguestats/pkg/reconcile"
	"leaguestats/pkg/region"
)

// Manifest is the sidecar <image>.json dropped next to a screenshot.
type Manifest struct {
	Regions  []region.Region `json:"regions"`
	PlayerID string          `json:"player_id"`
	MatchID  string          `json:"match_id"`
	SeasonID string          `json:"season_id"`
	TeamID   string          `json:"team_id"`
	Position string          `json:"position"`
}

// Key returns nil when the manifest names no player.
func (m Manifest) Key() (*reconcile.Key, error) {
	if m.PlayerID == "" {
		return nil, nil
	}
	var k reconcile.Key
	switch {
	case m.MatchID != "" && m.SeasonID != "":
		return nil, fmt.Errorf("manifest gives both match_id and season_id")
	case m.MatchID != "":
		k = reconcile.MatchKey(m.PlayerID, m.MatchID)
	default:
		k = reconcile.SeasonKey(m.PlayerID, m.SeasonID, m.TeamID)
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

// manifestPath maps shot.png to shot.json.
func manifestPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%w: %v", errBadManifest, err)
	}
	if len(m.Regions) == 0 {
		return m, fmt.Errorf("%w: no regions", errBadManifest)
	}
	return m, nil
}
