package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leaguestats/models"
	"leaguestats/pkg/reconcile"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatStore implements reconcile.Store on gorm with a version column.
type StatStore struct {
	db *gorm.DB
}

func NewStatStore(db *gorm.DB) *StatStore { return &StatStore{db: db} }

var _ reconcile.Store = (*StatStore)(nil)

func (s *StatStore) Find(ctx context.Context, key reconcile.Key) (*reconcile.Snapshot, error) {
	var row models.PlayerStatRecord
	err := s.db.WithContext(ctx).Where("record_key = ?", key.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := toSnapshot(row)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Upsert inserts with ON CONFLICT DO NOTHING when expectedVersion is 0, and
// otherwise updates only if the stored version still matches.
func (s *StatStore) Upsert(ctx context.Context, snap reconcile.Snapshot, expectedVersion int64) (*reconcile.Snapshot, error) {
	row, err := toRow(snap)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if expectedVersion == 0 {
		row.Version = 1
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_key"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			if isUniqueConstraintError(res.Error) {
				return nil, reconcile.ErrVersionConflict
			}
			return nil, fmt.Errorf("insert stat record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, reconcile.ErrVersionConflict
		}
	} else {
		res := db.Model(&models.PlayerStatRecord{}).
			Where("record_key = ? AND version = ?", row.RecordKey, expectedVersion).
			Updates(map[string]any{
				"stat_values":        row.Values,
				"field_confidence":   row.FieldConfidence,
				"overall_confidence": row.OverallConfidence,
				"position":           row.Position,
				"version":            expectedVersion + 1,
				"updated_at":         time.Now(),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("update stat record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, reconcile.ErrVersionConflict
		}
	}
	return s.Find(ctx, snap.Key)
}

// ListByMatches returns match-scoped rows for any of the given matches.
func (s *StatStore) ListByMatches(ctx context.Context, matchIDs []string) ([]reconcile.Snapshot, error) {
	var rows []models.PlayerStatRecord
	err := s.db.WithContext(ctx).
		Where("scope = ? AND match_id IN ?", string(reconcile.ScopeMatch), matchIDs).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSnapshots(rows)
}

// ListBySeason returns season-aggregate rows; an empty teamID means every team.
func (s *StatStore) ListBySeason(ctx context.Context, seasonID, teamID string) ([]reconcile.Snapshot, error) {
	q := s.db.WithContext(ctx).Where("scope = ? AND season_id = ?", string(reconcile.ScopeSeason), seasonID)
	if teamID != "" {
		q = q.Where("team_id = ?", teamID)
	}
	var rows []models.PlayerStatRecord
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSnapshots(rows)
}

func toRow(s reconcile.Snapshot) (models.PlayerStatRecord, error) {
	values, err := json.Marshal(s.Values)
	if err != nil {
		return models.PlayerStatRecord{}, fmt.Errorf("encode values: %w", err)
	}
	conf, err := json.Marshal(s.FieldConfidence)
	if err != nil {
		return models.PlayerStatRecord{}, fmt.Errorf("encode confidence: %w", err)
	}
	row := models.PlayerStatRecord{
		RecordKey:         s.Key.String(),
		Scope:             string(s.Key.Scope),
		PlayerID:          s.Key.PlayerID,
		MatchID:           optional(s.Key.MatchID),
		SeasonID:          optional(s.Key.SeasonID),
		TeamID:            optional(s.Key.TeamID),
		Position:          s.Position,
		Values:            values,
		FieldConfidence:   conf,
		OverallConfidence: s.OverallConfidence,
		Version:           s.Version,
	}
	return row, nil
}

func toSnapshot(r models.PlayerStatRecord) (reconcile.Snapshot, error) {
	snap := reconcile.Snapshot{
		Key: reconcile.Key{
			Scope:    reconcile.Scope(r.Scope),
			PlayerID: r.PlayerID,
			MatchID:  deref(r.MatchID),
			SeasonID: deref(r.SeasonID),
			TeamID:   deref(r.TeamID),
		},
		Position:          r.Position,
		OverallConfidence: r.OverallConfidence,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Values, &snap.Values); err != nil {
		return snap, fmt.Errorf("decode values of %s: %w", r.RecordKey, err)
	}
	if err := json.Unmarshal(r.FieldConfidence, &snap.FieldConfidence); err != nil {
		return snap, fmt.Errorf("decode confidence of %s: %w", r.RecordKey, err)
	}
	return snap, nil
}

func toSnapshots(rows []models.PlayerStatRecord) ([]reconcile.Snapshot, error) {
	out := make([]reconcile.Snapshot, 0, len(rows))
	for _, r := range rows {
		s, err := toSnapshot(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
