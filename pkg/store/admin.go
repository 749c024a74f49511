package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leaguestats/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
)

// FormulaStore keeps rating formulas. Callers compile Source before saving.
type FormulaStore struct {
	db *gorm.DB
}

func NewFormulaStore(db *gorm.DB) *FormulaStore { return &FormulaStore{db: db} }

func (s *FormulaStore) List(ctx context.Context) ([]models.Formula, error) {
	var out []models.Formula
	err := s.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (s *FormulaStore) Get(ctx context.Context, id uint) (*models.Formula, error) {
	var f models.Formula
	err := s.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Save creates f when ID is zero and updates it otherwise.
func (s *FormulaStore) Save(ctx context.Context, f *models.Formula) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("formula name is required")
	}
	db := s.db.WithContext(ctx)
	var err error
	if f.ID == 0 {
		err = db.Create(f).Error
	} else {
		res := db.Model(&models.Formula{}).Where("id = ?", f.ID).Updates(map[string]any{
			"name":     f.Name,
			"source":   f.Source,
			"position": f.Position,
			"color":    f.Color,
		})
		err = res.Error
		if err == nil && res.RowsAffected == 0 {
			return ErrNotFound
		}
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, f.Name)
	}
	return err
}

func (s *FormulaStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Formula{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RoleMappingStore keeps the (position, formation) -> role table.
type RoleMappingStore struct {
	db *gorm.DB
}

func NewRoleMappingStore(db *gorm.DB) *RoleMappingStore { return &RoleMappingStore{db: db} }

func (s *RoleMappingStore) List(ctx context.Context) ([]models.PositionRoleMapping, error) {
	var out []models.PositionRoleMapping
	err := s.db.WithContext(ctx).Order("formation, position").Find(&out).Error
	return out, err
}

// Replace swaps the whole table in one transaction.
func (s *RoleMappingStore) Replace(ctx context.Context, rows []models.PositionRoleMapping) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.PositionRoleMapping{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].ID = 0
		}
		if err := tx.Create(&rows).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: duplicate (position, formation)", ErrDuplicateName)
			}
			return err
		}
		return nil
	})
}

// UploadStore writes the ingestion audit trail.
type UploadStore struct {
	db *gorm.DB
}

func NewUploadStore(db *gorm.DB) *UploadStore { return &UploadStore{db: db} }

func (s *UploadStore) Create(ctx context.Context, u *models.Upload) error {
	return s.db.WithContext(ctx).Create(u).Error
}

// ProcessedPath reports whether a file at path was already ingested by the
// directory watcher.
func (s *UploadStore) ProcessedPath(ctx context.Context, path string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Upload{}).
		Where("store_path = ? AND failed = ?", path, false).Count(&n).Error
	return n > 0, err
}

func (s *UploadStore) Recent(ctx context.Context, limit int) ([]models.Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Upload
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}
