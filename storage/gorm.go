package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/table-service/models"
	"gorm.io/gorm"
)

// GormStore keeps tables in a shared relational database (MySQL in
// production, SQLite locally). Writes are compare-and-swap on the version
// column, so several service instances can share one database.
type GormStore struct {
	DB   *gorm.DB
	seed Seeder
}

func NewGormStore(db *gorm.DB, seed Seeder) *GormStore {
	if seed == nil {
		seed = models.DefaultTables
	}
	return &GormStore{DB: db, seed: seed}
}

func (s *GormStore) GetAll(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	if err := s.DB.WithContext(ctx).Order("number ASC").Find(&tables).Error; err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	for i := range tables {
		normalize(&tables[i])
	}
	return tables, nil
}

func (s *GormStore) GetByNumber(ctx context.Context, number int) (*models.Table, error) {
	return s.first(ctx, "number = ?", number)
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*models.Table, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) first(ctx context.Context, query string, arg interface{}) (*models.Table, error) {
	var table models.Table
	err := s.DB.WithContext(ctx).Where(query, arg).First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	normalize(&table)
	return &table, nil
}

func (s *GormStore) Save(ctx context.Context, table *models.Table) error {
	expected := table.Version
	next := table.Clone()
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	res := s.DB.WithContext(ctx).
		Model(&models.Table{ID: table.ID}).
		Where("version = ?", expected).
		Select("*").
		Updates(next)
	if res.Error != nil {
		return fmt.Errorf("failed to save table %d: %w", table.Number, res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.Table{}).Where("id = ?", table.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to save table %d: %w", table.Number, err)
		}
		if count > 0 {
			return ErrVersionConflict
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = next.UpdatedAt
		}
		if err := s.DB.WithContext(ctx).Create(next).Error; err != nil {
			return fmt.Errorf("failed to insert table %d: %w", table.Number, err)
		}
	}

	table.Version = next.Version
	table.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *GormStore) ResetAll(ctx context.Context) error {
	seeded := s.seed()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Table{}).Error; err != nil {
			return fmt.Errorf("failed to clear tables: %w", err)
		}
		if len(seeded) == 0 {
			return nil
		}
		if err := tx.Create(&seeded).Error; err != nil {
			return fmt.Errorf("failed to seed tables: %w", err)
		}
		return nil
	})
}
