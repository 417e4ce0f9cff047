package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/table-service/models"
)

var (
	ErrNotFound = errors.New("table not found")
	// ErrVersionConflict means the stored record changed since it was read.
	ErrVersionConflict = errors.New("table version conflict")
)

// Seeder produces the default floor plan written by ResetAll.
type Seeder func() []models.Table

// TableStore persists the full table collection.
//
// Save replaces one record wholesale. It succeeds only when the stored
// version still equals table.Version (or no record with table.ID exists yet)
// and increments table.Version on success; otherwise it returns
// ErrVersionConflict and writes nothing. Any other error means the storage
// medium failed.
type TableStore interface {
	GetAll(ctx context.Context) ([]models.Table, error)
	GetByNumber(ctx context.Context, number int) (*models.Table, error)
	GetByID(ctx context.Context, id string) (*models.Table, error)
	Save(ctx context.Context, table *models.Table) error
	ResetAll(ctx context.Context) error
}

// SeedIfEmpty writes the default floor plan when the store holds no tables.
func SeedIfEmpty(ctx context.Context, s TableStore) (bool, error) {
	tables, err := s.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read tables: %w", err)
	}
	if len(tables) > 0 {
		return false, nil
	}
	if err := s.ResetAll(ctx); err != nil {
		return false, fmt.Errorf("failed to seed tables: %w", err)
	}
	return true, nil
}

func normalize(t *models.Table) {
	if t.OrderHistory == nil {
		t.OrderHistory = []models.OrderSummary{}
	}
}
