package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yeremiapane/table-service/models"
)

// MemoryStore keeps tables in process memory. When path is set every
// committed change is also written to a JSON file, and the file is loaded
// back on startup.
type MemoryStore struct {
	tables map[int]*models.Table
	path   string
	seed   Seeder
	mutex  sync.RWMutex
}

func NewMemoryStore(seed Seeder) *MemoryStore {
	if seed == nil {
		seed = models.DefaultTables
	}
	return &MemoryStore{
		tables: make(map[int]*models.Table),
		seed:   seed,
	}
}

// NewFileStore returns a MemoryStore persisted to path.
func NewFileStore(path string, seed Seeder) (*MemoryStore, error) {
	s := NewMemoryStore(seed)
	s.path = path

	tables, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		t := tables[i]
		normalize(&t)
		s.tables[t.Number] = &t
	}
	return s, nil
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]models.Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.snapshot(), nil
}

func (s *MemoryStore) GetByNumber(ctx context.Context, number int) (*models.Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, exists := s.tables[number]
	if !exists {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*models.Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, t := range s.tables {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Save(ctx context.Context, table *models.Table) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if current, exists := s.tables[table.Number]; exists {
		if current.ID != table.ID {
			return fmt.Errorf("table number %d already belongs to another record", table.Number)
		}
		if current.Version != table.Version {
			return ErrVersionConflict
		}
	}

	next := table.Clone()
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	normalize(next)

	if s.path != "" {
		tables := s.snapshot()
		replaced := false
		for i := range tables {
			if tables[i].Number == next.Number {
				tables[i] = *next
				replaced = true
			}
		}
		if !replaced {
			tables = append(tables, *next)
		}
		if err := writeFile(s.path, tables); err != nil {
			return err
		}
	}

	s.tables[next.Number] = next
	table.Version = next.Version
	table.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemoryStore) ResetAll(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seeded := s.seed()
	if s.path != "" {
		if err := writeFile(s.path, seeded); err != nil {
			return err
		}
	}

	s.tables = make(map[int]*models.Table, len(seeded))
	for i := range seeded {
		t := seeded[i]
		normalize(&t)
		s.tables[t.Number] = &t
	}
	return nil
}

// snapshot must be called with the mutex held.
func (s *MemoryStore) snapshot() []models.Table {
	out := make([]models.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// fileRecord exposes the storage-only fields that Table hides from JSON.
type fileRecord struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
	models.Table
}

func loadFile(path string) ([]models.Table, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode tables file %s: %w", path, err)
	}
	tables := make([]models.Table, 0, len(records))
	for _, r := range records {
		t := r.Table
		t.ID = r.ID
		t.Version = r.Version
		tables = append(tables, t)
	}
	return tables, nil
}

// writeFile replaces path atomically through a temp file and rename.
func writeFile(path string, tables []models.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create tables directory: %w", err)
	}

	records := make([]fileRecord, 0, len(tables))
	for _, t := range tables {
		records = append(records, fileRecord{ID: t.ID, Version: t.Version, Table: t})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tables: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to save tables: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to save tables: %w", err)
	}
	return nil
}
