package models

import (
	"time"

	"github.com/google/uuid"
)

type seedTable struct {
	number   int
	capacity int
	location TableLocation
}

var defaultLayout = []seedTable{
	{1, 2, LocationIndoor},
	{2, 4, LocationIndoor},
	{3, 6, LocationIndoor},
	{4, 4, LocationOutdoor},
	{5, 8, LocationIndoor},
	{6, 2, LocationOutdoor},
}

// DefaultTables returns the seeded floor plan. Every call assigns fresh ids,
// so a reset never reuses an id handed out before.
func DefaultTables() []Table {
	now := time.Now().UTC()
	tables := make([]Table, 0, len(defaultLayout))
	for _, s := range defaultLayout {
		tables = append(tables, Table{
			ID:           uuid.NewString(),
			Number:       s.number,
			Capacity:     s.capacity,
			Location:     s.location,
			Status:       TableAvailable,
			OrderHistory: []OrderSummary{},
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return tables
}
