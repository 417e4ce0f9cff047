package events

import (
	"context"
	"time"

	"github.com/yeremiapane/table-service/models"
)

type Type string

const (
	TableOccupied      Type = "table_occupied"
	TableReserved      Type = "table_reserved"
	TableCheckedIn     Type = "table_checked_in"
	TableFreed         Type = "table_freed"
	TableOrderAttached Type = "table_order_attached"
	TablesReset        Type = "tables_reset"
)

// Event describes one committed table transition. TableNumber is zero for
// TablesReset, which covers the whole floor.
type Event struct {
	Type        Type               `json:"type"`
	TableNumber int                `json:"tableNumber,omitempty"`
	Status      models.TableStatus `json:"status,omitempty"`
	OccurredAt  time.Time          `json:"occurredAt"`
	Table       *models.Table      `json:"table,omitempty"`
}

// Sink receives table events, e.g. the websocket hub or a Kafka topic.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}
