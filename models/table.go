package models

import (
	"fmt"
	"strings"
	"time"
)

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

// Valid reports whether s is one of the known table statuses.
func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved:
		return true
	}
	return false
}

// Bound reports whether a table in status s carries a customer binding.
func (s TableStatus) Bound() bool {
	return s == TableOccupied || s == TableReserved
}

type TableLocation string

const (
	LocationIndoor  TableLocation = "indoor"
	LocationOutdoor TableLocation = "outdoor"
)

// ParseLocation -> string ke TableLocation (indoor/outdoor)
func ParseLocation(s string) (TableLocation, error) {
	switch loc := TableLocation(strings.ToLower(strings.TrimSpace(s))); loc {
	case LocationIndoor, LocationOutdoor:
		return loc, nil
	}
	return "", fmt.Errorf("unknown table location %q", s)
}

// Table is one physical seating unit. Number is the public key; ID and
// Version belong to the storage layer and are never serialized to clients.
type Table struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"-" bson:"_id"`
	Number       int            `gorm:"uniqueIndex;not null" json:"number" bson:"number"`
	Capacity     int            `gorm:"not null" json:"capacity" bson:"capacity"`
	Location     TableLocation  `gorm:"type:varchar(20);not null" json:"location" bson:"location"`
	Status       TableStatus    `gorm:"type:varchar(20);not null;default:'available';index" json:"status" bson:"status"`
	CustomerInfo *CustomerInfo  `gorm:"type:text;serializer:json" json:"customerInfo" bson:"customerInfo"`
	CurrentOrder *OrderSummary  `gorm:"type:text;serializer:json" json:"currentOrder" bson:"currentOrder"`
	OrderHistory []OrderSummary `gorm:"type:text;serializer:json" json:"orderHistory" bson:"orderHistory"`
	Version      int64          `gorm:"not null;default:0" json:"-" bson:"version"`
	CreatedAt    time.Time      `json:"-" bson:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy, so callers can compute a new state without
// touching the record they read.
func (t *Table) Clone() *Table {
	c := *t
	if t.CustomerInfo != nil {
		info := *t.CustomerInfo
		c.CustomerInfo = &info
	}
	if t.CurrentOrder != nil {
		o := t.CurrentOrder.Clone()
		c.CurrentOrder = &o
	}
	c.OrderHistory = make([]OrderSummary, len(t.OrderHistory))
	for i, o := range t.OrderHistory {
		c.OrderHistory[i] = o.Clone()
	}
	return &c
}

// CheckInvariants verifies the structural rules every stored table obeys.
func (t *Table) CheckInvariants() error {
	if t.Number <= 0 {
		return fmt.Errorf("table number must be positive, got %d", t.Number)
	}
	if t.Capacity <= 0 {
		return fmt.Errorf("table %d: capacity must be positive", t.Number)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("table %d: unknown status %q", t.Number, t.Status)
	}
	if t.Status.Bound() != (t.CustomerInfo != nil) {
		return fmt.Errorf("table %d: customer binding does not match status %s", t.Number, t.Status)
	}
	if t.CurrentOrder != nil && t.Status != TableOccupied {
		return fmt.Errorf("table %d: current order on a %s table", t.Number, t.Status)
	}
	return nil
}

// HasOrder reports whether orderID is the current order or already archived.
func (t *Table) HasOrder(orderID string) bool {
	if t.CurrentOrder != nil && t.CurrentOrder.OrderID == orderID {
		return true
	}
	for _, o := range t.OrderHistory {
		if o.OrderID == orderID {
			return true
		}
	}
	return false
}
