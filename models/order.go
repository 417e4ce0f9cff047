package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// OrderLine is one item row of an order summary. LineStatus shares the
// payment status values.
type OrderLine struct {
	Name       string        `json:"name" bson:"name"`
	Quantity   int           `json:"quantity" bson:"quantity"`
	UnitPrice  float64       `json:"unitPrice" bson:"unitPrice"`
	LineStatus PaymentStatus `json:"lineStatus" bson:"lineStatus"`
}

// Subtotal -> quantity x unit price, exact.
func (l OrderLine) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderSummary is the table-scoped projection of an order placed at checkout.
type OrderSummary struct {
	OrderID       string        `json:"orderId" bson:"orderId"`
	Items         []OrderLine   `json:"items" bson:"items"`
	TotalAmount   float64       `json:"totalAmount" bson:"totalAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
	CreatedAt     time.Time     `json:"createdAt" bson:"createdAt"`
}

// Total sums the line subtotals in decimal and rounds half away from zero
// to cents.
func (o OrderSummary) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Items {
		sum = sum.Add(l.Subtotal())
	}
	return sum.Round(2)
}

// ComputeTotal is Total as the float carried in JSON.
func (o OrderSummary) ComputeTotal() float64 {
	return o.Total().InexactFloat64()
}

// Validate -> cek id, item, & total order
func (o OrderSummary) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return errors.New("order id is required")
	}
	if len(o.Items) == 0 {
		return errors.New("order must contain at least one item")
	}
	for i, l := range o.Items {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("item %d: name is required", i)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("item %d (%s): quantity must be at least 1", i, l.Name)
		}
		if l.UnitPrice < 0 || !FiniteAmount(l.UnitPrice) {
			return fmt.Errorf("item %d (%s): unit price must be a non-negative number", i, l.Name)
		}
		if !l.LineStatus.Valid() {
			return fmt.Errorf("item %d (%s): unknown line status %q", i, l.Name, l.LineStatus)
		}
	}
	if !o.PaymentStatus.Valid() {
		return fmt.Errorf("unknown payment status %q", o.PaymentStatus)
	}
	if total := o.Total(); !SameAmount(o.TotalAmount, total.InexactFloat64()) {
		return fmt.Errorf("total amount %v does not match items total %s", o.TotalAmount, total.StringFixed(2))
	}
	return nil
}

// Clone -> copy termasuk slice Items
func (o OrderSummary) Clone() OrderSummary {
	c := o
	c.Items = append([]OrderLine(nil), o.Items...)
	return c
}

// FiniteAmount reports whether v can be converted to decimal.
func FiniteAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RoundAmount -> bulatkan ke sen
func RoundAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SameAmount compares two money amounts exactly, in decimal.
func SameAmount(a, b float64) bool {
	return decimal.NewFromFloat(a).Equal(decimal.NewFromFloat(b))
}
