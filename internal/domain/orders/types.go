// Package orders normalizes retail and digital purchase-history CSV exports
// into canonical line-item rows and aggregates them into per-order totals.
package orders

import (
	"github.com/shopspring/decimal"
)

// Mode selects which normalization rules apply.
type Mode int

const (
	// ModeRanged is the date-range-aware mode used by the reconcile run.
	ModeRanged Mode = iota
	// ModeLegacy reproduces the older single-schema behavior. Cancelled
	// retail rows are skipped only in this mode.
	ModeLegacy
)

// DeliveryNotAvailable is the sentinel the retailer export uses for orders
// that were never delivered (digital pre-orders, pickup, etc).
const DeliveryNotAvailable = "Not Available"

// CanonicalRow is a single normalized line item from either source.
type CanonicalRow struct {
	OrderID      string
	Description  string
	DeliveryDate string // raw ISO-8601 timestamp or DeliveryNotAvailable
	OrderDate    string // raw ISO-8601 timestamp
	Subtotal     decimal.Decimal
	// SubtotalKnown is false for digital items that have no entry in the
	// monetary-amounts table. An unknown subtotal poisons the whole order
	// total so the order can never match a transaction.
	SubtotalKnown bool
	Digital       bool
}

// Order is the aggregate of all canonical rows sharing an order id.
// Read-only once aggregation completes; never persisted.
type Order struct {
	ID           string
	TotalCost    decimal.Decimal
	TotalKnown   bool
	Description  string // space-joined item descriptions, encounter order
	DeliveryDate string
	OrderDate    string
}

// OrderSet holds aggregated orders in first-encounter order.
type OrderSet struct {
	ids  []string
	byID map[string]*Order
}

func newOrderSet() *OrderSet {
	return &OrderSet{byID: make(map[string]*Order)}
}

// IDs returns order ids in first-encounter order (post order-date sort).
func (s *OrderSet) IDs() []string { return s.ids }

// Get returns the order for id, if present.
func (s *OrderSet) Get(id string) (*Order, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// Len returns the number of aggregated orders.
func (s *OrderSet) Len() int { return len(s.ids) }

func (s *OrderSet) add(row CanonicalRow) {
	o, ok := s.byID[row.OrderID]
	if !ok {
		o = &Order{
			ID:           row.OrderID,
			TotalCost:    row.Subtotal,
			TotalKnown:   row.SubtotalKnown,
			Description:  row.Description,
			DeliveryDate: row.DeliveryDate,
			OrderDate:    row.OrderDate,
		}
		s.byID[row.OrderID] = o
		s.ids = append(s.ids, row.OrderID)
		return
	}
	o.TotalCost = o.TotalCost.Add(row.Subtotal)
	if !row.SubtotalKnown {
		o.TotalKnown = false
	}
	o.Description += " " + row.Description
}
