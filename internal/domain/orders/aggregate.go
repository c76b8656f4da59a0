package orders

import (
	"log/slog"
	"slices"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Aggregate merges canonical rows into per-order totals. Rows are
// stable-sorted by order date ascending (lexical ISO-8601 comparison), then
// filtered to the inclusive [start, end] calendar-date range on the date
// portion of the order date, then grouped by order id. Orders come out in
// first-encounter order after the sort; the whole pass is deterministic.
func Aggregate(rows []CanonicalRow, start, end time.Time, logger *slog.Logger) *OrderSet {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b CanonicalRow) int {
		return strings.Compare(a.OrderDate, b.OrderDate)
	})

	set := newOrderSet()
	for _, row := range sorted {
		date, ok := orderDateOnly(row.OrderDate)
		if !ok {
			logger.Warn("Skipping row with unparseable order date",
				"order_id", row.OrderID, "order_date", row.OrderDate)
			continue
		}
		if date.Before(start) || date.After(end) {
			logger.Debug("Order date out of range",
				"order_id", row.OrderID, "order_date", row.OrderDate)
			continue
		}
		set.add(row)
	}

	// Totals are rounded once aggregation is complete, not per mutation.
	for _, id := range set.ids {
		o := set.byID[id]
		o.TotalCost = o.TotalCost.Round(2)
	}
	return set
}

// orderDateOnly extracts the calendar date from an ISO-8601 timestamp,
// dropping the time portion.
func orderDateOnly(ts string) (time.Time, bool) {
	if len(ts) < len(dateLayout) {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, ts[:len(dateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
