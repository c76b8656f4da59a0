// Package window derives the transaction search window for an order from
// its order date and delivery date.
package window

import (
	"errors"
	"fmt"
	"time"

	"github.com/ordermatch/amazon-reconciler/internal/domain/orders"
)

var (
	// ErrSkippableOrder means the order cannot be searched at all and must
	// be skipped entirely, not widened.
	ErrSkippableOrder = errors.New("order must be skipped")
	// ErrUnparseableTimestamp means a timestamp matched neither accepted
	// format.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
)

// The retailer exports timestamps in two formats: whole seconds and
// fractional seconds, both with a trailing Z.
const (
	layoutSecond   = "2006-01-02T15:04:05Z"
	layoutFraction = "2006-01-02T15:04:05.999999999Z"

	dateLayout = "2006-01-02"
)

// Window is the inclusive calendar-date range to search for a transaction.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartDate returns the window start as an ISO calendar date.
func (w Window) StartDate() string { return w.Start.Format(dateLayout) }

// EndDate returns the window end as an ISO calendar date.
func (w Window) EndDate() string { return w.End.Format(dateLayout) }

// Resolver computes search windows. The day offsets absorb the settlement
// latency between the retailer's ledger and the financial account's ledger.
type Resolver struct {
	DaysBeforeOrder   int
	DaysAfterDelivery int
}

// Resolve returns the search window for an order.
//
// The start is the order date minus DaysBeforeOrder. The end is the delivery
// date plus DaysAfterDelivery; if the delivery date is unparseable the window
// degenerates to end == start rather than failing. A missing delivery date or
// an unparseable order date returns ErrSkippableOrder.
func (r Resolver) Resolve(o *orders.Order) (Window, error) {
	if o.DeliveryDate == orders.DeliveryNotAvailable {
		return Window{}, fmt.Errorf("order %s: delivery date not available: %w", o.ID, ErrSkippableOrder)
	}

	orderDate, err := ParseTimestamp(o.OrderDate)
	if err != nil {
		return Window{}, fmt.Errorf("order %s: order date %q: %w", o.ID, o.OrderDate, errors.Join(ErrSkippableOrder, err))
	}
	start := dateOnly(orderDate.AddDate(0, 0, -r.DaysBeforeOrder))

	deliveryDate, err := ParseTimestamp(o.DeliveryDate)
	if err != nil {
		// Degenerate window: a possibly unproductive search beats a crash.
		return Window{Start: start, End: start}, nil
	}
	end := dateOnly(deliveryDate.AddDate(0, 0, r.DaysAfterDelivery))

	return Window{Start: start, End: end}, nil
}

// ParseTimestamp parses an ISO-8601 timestamp, trying the whole-second
// format first and falling back to the fractional-second one.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(layoutSecond, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(layoutFraction, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, s)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
