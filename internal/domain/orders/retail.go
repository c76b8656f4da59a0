package orders

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Retail order-history exports have a fixed column layout. All positional
// knowledge about that layout lives here.
const (
	retailColOrderID     = 1
	retailColOrderDate   = 2
	retailColSubtotal    = 9
	retailColStatus      = 16
	retailColDelivery    = 18
	retailColDescription = 23

	retailMinFields = 24

	statusCancelled = "Cancelled"
)

// ParseRetail reads a retail order-history CSV and returns canonical rows.
// The header row is skipped. Rows flagged Cancelled are dropped only in
// ModeLegacy; ModeRanged keeps them.
func ParseRetail(r io.Reader, mode Mode) ([]CanonicalRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading retail CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var rows []CanonicalRow
	for i, rec := range records[1:] {
		if len(rec) < retailMinFields {
			return nil, fmt.Errorf("row %d: expected at least %d columns, got %d", i+2, retailMinFields, len(rec))
		}
		if mode == ModeLegacy && rec[retailColStatus] == statusCancelled {
			continue
		}
		subtotal, err := parseRetailSubtotal(rec[retailColSubtotal])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, CanonicalRow{
			OrderID:       rec[retailColOrderID],
			Description:   rec[retailColDescription],
			DeliveryDate:  rec[retailColDelivery],
			OrderDate:     rec[retailColOrderDate],
			Subtotal:      subtotal,
			SubtotalKnown: true,
		})
	}
	return rows, nil
}

// parseRetailSubtotal parses a locale-formatted decimal like "1,234.56".
// Retail subtotals may carry thousands separators; digital ones never do.
func parseRetailSubtotal(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing subtotal %q: %w", s, err)
	}
	return d.Round(2), nil
}
