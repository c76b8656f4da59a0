package orders

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Digital exports come as a pair of header-named CSVs: an items table and a
// monetary-amounts table joined by a shared digital-order-item identifier.
const (
	digitalColItemID      = "DigitalOrderItemId"
	digitalColProductName = "ProductName"
	digitalColFulfilled   = "FulfilledDate"
	digitalColOrderDate   = "OrderDate"
	digitalColAmount      = "TransactionAmount"

	amountNotApplicable = "Not Applicable"
)

// ParseDigital reads the digital items CSV and the paired monetary-amounts
// CSV and returns canonical rows. Amounts are summed per item id; the literal
// "Not Applicable" counts as zero. Items with no amounts row at all keep an
// unknown subtotal, which the aggregator propagates to the order total.
func ParseDigital(items, amounts io.Reader) ([]CanonicalRow, error) {
	sums, err := sumDigitalAmounts(amounts)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(items)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading digital items CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	cols, err := headerIndex(records[0], digitalColItemID, digitalColProductName, digitalColFulfilled, digitalColOrderDate)
	if err != nil {
		return nil, fmt.Errorf("digital items CSV: %w", err)
	}

	var rows []CanonicalRow
	for i, rec := range records[1:] {
		if len(rec) <= cols.max {
			return nil, fmt.Errorf("digital items row %d: expected at least %d columns, got %d", i+2, cols.max+1, len(rec))
		}
		id := rec[cols.idx[digitalColItemID]]
		row := CanonicalRow{
			OrderID:      id,
			Description:  rec[cols.idx[digitalColProductName]],
			DeliveryDate: rec[cols.idx[digitalColFulfilled]],
			OrderDate:    rec[cols.idx[digitalColOrderDate]],
			Digital:      true,
		}
		if sum, ok := sums[id]; ok {
			row.Subtotal = sum.Round(2)
			row.SubtotalKnown = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sumDigitalAmounts groups the monetary-amounts table by item id and sums
// the amount column. Digital amounts are never comma-formatted.
func sumDigitalAmounts(r io.Reader) (map[string]decimal.Decimal, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading digital amounts CSV: %w", err)
	}
	sums := make(map[string]decimal.Decimal)
	if len(records) <= 1 {
		return sums, nil
	}

	cols, err := headerIndex(records[0], digitalColItemID, digitalColAmount)
	if err != nil {
		return nil, fmt.Errorf("digital amounts CSV: %w", err)
	}

	for i, rec := range records[1:] {
		if len(rec) <= cols.max {
			return nil, fmt.Errorf("digital amounts row %d: expected at least %d columns, got %d", i+2, cols.max+1, len(rec))
		}
		id := rec[cols.idx[digitalColItemID]]
		raw := rec[cols.idx[digitalColAmount]]
		if raw == amountNotApplicable {
			// Missing value: the item still has an amounts entry, it just
			// contributes nothing to the sum.
			if _, ok := sums[id]; !ok {
				sums[id] = decimal.Zero
			}
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("digital amounts row %d: parsing amount %q: %w", i+2, raw, err)
		}
		sums[id] = sums[id].Add(amount)
	}
	return sums, nil
}

type columnIndex struct {
	idx map[string]int
	max int
}

func headerIndex(header []string, names ...string) (columnIndex, error) {
	cols := columnIndex{idx: make(map[string]int)}
	for i, name := range header {
		cols.idx[name] = i
	}
	for _, name := range names {
		i, ok := cols.idx[name]
		if !ok {
			return columnIndex{}, fmt.Errorf("missing column %q", name)
		}
		if i > cols.max {
			cols.max = i
		}
	}
	return cols, nil
}
