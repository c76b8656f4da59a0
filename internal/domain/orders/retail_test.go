package orders

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retailRow struct {
	orderID   string
	orderDate string
	subtotal  string
	status    string
	delivery  string
	desc      string
}

// buildRetailCSV renders rows in the fixed 24-column retail export layout.
func buildRetailCSV(t *testing.T, rows []retailRow) string {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, retailMinFields)
	for i := range header {
		header[i] = "col"
	}
	require.NoError(t, w.Write(header))

	for _, r := range rows {
		rec := make([]string, retailMinFields)
		rec[retailColOrderID] = r.orderID
		rec[retailColOrderDate] = r.orderDate
		rec[retailColSubtotal] = r.subtotal
		rec[retailColStatus] = r.status
		rec[retailColDelivery] = r.delivery
		rec[retailColDescription] = r.desc
		require.NoError(t, w.Write(rec))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.String()
}

func TestParseRetail_SkipsHeader(t *testing.T) {
	data := buildRetailCSV(t, []retailRow{
		{orderID: "111-2223334", orderDate: "2024-01-10T00:00:00Z", subtotal: "10.00", delivery: "2024-01-15T00:00:00Z", desc: "USB cable"},
	})

	rows, err := ParseRetail(strings.NewReader(data), ModeRanged)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "111-2223334", rows[0].OrderID)
	assert.Equal(t, "USB cable", rows[0].Description)
	assert.Equal(t, "2024-01-15T00:00:00Z", rows[0].DeliveryDate)
	assert.Equal(t, "2024-01-10T00:00:00Z", rows[0].OrderDate)
	assert.True(t, rows[0].SubtotalKnown)
	assert.False(t, rows[0].Digital)
	assert.Equal(t, "10", rows[0].Subtotal.String())
}

func TestParseRetail_StripsThousandsSeparators(t *testing.T) {
	data := buildRetailCSV(t, []retailRow{
		{orderID: "111-0000001", orderDate: "2024-01-10T00:00:00Z", subtotal: "1,234.56", delivery: "2024-01-12T00:00:00Z", desc: "TV"},
	})

	rows, err := ParseRetail(strings.NewReader(data), ModeRanged)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1234.56", rows[0].Subtotal.String())
}

func TestParseRetail_CancelledFiltering(t *testing.T) {
	data := buildRetailCSV(t, []retailRow{
		{orderID: "111-0000001", orderDate: "2024-01-10T00:00:00Z", subtotal: "10.00", status: "Cancelled", delivery: "2024-01-12T00:00:00Z", desc: "A"},
		{orderID: "111-0000002", orderDate: "2024-01-11T00:00:00Z", subtotal: "5.00", status: "Closed", delivery: "2024-01-13T00:00:00Z", desc: "B"},
	})

	// Legacy mode drops cancelled rows.
	rows, err := ParseRetail(strings.NewReader(data), ModeLegacy)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "111-0000002", rows[0].OrderID)

	// Ranged mode keeps them; the divergence is deliberate.
	rows, err = ParseRetail(strings.NewReader(data), ModeRanged)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestParseRetail_EmptyAndHeaderOnly(t *testing.T) {
	rows, err := ParseRetail(strings.NewReader(""), ModeRanged)
	require.NoError(t, err)
	assert.Empty(t, rows)

	data := buildRetailCSV(t, nil)
	rows, err = ParseRetail(strings.NewReader(data), ModeRanged)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseRetail_ShortRow(t *testing.T) {
	data := "h1,h2\na,b\n"
	_, err := ParseRetail(strings.NewReader(data), ModeRanged)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestParseRetail_BadSubtotal(t *testing.T) {
	data := buildRetailCSV(t, []retailRow{
		{orderID: "111-0000001", orderDate: "2024-01-10T00:00:00Z", subtotal: "abc", delivery: "2024-01-12T00:00:00Z", desc: "A"},
	})
	_, err := ParseRetail(strings.NewReader(data), ModeRanged)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subtotal")
}
