package matcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermatch/amazon-reconciler/internal/adapters/ledger"
	"github.com/ordermatch/amazon-reconciler/internal/domain/window"
	"github.com/ordermatch/amazon-reconciler/internal/infrastructure/throttle"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWindow() window.Window {
	return window.Window{
		Start: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC),
	}
}

// fakeSource serves canned pages keyed by search term and offset.
type fakeSource struct {
	pages   map[string]map[int][]ledger.Transaction
	fetches int
	err     error
}

func (f *fakeSource) Transactions(_ context.Context, p ledger.SearchParams) ([]ledger.Transaction, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[p.Search][p.Offset], nil
}

func testConfig() Config {
	return Config{PageSize: 100, SearchTerms: []string{"Amazon", "Prime Video"}}
}

func TestFindMatch_RoundedAbsoluteAmount(t *testing.T) {
	source := &fakeSource{pages: map[string]map[int][]ledger.Transaction{
		"Amazon": {0: {
			{ID: "tx1", Amount: -19.99},
			{ID: "tx2", Amount: -42.17},
		}},
		"Prime Video": {},
	}}
	m := New(source, throttle.None{}, testConfig(), discardLogger())

	tx, err := m.FindMatch(context.Background(), testWindow(), decimal.RequireFromString("42.17"))
	require.NoError(t, err)
	assert.Equal(t, "tx2", tx.ID)
}

func TestFindMatch_NoMatchExhaustsPages(t *testing.T) {
	source := &fakeSource{pages: map[string]map[int][]ledger.Transaction{
		"Amazon": {0: {
			{ID: "tx1", Amount: -42.17},
		}},
		"Prime Video": {},
	}}
	m := New(source, throttle.None{}, testConfig(), discardLogger())

	_, err := m.FindMatch(context.Background(), testWindow(), decimal.RequireFromString("42.18"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	// One short page means one fetch per term.
	assert.Equal(t, 2, source.fetches)
}

func TestFindMatch_PaginationTermination(t *testing.T) {
	// Three full combined pages, then a short one: exactly four page fetches
	// per term and then stop.
	fullAmazon := make([]ledger.Transaction, 60)
	fullPrime := make([]ledger.Transaction, 40)
	for i := range fullAmazon {
		fullAmazon[i] = ledger.Transaction{ID: "a", Amount: -1}
	}
	for i := range fullPrime {
		fullPrime[i] = ledger.Transaction{ID: "p", Amount: -2}
	}

	source := &fakeSource{pages: map[string]map[int][]ledger.Transaction{
		"Amazon": {
			0:   fullAmazon,
			100: fullAmazon,
			200: fullAmazon,
			300: fullAmazon[:25],
		},
		"Prime Video": {
			0:   fullPrime,
			100: fullPrime,
			200: fullPrime,
			300: fullPrime[:15],
		},
	}}
	m := New(source, throttle.None{}, testConfig(), discardLogger())

	_, err := m.FindMatch(context.Background(), testWindow(), decimal.RequireFromString("999.99"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 8, source.fetches) // 4 pages x 2 terms
}

func TestFindMatch_TieResolvesToFirstEncountered(t *testing.T) {
	source := &fakeSource{pages: map[string]map[int][]ledger.Transaction{
		"Amazon": {0: {
			{ID: "first", Amount: -15.50},
		}},
		"Prime Video": {0: {
			{ID: "second", Amount: -15.50},
		}},
	}}
	m := New(source, throttle.None{}, testConfig(), discardLogger())

	tx, err := m.FindMatch(context.Background(), testWindow(), decimal.RequireFromString("15.50"))
	require.NoError(t, err)
	assert.Equal(t, "first", tx.ID)
}

func TestFindMatch_SourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	m := New(source, throttle.None{}, testConfig(), discardLogger())

	_, err := m.FindMatch(context.Background(), testWindow(), decimal.RequireFromString("1.00"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// countingGate verifies the matcher waits on the gate before every fetch.
type countingGate struct{ waits int }

func (g *countingGate) Wait(context.Context) error {
	g.waits++
	return nil
}

func TestFindMatch_WaitsOnGatePerFetch(t *testing.T) {
	source := &fakeSource{pages: map[string]map[int][]ledger.Transaction{
		"Amazon":      {0: {{ID: "tx1", Amount: -5.00}}},
		"Prime Video": {},
	}}
	gate := &countingGate{}
	m := New(source, gate, testConfig(), discardLogger())

	_, err := m.FindMatch(context.Background(), testWindow(), decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	assert.Equal(t, source.fetches, gate.waits)
}
