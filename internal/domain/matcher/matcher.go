// Package matcher finds the ledger transaction that pays for an order.
//
// The transaction store has no OR-of-terms query, so each page is fetched
// once per merchant search term and the result sets are concatenated. The
// first transaction whose rounded absolute amount equals the order total
// wins; ties between same-amount transactions in the window resolve to the
// first one encountered in the concatenated list. The matcher has no way to
// disambiguate same-amount orders placed close together; that is a known
// weakness of amount-only matching.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ordermatch/amazon-reconciler/internal/adapters/ledger"
	"github.com/ordermatch/amazon-reconciler/internal/domain/window"
	"github.com/ordermatch/amazon-reconciler/internal/infrastructure/throttle"
)

// ErrNotFound means every page was exhausted without an amount match.
var ErrNotFound = errors.New("no matching transaction")

// TransactionSource runs one page of a filtered transaction search.
type TransactionSource interface {
	Transactions(ctx context.Context, p ledger.SearchParams) ([]ledger.Transaction, error)
}

// Config holds matcher configuration.
type Config struct {
	PageSize    int
	SearchTerms []string // one remote search per term, per page
	CategoryIDs []string // optional category filter passed through to the store
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		PageSize:    100,
		SearchTerms: []string{"Amazon", "Prime Video"},
	}
}

// Matcher pages through the transaction store looking for a monetary match.
type Matcher struct {
	source TransactionSource
	gate   throttle.Gate
	config Config
	logger *slog.Logger
}

// New creates a matcher over source, paced by gate.
func New(source TransactionSource, gate throttle.Gate, config Config, logger *slog.Logger) *Matcher {
	return &Matcher{
		source: source,
		gate:   gate,
		config: config,
		logger: logger,
	}
}

// FindMatch searches the window for a transaction whose rounded absolute
// amount equals total. It returns ErrNotFound once the combined page count
// drops below the page size with no match. That last-page signal is an
// approximation: two independently-paged searches are concatenated, so the
// combined count is not an exact count of a single result set.
func (m *Matcher) FindMatch(ctx context.Context, w window.Window, total decimal.Decimal) (*ledger.Transaction, error) {
	want := total.Round(2)

	for offset := 0; ; offset += m.config.PageSize {
		page, err := m.fetchPage(ctx, w, offset)
		if err != nil {
			return nil, err
		}

		m.logger.Debug("Checked transaction page",
			"start_date", w.StartDate(),
			"end_date", w.EndDate(),
			"offset", offset,
			"candidates", len(page),
		)

		for i := range page {
			tx := &page[i]
			got := decimal.NewFromFloat(tx.Amount).Abs().Round(2)
			m.logger.Debug("Comparing amounts",
				"transaction_id", tx.ID,
				"transaction_amount", tx.Amount,
				"rounded", got.String(),
				"total_cost", want.String(),
			)
			if got.Equal(want) {
				return tx, nil
			}
		}

		if len(page) < m.config.PageSize {
			return nil, fmt.Errorf("amount %s between %s and %s: %w", want.String(), w.StartDate(), w.EndDate(), ErrNotFound)
		}
	}
}

// fetchPage queries the store once per search term at the given offset and
// concatenates the results in term order.
func (m *Matcher) fetchPage(ctx context.Context, w window.Window, offset int) ([]ledger.Transaction, error) {
	var page []ledger.Transaction
	for _, term := range m.config.SearchTerms {
		if err := m.gate.Wait(ctx); err != nil {
			return nil, err
		}
		results, err := m.source.Transactions(ctx, ledger.SearchParams{
			Limit:       m.config.PageSize,
			Offset:      offset,
			StartDate:   w.StartDate(),
			EndDate:     w.EndDate(),
			CategoryIDs: m.config.CategoryIDs,
			Search:      term,
			HasNotes:    false,
		})
		if err != nil {
			return nil, fmt.Errorf("searching %q at offset %d: %w", term, offset, err)
		}
		page = append(page, results...)
	}
	return page, nil
}
