// Package reconcile orchestrates one reconciliation pass: resolve each
// order's search window, find its ledger transaction, classify it, and
// annotate the transaction exactly once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordermatch/amazon-reconciler/internal/adapters/ledger"
	"github.com/ordermatch/amazon-reconciler/internal/domain/orders"
	"github.com/ordermatch/amazon-reconciler/internal/domain/window"
	"github.com/ordermatch/amazon-reconciler/internal/infrastructure/throttle"
)

// noteSuffix is appended to every annotation so updated transactions are
// recognizable (and excluded from future searches via the has-notes filter).
const noteSuffix = " ~Automatically applied via auto-classifier script~"

// LedgerService is the slice of the transaction store the driver needs.
type LedgerService interface {
	Categories(ctx context.Context) ([]ledger.Category, error)
	UpdateTransaction(ctx context.Context, id, notes string, categoryID *string) error
}

// TransactionFinder searches the window for an amount match.
type TransactionFinder interface {
	FindMatch(ctx context.Context, w window.Window, total decimal.Decimal) (*ledger.Transaction, error)
}

// CategoryClassifier predicts one category name from the vocabulary.
type CategoryClassifier interface {
	Classify(ctx context.Context, description string, categories []string) (string, error)
}

// UnmatchedRecord is one order that exhausted all pages without a match.
type UnmatchedRecord struct {
	OrderDate    string
	DeliveryDate string
	Description  string
	TotalCost    decimal.Decimal
}

// Result summarizes a reconciliation pass.
type Result struct {
	Matched   int
	Skipped   int
	Unmatched []UnmatchedRecord
}

// Driver runs the per-order state machine. Orders are processed strictly
// sequentially: every remote call is throttled and fully awaited before the
// next is issued.
type Driver struct {
	ledger     LedgerService
	matcher    TransactionFinder
	classifier CategoryClassifier
	resolver   window.Resolver
	gate       throttle.Gate
	logger     *slog.Logger
	runID      string
}

// New creates a driver.
func New(
	ledgerSvc LedgerService,
	matcher TransactionFinder,
	classifier CategoryClassifier,
	resolver window.Resolver,
	gate throttle.Gate,
	logger *slog.Logger,
) *Driver {
	runID := uuid.NewString()
	return &Driver{
		ledger:     ledgerSvc,
		matcher:    matcher,
		classifier: classifier,
		resolver:   resolver,
		gate:       gate,
		logger:     logger.With("run_id", runID),
		runID:      runID,
	}
}

// Run reconciles every order in the set. Per-order failures are converted
// into skipped or unmatched outcomes; only authentication failures and
// context cancellation abort the run.
func (d *Driver) Run(ctx context.Context, set *orders.OrderSet) (*Result, error) {
	categories, err := d.ledger.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	vocab := ledger.NewCategoryVocabulary(categories)
	d.logger.Info("Loaded category vocabulary", "count", len(vocab.Names))

	result := &Result{}
	for _, id := range set.IDs() {
		order, _ := set.Get(id)
		if err := d.processOrder(ctx, order, vocab, result); err != nil {
			return nil, err
		}
	}

	d.logger.Info("Reconciliation pass complete",
		"matched", result.Matched,
		"skipped", result.Skipped,
		"unmatched", len(result.Unmatched),
	)
	return result, nil
}

// processOrder moves one order from pending to skipped, matched, or
// unmatched. The returned error is non-nil only for run-fatal failures.
func (d *Driver) processOrder(ctx context.Context, order *orders.Order, vocab ledger.CategoryVocabulary, result *Result) error {
	log := d.logger.With("order_id", order.ID)
	log.Info("Processing order",
		"order_date", order.OrderDate,
		"delivery_date", order.DeliveryDate,
		"total_cost", order.TotalCost.String(),
	)

	w, err := d.resolver.Resolve(order)
	if err != nil {
		if errors.Is(err, window.ErrSkippableOrder) {
			log.Warn("Skipping order", "reason", err.Error())
			result.Skipped++
			return nil
		}
		return fmt.Errorf("resolving window for order %s: %w", order.ID, err)
	}

	if !order.TotalKnown {
		// The digital amounts table had no entry for this order, so there is
		// no total to compare against.
		log.Warn("Order total unknown, marking unmatched")
		result.Unmatched = append(result.Unmatched, unmatchedRecord(order))
		return nil
	}

	tx, err := d.matcher.FindMatch(ctx, w, order.TotalCost)
	if err != nil {
		if fatal := runFatal(ctx, err); fatal != nil {
			return fatal
		}
		log.Warn("No matching transaction",
			"start_date", w.StartDate(),
			"end_date", w.EndDate(),
			"error", err.Error(),
		)
		result.Unmatched = append(result.Unmatched, unmatchedRecord(order))
		return nil
	}

	log.Info("Matched transaction",
		"transaction_id", tx.ID,
		"transaction_amount", tx.Amount,
	)

	predicted, err := d.classifier.Classify(ctx, order.Description, vocab.Names)
	if err != nil {
		if fatal := runFatal(ctx, err); fatal != nil {
			return fatal
		}
		// Could not classify this pass; leave the transaction untouched so a
		// re-run can pick the order up again.
		log.Error("Classification failed, marking unmatched", "error", err.Error())
		result.Unmatched = append(result.Unmatched, unmatchedRecord(order))
		return nil
	}
	log.Info("Predicted category", "category", predicted)

	var categoryID *string
	if id, ok := vocab.Resolve(predicted); ok {
		categoryID = &id
	}

	if err := d.gate.Wait(ctx); err != nil {
		return err
	}
	if err := d.ledger.UpdateTransaction(ctx, tx.ID, order.Description+noteSuffix, categoryID); err != nil {
		if fatal := runFatal(ctx, err); fatal != nil {
			return fatal
		}
		log.Error("Failed to update transaction", "transaction_id", tx.ID, "error", err.Error())
		result.Unmatched = append(result.Unmatched, unmatchedRecord(order))
		return nil
	}

	log.Info("Annotated transaction", "transaction_id", tx.ID, "category", predicted)
	result.Matched++
	return nil
}

// runFatal decides whether an error aborts the whole run. Authentication
// failures and context cancellation are fatal; everything else is a
// per-order outcome.
func runFatal(ctx context.Context, err error) error {
	if errors.Is(err, ledger.ErrNotAuthenticated) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func unmatchedRecord(order *orders.Order) UnmatchedRecord {
	return UnmatchedRecord{
		OrderDate:    order.OrderDate,
		DeliveryDate: order.DeliveryDate,
		Description:  order.Description,
		TotalCost:    order.TotalCost,
	}
}
