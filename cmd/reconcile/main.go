// Command reconcile matches retail and digital purchase-history CSV exports
// against ledger transactions and annotates the matches with a predicted
// spending category.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ordermatch/amazon-reconciler/internal/adapters/anthropic"
	"github.com/ordermatch/amazon-reconciler/internal/adapters/ledger"
	"github.com/ordermatch/amazon-reconciler/internal/application/reconcile"
	"github.com/ordermatch/amazon-reconciler/internal/domain/classify"
	"github.com/ordermatch/amazon-reconciler/internal/domain/matcher"
	"github.com/ordermatch/amazon-reconciler/internal/domain/orders"
	"github.com/ordermatch/amazon-reconciler/internal/domain/window"
	"github.com/ordermatch/amazon-reconciler/internal/infrastructure/config"
	"github.com/ordermatch/amazon-reconciler/internal/infrastructure/throttle"
	"github.com/ordermatch/amazon-reconciler/internal/observability"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		retailCSV   = flag.String("csv", "", "Retail order-history CSV path")
		itemsCSV    = flag.String("digital-items-csv", "", "Digital items CSV path")
		amountsCSV  = flag.String("digital-amounts-csv", "", "Digital order monetary-amounts CSV path")
		categoryIDs = flag.String("category-ids", "", "Category IDs to filter (comma-separated)")
		email       = flag.String("email", "", "Ledger account email")
		password    = flag.String("password", "", "Ledger account password")
		apiKey      = flag.String("api-key", "", "Classification service API key")
		sleepSecs   = flag.Float64("sleep-seconds", 0, "Delay between remote calls (default 1.0)")
		startDate   = flag.String("start-date", "", "Start of order date range (default: first day of previous month)")
		endDate     = flag.String("end-date", "", "End of order date range (default: last day of previous month)")
		legacy      = flag.Bool("legacy", false, "Use the legacy single-schema normalization mode")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	// Local .env, if present, feeds the env fallback.
	_ = godotenv.Load()

	cfg := config.LoadOrEnv(*configFile)
	mergeFlags(cfg, *retailCSV, *itemsCSV, *amountsCSV, *categoryIDs, *email, *password, *apiKey, *sleepSecs, *startDate, *endDate, *legacy)
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("Reconciliation failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	mode := orders.ModeRanged
	if cfg.Reconcile.LegacyMode {
		mode = orders.ModeLegacy
	}

	rows, err := orders.LoadSources(
		cfg.Inputs.RetailCSV,
		cfg.Inputs.DigitalItemsCSV,
		cfg.Inputs.DigitalAmountsCSV,
		mode,
		logger,
	)
	if err != nil {
		return err
	}
	logger.Info("Loaded canonical rows", "count", len(rows))

	start, err := time.Parse("2006-01-02", cfg.Reconcile.StartDate)
	if err != nil {
		return fmt.Errorf("parsing start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.Reconcile.EndDate)
	if err != nil {
		return fmt.Errorf("parsing end date: %w", err)
	}

	set := orders.Aggregate(rows, start, end, logger)
	logger.Info("Aggregated orders",
		"orders", set.Len(),
		"start_date", cfg.Reconcile.StartDate,
		"end_date", cfg.Reconcile.EndDate,
	)

	ledgerClient := ledger.NewClient()
	if err := ledgerClient.Login(ctx, cfg.Ledger.Email, cfg.Ledger.Password); err != nil {
		return fmt.Errorf("ledger login: %w", err)
	}

	gate := throttle.NewInterval(cfg.SleepInterval())

	matchConfig := matcher.DefaultConfig()
	matchConfig.SearchTerms = cfg.Reconcile.SearchTerms
	matchConfig.CategoryIDs = cfg.Reconcile.CategoryIDs

	messagesClient := anthropic.NewClient(cfg.Classifier.APIKey)
	messagesClient.SetModel(cfg.Classifier.Model)

	driver := reconcile.New(
		ledgerClient,
		matcher.New(ledgerClient, gate, matchConfig, logger),
		classify.New(messagesClient, gate),
		window.Resolver{
			DaysBeforeOrder:   cfg.Reconcile.DaysBeforeOrder,
			DaysAfterDelivery: cfg.Reconcile.DaysAfterDelivery,
		},
		gate,
		logger,
	)

	result, err := driver.Run(ctx, set)
	if err != nil {
		return err
	}
	result.WriteUnmatchedReport(os.Stdout)
	return nil
}

// mergeFlags layers non-empty CLI flags over the loaded configuration.
func mergeFlags(cfg *config.Config, retailCSV, itemsCSV, amountsCSV, categoryIDs, email, password, apiKey string, sleepSecs float64, startDate, endDate string, legacy bool) {
	if retailCSV != "" {
		cfg.Inputs.RetailCSV = retailCSV
	}
	if itemsCSV != "" {
		cfg.Inputs.DigitalItemsCSV = itemsCSV
	}
	if amountsCSV != "" {
		cfg.Inputs.DigitalAmountsCSV = amountsCSV
	}
	if categoryIDs != "" {
		var ids []string
		for _, id := range strings.Split(categoryIDs, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
		cfg.Reconcile.CategoryIDs = ids
	}
	if email != "" {
		cfg.Ledger.Email = email
	}
	if password != "" {
		cfg.Ledger.Password = password
	}
	if apiKey != "" {
		cfg.Classifier.APIKey = apiKey
	}
	if sleepSecs > 0 {
		cfg.Reconcile.SleepSeconds = sleepSecs
	}
	if startDate != "" {
		cfg.Reconcile.StartDate = startDate
	}
	if endDate != "" {
		cfg.Reconcile.EndDate = endDate
	}
	if legacy {
		cfg.Reconcile.LegacyMode = true
	}
}
