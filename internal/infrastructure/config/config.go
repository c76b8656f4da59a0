// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// CLI flags are merged on top by cmd/reconcile; flags take precedence over
// the file, which takes precedence over the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential marks a required credential or input that was not
// supplied anywhere. Fatal before any remote call.
var ErrMissingCredential = errors.New("missing required configuration")

// Config represents the entire application configuration.
type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Inputs     InputsConfig     `yaml:"inputs"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LedgerConfig holds transaction-store credentials.
type LedgerConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// ClassifierConfig holds classification-service configuration.
type ClassifierConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// InputsConfig names the CSV sources.
type InputsConfig struct {
	RetailCSV         string `yaml:"retail_csv"`
	DigitalItemsCSV   string `yaml:"digital_items_csv"`
	DigitalAmountsCSV string `yaml:"digital_amounts_csv"`
}

// ReconcileConfig holds the matching parameters.
type ReconcileConfig struct {
	CategoryIDs  []string `yaml:"category_ids"`
	SleepSeconds float64  `yaml:"sleep_seconds"`
	StartDate    string   `yaml:"start_date"` // ISO calendar date
	EndDate      string   `yaml:"end_date"`   // ISO calendar date
	// Search window offsets, in days. Empirically chosen to absorb the
	// settlement latency between the retailer and the account ledger.
	DaysBeforeOrder   int      `yaml:"days_before_order"`
	DaysAfterDelivery int      `yaml:"days_after_delivery"`
	SearchTerms       []string `yaml:"search_terms"`
	LegacyMode        bool     `yaml:"legacy_mode"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LEDGER_PASSWORD})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := &Config{
		Ledger: LedgerConfig{
			Email:    os.Getenv("LEDGER_EMAIL"),
			Password: os.Getenv("LEDGER_PASSWORD"),
		},
		Classifier: ClassifierConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  os.Getenv("ANTHROPIC_MODEL"),
		},
		Inputs: InputsConfig{
			RetailCSV:         os.Getenv("RETAIL_CSV"),
			DigitalItemsCSV:   os.Getenv("DIGITAL_ITEMS_CSV"),
			DigitalAmountsCSV: os.Getenv("DIGITAL_AMOUNTS_CSV"),
		},
		Reconcile: ReconcileConfig{
			CategoryIDs:  splitList(os.Getenv("CATEGORY_IDS")),
			SleepSeconds: getEnvFloat("SLEEP_SECONDS", 0),
			StartDate:    os.Getenv("START_DATE"),
			EndDate:      os.Getenv("END_DATE"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from the given path, falling back to environment
// variables when the path is empty or unreadable.
func LoadOrEnv(path string) *Config {
	if path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return LoadFromEnv()
}

// applyDefaults fills the parameters that have sensible production values.
func (c *Config) applyDefaults() {
	if c.Reconcile.SleepSeconds <= 0 {
		c.Reconcile.SleepSeconds = 1.0
	}
	if c.Reconcile.DaysBeforeOrder <= 0 {
		c.Reconcile.DaysBeforeOrder = 1
	}
	if c.Reconcile.DaysAfterDelivery <= 0 {
		c.Reconcile.DaysAfterDelivery = 4
	}
	if len(c.Reconcile.SearchTerms) == 0 {
		c.Reconcile.SearchTerms = []string{"Amazon", "Prime Video"}
	}
	if c.Reconcile.StartDate == "" || c.Reconcile.EndDate == "" {
		start, end := PreviousMonthRange(time.Now())
		if c.Reconcile.StartDate == "" {
			c.Reconcile.StartDate = start
		}
		if c.Reconcile.EndDate == "" {
			c.Reconcile.EndDate = end
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate reports missing required credentials and inputs. It must pass
// before any remote call is made.
func (c *Config) Validate() error {
	var missing []string
	if c.Ledger.Email == "" {
		missing = append(missing, "ledger email")
	}
	if c.Ledger.Password == "" {
		missing = append(missing, "ledger password")
	}
	if c.Classifier.APIKey == "" {
		missing = append(missing, "classifier API key")
	}
	if c.Inputs.RetailCSV == "" && (c.Inputs.DigitalItemsCSV == "" || c.Inputs.DigitalAmountsCSV == "") {
		missing = append(missing, "at least one CSV source")
	}
	if _, err := time.Parse("2006-01-02", c.Reconcile.StartDate); err != nil {
		return fmt.Errorf("invalid start date %q: %w", c.Reconcile.StartDate, err)
	}
	if _, err := time.Parse("2006-01-02", c.Reconcile.EndDate); err != nil {
		return fmt.Errorf("invalid end date %q: %w", c.Reconcile.EndDate, err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}

// SleepInterval returns the inter-request delay as a duration.
func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.Reconcile.SleepSeconds * float64(time.Second))
}

// PreviousMonthRange returns the first and last day of the calendar month
// before now, as ISO dates.
func PreviousMonthRange(now time.Time) (string, string) {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrevMonth := firstOfThisMonth.AddDate(0, 0, -1)
	firstOfPrevMonth := time.Date(lastOfPrevMonth.Year(), lastOfPrevMonth.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfPrevMonth.Format("2006-01-02"), lastOfPrevMonth.Format("2006-01-02")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default.
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
