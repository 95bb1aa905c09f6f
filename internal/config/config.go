package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Ledger sources
const (
	LedgerCSV    = "csv"
	LedgerSheets = "sheets"
	LedgerSQLite = "sqlite"
	LedgerMemory = "memory"
)

// Price lookup providers
const (
	LookupNone      = "none"
	LookupCatalog   = "catalog"
	LookupAnthropic = "anthropic"
)

var (
	validLedgerSources = []string{LedgerCSV, LedgerSheets, LedgerSQLite, LedgerMemory}
	validLookups       = []string{LookupNone, LookupCatalog, LookupAnthropic}
)

// CronParser accepts standard five-field expressions.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type Config struct {
	// HTTP Server
	Port           string
	LogLevel       string
	TrustedProxies []string // CIDRs added to the private ranges

	// Ledger
	LedgerSource        string
	LedgerCSVPath       string
	SQLiteDBPath        string
	GoogleSpreadsheetID string
	GoogleLedgerRange   string

	// AMQP, optional
	AMQPURL              string
	AMQPExchange         string
	AMQPQueue            string
	AMQPReportRoutingKey string

	// Analysis
	StabilityTolerance float64
	SavingsThreshold   float64
	MinSwitchSamples   int
	YearlyDiscountRate string
	AnalyzerTimeout    time.Duration

	// Price lookup
	LookupProvider    string
	PriceCatalogPath  string
	LookupTimeout     time.Duration
	LookupMaxAttempts int
	LookupBackoff     time.Duration
	LookupConcurrency int
	LookupCacheTTL    time.Duration
	LookupCacheSize   int
	AnthropicAPIKey   string
	AnthropicModel    string

	// Worker
	AnalysisSchedule string
	SlackBotToken    string
	SlackChannelID   string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		LedgerSource:        strings.ToLower(getEnv("LEDGER_SOURCE", LedgerSQLite)),
		LedgerCSVPath:       getEnv("LEDGER_CSV_PATH", ""),
		SQLiteDBPath:        getEnv("SQLITE_DB_PATH", "./data/spendlens.db"),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLedgerRange:   getEnv("GOOGLE_LEDGER_RANGE", "Ledger!A:N"),

		AMQPURL:              getEnv("AMQP_URL", ""),
		AMQPExchange:         getEnv("AMQP_EXCHANGE", "spendlens"),
		AMQPQueue:            getEnv("AMQP_QUEUE", "analysis_requests"),
		AMQPReportRoutingKey: getEnv("AMQP_REPORT_ROUTING_KEY", "report.completed"),

		StabilityTolerance: getEnvFloat("STABILITY_TOLERANCE", 0.01),
		SavingsThreshold:   getEnvFloat("SAVINGS_THRESHOLD", 0.10),
		MinSwitchSamples:   getEnvInt("MIN_SWITCH_SAMPLES", 3),
		YearlyDiscountRate: getEnv("YEARLY_DISCOUNT_RATE", ""),
		AnalyzerTimeout:    getEnvDuration("ANALYZER_TIMEOUT", 30*time.Second),

		LookupProvider:    strings.ToLower(getEnv("LOOKUP_PROVIDER", LookupNone)),
		PriceCatalogPath:  getEnv("PRICE_CATALOG_PATH", ""),
		LookupTimeout:     getEnvDuration("LOOKUP_TIMEOUT", 3*time.Second),
		LookupMaxAttempts: getEnvInt("LOOKUP_MAX_ATTEMPTS", 3),
		LookupBackoff:     getEnvDuration("LOOKUP_BACKOFF", 200*time.Millisecond),
		LookupConcurrency: getEnvInt("LOOKUP_CONCURRENCY", 4),
		LookupCacheTTL:    getEnvDuration("LOOKUP_CACHE_TTL", time.Hour),
		LookupCacheSize:   getEnvInt("LOOKUP_CACHE_SIZE", 512),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", ""),

		AnalysisSchedule: getEnv("ANALYSIS_SCHEDULE", ""),
		SlackBotToken:    getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:   getEnv("SLACK_CHANNEL_ID", ""),
	}
}

// DiscountRate parses YEARLY_DISCOUNT_RATE. Nil means no default discount.
func (c *Config) DiscountRate() (*decimal.Decimal, error) {
	s := strings.TrimSpace(c.YearlyDiscountRate)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLedgerSources, c.LedgerSource) {
		errors = append(errors, fmt.Sprintf("invalid ledger source '%s': must be one of %v", c.LedgerSource, validLedgerSources))
	}
	switch c.LedgerSource {
	case LedgerCSV:
		if c.LedgerCSVPath == "" {
			errors = append(errors, "LEDGER_CSV_PATH is required when using csv ledger source")
		}
	case LedgerSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite ledger source")
		}
	case LedgerSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets ledger source")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPReportRoutingKey == "" {
			errors = append(errors, "AMQP report routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.StabilityTolerance < 0 || c.StabilityTolerance > 1 {
		errors = append(errors, fmt.Sprintf("invalid stability tolerance %v: must be between 0 and 1", c.StabilityTolerance))
	}
	if c.SavingsThreshold < 0 || c.SavingsThreshold >= 1 {
		errors = append(errors, fmt.Sprintf("invalid savings threshold %v: must be at least 0 and below 1", c.SavingsThreshold))
	}
	if c.MinSwitchSamples < 1 {
		errors = append(errors, fmt.Sprintf("invalid minimum switch samples %d: must be at least 1", c.MinSwitchSamples))
	}
	if rate, err := c.DiscountRate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid yearly discount rate '%s': %v", c.YearlyDiscountRate, err))
	} else if rate != nil && (rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		errors = append(errors, fmt.Sprintf("invalid yearly discount rate %s: must be at least 0 and below 1", rate))
	}
	if c.AnalyzerTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid analyzer timeout %v: must be at least 1 second", c.AnalyzerTimeout))
	}

	if !slices.Contains(validLookups, c.LookupProvider) {
		errors = append(errors, fmt.Sprintf("invalid lookup provider '%s': must be one of %v", c.LookupProvider, validLookups))
	}
	if c.LookupProvider == LookupCatalog && c.PriceCatalogPath == "" {
		errors = append(errors, "PRICE_CATALOG_PATH is required when using catalog lookup provider")
	}
	if c.LookupProvider == LookupAnthropic && c.AnthropicAPIKey == "" {
		errors = append(errors, "ANTHROPIC_API_KEY is required when using anthropic lookup provider")
	}
	if c.LookupProvider != LookupNone {
		if c.LookupTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid lookup timeout %v: must be positive", c.LookupTimeout))
		}
		if c.LookupMaxAttempts < 1 || c.LookupMaxAttempts > 10 {
			errors = append(errors, fmt.Sprintf("invalid lookup max attempts %d: must be between 1 and 10", c.LookupMaxAttempts))
		}
		if c.LookupBackoff <= 0 {
			errors = append(errors, fmt.Sprintf("invalid lookup backoff %v: must be positive", c.LookupBackoff))
		}
		if c.LookupConcurrency < 1 || c.LookupConcurrency > 64 {
			errors = append(errors, fmt.Sprintf("invalid lookup concurrency %d: must be between 1 and 64", c.LookupConcurrency))
		}
		if c.LookupCacheSize < 1 {
			errors = append(errors, fmt.Sprintf("invalid lookup cache size %d: must be at least 1", c.LookupCacheSize))
		}
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.AnalysisSchedule != "" {
		if _, err := CronParser.Parse(c.AnalysisSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid analysis schedule '%s': %v", c.AnalysisSchedule, err))
		}
	}
	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		errors = append(errors, "SLACK_BOT_TOKEN and SLACK_CHANNEL_ID must be set together")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
