// Package backend assembles the ledger source, the SQLite store and the
// price lookup a process runs with.
package backend

import (
	"context"
	"time"

	"spendlens/internal/ledger"
	"spendlens/internal/pricing"
	"spendlens/internal/storage"
)

// CleanupFunc releases resources held by a created backend.
type CleanupFunc func() error

// Result is a ready ledger source plus the repository when one was opened.
// Repository is nil when no SQLite path is configured.
type Result struct {
	Source     ledger.RowSource
	Repository *storage.SQLiteRepository
	Cleanup    CleanupFunc
}

// LookupResult is the assembled price lookup chain. Every field may be nil.
type LookupResult struct {
	Lookup  pricing.Lookup
	Catalog *pricing.Catalog
	Cache   *pricing.Cached
}

// Factory creates backends based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*Result, error)
	CreateLookup(config LookupConfig) (*LookupResult, error)
}

// Config selects and configures the ledger source.
type Config struct {
	Type SourceType

	LedgerCSVPath string
	SQLiteDBPath  string

	GoogleSpreadsheetID string
	GoogleLedgerRange   string
}

// LookupConfig configures the price lookup chain.
type LookupConfig struct {
	Provider         string
	PriceCatalogPath string
	AnthropicAPIKey  string
	AnthropicModel   string
	Resilience       pricing.ResilientConfig
	CacheSize        int
	CacheTTL         time.Duration
}

// SourceType names a ledger source.
type SourceType string

const (
	CSVSource    SourceType = ledger.SourceCSV
	SheetsSource SourceType = ledger.SourceSheets
	SQLiteSource SourceType = ledger.SourceSQLite
	MemorySource SourceType = ledger.SourceMemory
)

// String implements fmt.Stringer
func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is valid
func (st SourceType) IsValid() bool {
	switch st {
	case CSVSource, SheetsSource, SQLiteSource, MemorySource:
		return true
	default:
		return false
	}
}
