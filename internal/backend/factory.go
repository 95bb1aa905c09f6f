package backend

import (
	"context"
	"fmt"

	"spendlens/internal/config"
	"spendlens/internal/ledger"
	"spendlens/internal/ledger/csvfile"
	gsheet "spendlens/internal/ledger/google"
	"spendlens/internal/ledger/memory"
	"spendlens/internal/log"
	"spendlens/internal/pricing"
	"spendlens/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: logger.OrDefault().WithComponent(log.ComponentLedger),
	}
}

// CreateSource opens the SQLite repository when a path is configured, since
// runs and imported ledgers are stored there whatever the source, and then
// the configured ledger source.
func (f *DefaultFactory) CreateSource(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var repo *storage.SQLiteRepository
	if cfg.SQLiteDBPath != "" {
		var err error
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
	}
	closeRepo := func() error {
		if repo == nil {
			return nil
		}
		return repo.Close()
	}

	var (
		source ledger.RowSource
		err    error
	)
	switch cfg.Type {
	case SQLiteSource:
		source = repo
	case CSVSource:
		source = csvfile.New(cfg.LedgerCSVPath)
	case SheetsSource:
		source, err = f.createSheetsSource(ctx, cfg)
	case MemorySource:
		source = memory.New()
	default:
		err = fmt.Errorf("unsupported ledger source: %s", cfg.Type)
	}
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	f.logger.Info("Initialized ledger source",
		"source", source.Name(),
		"sqlite_enabled", repo != nil)

	return &Result{
		Source:     source,
		Repository: repo,
		Cleanup:    closeRepo,
	}, nil
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, cfg Config) (ledger.RowSource, error) {
	readRange := cfg.GoogleLedgerRange
	if readRange == "" {
		readRange = gsheet.DefaultRange
	}
	src, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, readRange, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return src, nil
}

// CreateLookup builds the lookup chain: the provider, wrapped in retries and
// a circuit breaker, wrapped in an answer cache. The catalog is loaded
// whenever a path is set because it also supplies annual plan terms.
func (f *DefaultFactory) CreateLookup(cfg LookupConfig) (*LookupResult, error) {
	res := &LookupResult{}
	if cfg.PriceCatalogPath != "" {
		catalog, err := pricing.LoadCatalog(cfg.PriceCatalogPath)
		if err != nil {
			return nil, err
		}
		res.Catalog = catalog
		f.logger.Info("Loaded price catalog", "path", cfg.PriceCatalogPath, "entries", catalog.Len())
	}

	var provider pricing.Lookup
	switch cfg.Provider {
	case config.LookupNone, "":
		f.logger.Info("Price lookup disabled")
		return res, nil
	case config.LookupCatalog:
		if res.Catalog == nil {
			return nil, fmt.Errorf("catalog lookup requires a price catalog path")
		}
		provider = res.Catalog
	case config.LookupAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic lookup requires an API key")
		}
		provider = pricing.NewAnthropicLookup(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	default:
		return nil, fmt.Errorf("unsupported lookup provider: %s", cfg.Provider)
	}

	resilient := pricing.NewResilient(provider, cfg.Resilience, f.logger)
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		res.Cache = pricing.NewCached(resilient, cfg.CacheSize, cfg.CacheTTL)
		res.Lookup = res.Cache
	} else {
		res.Lookup = resilient
	}

	f.logger.Info("Initialized price lookup",
		"provider", cfg.Provider,
		"cached", res.Cache != nil,
		"max_attempts", cfg.Resilience.MaxAttempts)
	return res, nil
}
