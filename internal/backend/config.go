package backend

import (
	"fmt"

	"spendlens/internal/config"
	"spendlens/internal/pricing"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sourceType := SourceType(appConfig.LedgerSource)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("invalid ledger source in config: %s", appConfig.LedgerSource)
	}

	return Config{
		Type:                sourceType,
		LedgerCSVPath:       appConfig.LedgerCSVPath,
		SQLiteDBPath:        appConfig.SQLiteDBPath,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleLedgerRange:   appConfig.GoogleLedgerRange,
	}, nil
}

// LookupFromAppConfig converts the application config to lookup config.
func LookupFromAppConfig(appConfig *config.Config) LookupConfig {
	resilience := pricing.DefaultResilientConfig()
	if appConfig.LookupTimeout > 0 {
		resilience.Timeout = appConfig.LookupTimeout
	}
	if appConfig.LookupMaxAttempts > 0 {
		resilience.MaxAttempts = appConfig.LookupMaxAttempts
	}
	if appConfig.LookupBackoff > 0 {
		resilience.BaseBackoff = appConfig.LookupBackoff
	}
	return LookupConfig{
		Provider:         appConfig.LookupProvider,
		PriceCatalogPath: appConfig.PriceCatalogPath,
		AnthropicAPIKey:  appConfig.AnthropicAPIKey,
		AnthropicModel:   appConfig.AnthropicModel,
		Resilience:       resilience,
		CacheSize:        appConfig.LookupCacheSize,
		CacheTTL:         appConfig.LookupCacheTTL,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid ledger source: %s (valid: %v)", c.Type, GetSourceTypes())
	}

	switch c.Type {
	case CSVSource:
		if c.LedgerCSVPath == "" {
			return fmt.Errorf("ledger CSV path is required for csv source")
		}
	case SQLiteSource:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite source")
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
		}
	case MemorySource:
		// Starts empty; rows arrive through uploads.
	}

	return nil
}

// GetSourceTypes returns all valid source types
func GetSourceTypes() []SourceType {
	return []SourceType{CSVSource, SheetsSource, SQLiteSource, MemorySource}
}
