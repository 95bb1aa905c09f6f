package services

import (
	"time"

	"github.com/shopspring/decimal"

	"spendlens/internal/analysis"
	"spendlens/internal/ingest"
	"spendlens/internal/log"
	"spendlens/internal/pricing"
)

// EngineConfig carries the tunables of the three analyzers.
type EngineConfig struct {
	StabilityTolerance  float64
	MinSwitchSamples    int
	DefaultDiscountRate *decimal.Decimal
	SavingsThreshold    float64
	LookupConcurrency   int
	AnalyzerTimeout     time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StabilityTolerance: analysis.DefaultStabilityTolerance,
		MinSwitchSamples:   analysis.DefaultMinSamples,
		SavingsThreshold:   analysis.DefaultSavingsThreshold,
		LookupConcurrency:  analysis.DefaultLookupConcurrency,
		AnalyzerTimeout:    DefaultAnalyzerTimeout,
	}
}

// NewEngine wires the normalizer and the three analyzers into an
// orchestrator. lookup and terms may be nil.
func NewEngine(cfg EngineConfig, lookup pricing.Lookup, terms analysis.TermsSource, logger *log.Logger) *Orchestrator {
	analyzers := []analysis.Analyzer{
		analysis.NewDuplicateDetector(),
		analysis.NewYearlyAdvisor(analysis.YearlyConfig{
			StabilityTolerance:  cfg.StabilityTolerance,
			MinSamples:          cfg.MinSwitchSamples,
			DefaultDiscountRate: cfg.DefaultDiscountRate,
			Terms:               terms,
		}),
		analysis.NewSubstitutionAdvisor(analysis.SubstitutionConfig{
			SavingsThreshold:  cfg.SavingsThreshold,
			LookupConcurrency: cfg.LookupConcurrency,
		}, lookup, logger),
	}
	return NewOrchestrator(ingest.NewNormalizer(logger), analyzers, OrchestratorConfig{AnalyzerTimeout: cfg.AnalyzerTimeout}, logger)
}

// CatalogTerms exposes a price catalog's annual plans to the yearly advisor.
type CatalogTerms struct {
	Catalog *pricing.Catalog
}

func (c CatalogTerms) YearlyTerms(vendor, category string) (analysis.YearlyTerms, bool) {
	if c.Catalog == nil {
		return analysis.YearlyTerms{}, false
	}
	t, ok := c.Catalog.Terms(vendor, category)
	if !ok {
		return analysis.YearlyTerms{}, false
	}
	return analysis.YearlyTerms{ListPrice: t.YearlyListPrice, DiscountRate: t.YearlyDiscount}, true
}
