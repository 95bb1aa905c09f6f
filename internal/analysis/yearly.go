package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"spendlens/internal/core"
)

const (
	// DefaultStabilityTolerance is the coefficient of variation at or below
	// which monthly amounts count as identical.
	DefaultStabilityTolerance = 0.01
	// DefaultMinSamples is the evidence required before classifying a group.
	DefaultMinSamples = 3
)

var twelve = decimal.NewFromInt(12)

// YearlyTerms is what is known about a vendor's annual plan.
type YearlyTerms struct {
	ListPrice    *decimal.Decimal // yearly list price
	DiscountRate *decimal.Decimal // fraction off monthly×12, e.g. 0.20
}

// TermsSource supplies known annual terms per vendor.
type TermsSource interface {
	YearlyTerms(vendor, category string) (YearlyTerms, bool)
}

// StabilityProfile classifies a group's monthly billing.
type StabilityProfile struct {
	SampleCount            int              `json:"sample_count"`
	MeanAmount             decimal.Decimal  `json:"mean_amount"`
	CoefficientOfVariation float64          `json:"coefficient_of_variation"`
	IsStable               bool             `json:"is_stable"`
	ProjectedAnnualCost    decimal.Decimal  `json:"projected_annual_cost"`
	EstimatedSavings       *decimal.Decimal `json:"estimated_savings"`
}

// SwitchRecommendation suggests moving a stable subscription to annual billing.
type SwitchRecommendation struct {
	Category string `json:"category"`
	Vendor   string `json:"vendor"`
	Currency string `json:"currency"`
	StabilityProfile
	SavingsBasis string     `json:"savings_basis,omitempty"`
	Provenance   Provenance `json:"provenance"`
}

type YearlyConfig struct {
	// StabilityTolerance is ε; a group is stable when CV ≤ ε.
	StabilityTolerance float64
	// MinSamples is the minimum number of monthly records to classify.
	MinSamples int
	// DefaultDiscountRate applies when no vendor terms are known. Nil means unknown.
	DefaultDiscountRate *decimal.Decimal
	// Terms is optional.
	Terms TermsSource
}

func DefaultYearlyConfig() YearlyConfig {
	return YearlyConfig{
		StabilityTolerance: DefaultStabilityTolerance,
		MinSamples:         DefaultMinSamples,
	}
}

// YearlyAdvisor recommends annual billing for stable monthly subscriptions.
type YearlyAdvisor struct {
	config YearlyConfig
}

func NewYearlyAdvisor(config YearlyConfig) *YearlyAdvisor {
	if config.MinSamples < 1 {
		config.MinSamples = DefaultMinSamples
	}
	return &YearlyAdvisor{config: config}
}

func (a *YearlyAdvisor) Name() string {
	return AnalyzerYearlySwitch
}

func (a *YearlyAdvisor) Analyze(ctx context.Context, view *GroupedView) (Result, error) {
	var recs []SwitchRecommendation
	for _, key := range view.Keys() {
		profile, currency, ok, err := a.Profile(view.Records(key))
		if err != nil {
			return Result{}, fmt.Errorf("profile %s/%s: %w", key.Category, key.Vendor, err)
		}
		if !ok || !profile.IsStable {
			continue
		}
		basis := a.estimateSavings(key, &profile)
		recs = append(recs, SwitchRecommendation{
			Category:         key.Category,
			Vendor:           key.Vendor,
			Currency:         currency,
			StabilityProfile: profile,
			SavingsBasis:     basis,
			Provenance:       Provenance{Analyzer: AnalyzerYearlySwitch, Completeness: Complete},
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if c := a.ProjectedAnnualCost.Cmp(b.ProjectedAnnualCost); c != 0 {
			return c > 0
		}
		if a.Vendor != b.Vendor {
			return a.Vendor < b.Vendor
		}
		return a.Category < b.Category
	})
	return Result{Switches: recs, Completeness: Complete}, nil
}

// Profile classifies the Monthly records of one group. ok is false when
// there are fewer than MinSamples of them: no classification is made.
func (a *YearlyAdvisor) Profile(records []core.ExpenseRecord) (profile StabilityProfile, currency string, ok bool, err error) {
	var amounts []decimal.Decimal
	for _, rec := range records {
		if rec.Recurrency != core.Monthly {
			continue
		}
		amounts = append(amounts, rec.Amount)
		currency = rec.Currency
	}
	if len(amounts) < a.config.MinSamples {
		return StabilityProfile{}, "", false, nil
	}

	sum := decimal.Zero
	data := make(stats.Float64Data, len(amounts))
	for i, amt := range amounts {
		sum = sum.Add(amt)
		data[i] = amt.InexactFloat64()
	}
	n := decimal.NewFromInt(int64(len(amounts)))
	mean := sum.Div(n)

	cv := 0.0
	if !mean.IsZero() {
		sd, sdErr := stats.StandardDeviationPopulation(data)
		if sdErr != nil {
			return StabilityProfile{}, "", false, fmt.Errorf("standard deviation: %w", sdErr)
		}
		cv = sd / mean.InexactFloat64()
	}
	if math.IsNaN(cv) || math.IsInf(cv, 0) {
		return StabilityProfile{}, "", false, fmt.Errorf("coefficient of variation is not finite")
	}
	cv = math.Round(cv*1e6) / 1e6

	return StabilityProfile{
		SampleCount:            len(amounts),
		MeanAmount:             core.RoundCents(mean),
		CoefficientOfVariation: cv,
		IsStable:               cv <= a.config.StabilityTolerance,
		ProjectedAnnualCost:    core.RoundCents(sum.Mul(twelve).Div(n)),
	}, currency, true, nil
}

// estimateSavings fills EstimatedSavings when annual terms are known and
// returns which source was used. Unknown terms leave it nil.
func (a *YearlyAdvisor) estimateSavings(key GroupKey, p *StabilityProfile) string {
	if a.config.Terms != nil {
		if terms, ok := a.config.Terms.YearlyTerms(key.Vendor, key.Category); ok {
			switch {
			case terms.ListPrice != nil:
				s := core.RoundCents(decimal.Max(p.ProjectedAnnualCost.Sub(*terms.ListPrice), decimal.Zero))
				p.EstimatedSavings = &s
				return "list_price"
			case terms.DiscountRate != nil:
				s := core.RoundCents(p.ProjectedAnnualCost.Mul(*terms.DiscountRate))
				p.EstimatedSavings = &s
				return "vendor_discount"
			}
		}
	}
	if a.config.DefaultDiscountRate != nil {
		s := core.RoundCents(p.ProjectedAnnualCost.Mul(*a.config.DefaultDiscountRate))
		p.EstimatedSavings = &s
		return "default_discount"
	}
	return ""
}
