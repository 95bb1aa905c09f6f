package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"spendlens/internal/core"
	"spendlens/internal/log"
	"spendlens/internal/pricing"
)

const (
	// DefaultSavingsThreshold is the minimum savings fraction worth reporting.
	DefaultSavingsThreshold = 0.10
	// DefaultLookupConcurrency bounds simultaneous price lookups.
	DefaultLookupConcurrency = 4
)

// Lookup outcomes recorded on each candidate.
const (
	LookupVerified = "verified"
	LookupUnknown  = "unknown"
	LookupDegraded = "degraded"
	LookupSkipped  = "skipped"
)

// SubstitutionCandidate proposes replacing an incumbent with the cheapest
// vendor of the same category during a period both were active.
type SubstitutionCandidate struct {
	Category               string           `json:"category"`
	IncumbentVendor        string           `json:"incumbent_vendor"`
	IncumbentMonthlyCost   decimal.Decimal  `json:"incumbent_monthly_cost"`
	AlternativeVendor      string           `json:"alternative_vendor"`
	AlternativeMonthlyCost decimal.Decimal  `json:"alternative_monthly_cost"`
	SavingsPct             decimal.Decimal  `json:"savings_pct"`
	MonthlySavings         decimal.Decimal  `json:"monthly_savings"`
	PriceVerified          bool             `json:"price_verified"`
	AlternativeListPrice   *decimal.Decimal `json:"alternative_list_price"`
	LookupStatus           string           `json:"lookup_status"`
	OverlapPeriod          core.Window      `json:"overlap_period"`
	Provenance             Provenance       `json:"provenance"`
}

type SubstitutionConfig struct {
	// SavingsThreshold: candidates are emitted only when savings_pct is strictly greater.
	SavingsThreshold float64
	// LookupConcurrency bounds parallel lookups.
	LookupConcurrency int
}

func DefaultSubstitutionConfig() SubstitutionConfig {
	return SubstitutionConfig{
		SavingsThreshold:  DefaultSavingsThreshold,
		LookupConcurrency: DefaultLookupConcurrency,
	}
}

// SubstitutionAdvisor ranks cheaper same-category alternatives. Costs always
// come from the ledger; the optional lookup only verifies the alternative's
// current price and never blocks or fails the result.
type SubstitutionAdvisor struct {
	config SubstitutionConfig
	lookup pricing.Lookup
	logger *log.Logger
}

func NewSubstitutionAdvisor(config SubstitutionConfig, lookup pricing.Lookup, logger *log.Logger) *SubstitutionAdvisor {
	if config.LookupConcurrency < 1 {
		config.LookupConcurrency = DefaultLookupConcurrency
	}
	return &SubstitutionAdvisor{
		config: config,
		lookup: lookup,
		logger: logger.OrDefault().WithComponent(log.ComponentAnalysis),
	}
}

func (a *SubstitutionAdvisor) Name() string {
	return AnalyzerSubstitution
}

type lookupOutcome struct {
	status string
	quote  pricing.Quote
	err    error
}

func (a *SubstitutionAdvisor) Analyze(ctx context.Context, view *GroupedView) (Result, error) {
	candidates := a.Candidates(view)
	if len(candidates) == 0 {
		return Result{Substitutions: candidates, Completeness: Complete}, nil
	}

	outcomes := a.verify(ctx, candidates)
	degraded := 0
	for i := range candidates {
		c := &candidates[i]
		out := outcomes[GroupKey{Category: c.Category, Vendor: c.AlternativeVendor}]
		c.LookupStatus = out.status
		switch out.status {
		case LookupVerified:
			c.PriceVerified = true
			price := core.RoundCents(out.quote.MonthlyPrice)
			c.AlternativeListPrice = &price
		case LookupDegraded:
			c.Provenance.Completeness = Partial
			degraded++
		}
	}

	res := Result{Substitutions: candidates, Completeness: Complete}
	if degraded > 0 {
		res.Completeness = Partial
		res.Reason = fmt.Sprintf("price lookup degraded for %d of %d candidates; ledger costs used", degraded, len(candidates))
	}
	return res, nil
}

// Candidates computes substitution candidates from ledger costs alone, all
// unverified, in report order.
func (a *SubstitutionAdvisor) Candidates(view *GroupedView) []SubstitutionCandidate {
	threshold := decimal.NewFromFloat(a.config.SavingsThreshold)
	candidates := []SubstitutionCandidate{}

	for _, category := range view.Categories() {
		vendors := view.Vendors(category)
		if len(vendors) < 2 {
			continue
		}

		alt := GroupKey{Category: category, Vendor: vendors[0]}
		for _, v := range vendors[1:] {
			key := GroupKey{Category: category, Vendor: v}
			if view.MonthlyCost(key).LessThan(view.MonthlyCost(alt)) {
				alt = key
			}
		}
		altCost := view.MonthlyCost(alt)
		altWindows := view.ActiveWindows(alt)

		for _, v := range vendors {
			if v == alt.Vendor {
				continue
			}
			key := GroupKey{Category: category, Vendor: v}
			cost := view.MonthlyCost(key)
			if !cost.IsPositive() {
				continue
			}
			spans := Intersections(view.ActiveWindows(key), altWindows)
			overlap, ok := Envelope(spans)
			if !ok {
				continue
			}
			pct := cost.Sub(altCost).Div(cost)
			if !pct.GreaterThan(threshold) {
				continue
			}
			candidates = append(candidates, SubstitutionCandidate{
				Category:               category,
				IncumbentVendor:        v,
				IncumbentMonthlyCost:   cost,
				AlternativeVendor:      alt.Vendor,
				AlternativeMonthlyCost: altCost,
				SavingsPct:             pct.Round(4),
				MonthlySavings:         cost.Sub(altCost),
				LookupStatus:           LookupSkipped,
				OverlapPeriod:          overlap,
				Provenance:             Provenance{Analyzer: AnalyzerSubstitution, Completeness: Complete},
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if c := a.SavingsPct.Cmp(b.SavingsPct); c != 0 {
			return c > 0
		}
		if c := a.IncumbentMonthlyCost.Cmp(b.IncumbentMonthlyCost); c != 0 {
			return c > 0
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.IncumbentVendor < b.IncumbentVendor
	})
	return candidates
}

// verify looks up each distinct alternative once, with bounded concurrency.
// Every lookup error is captured as an outcome; none is propagated.
func (a *SubstitutionAdvisor) verify(ctx context.Context, candidates []SubstitutionCandidate) map[GroupKey]lookupOutcome {
	outcomes := make(map[GroupKey]lookupOutcome)
	if a.lookup == nil {
		for _, c := range candidates {
			outcomes[GroupKey{Category: c.Category, Vendor: c.AlternativeVendor}] = lookupOutcome{status: LookupSkipped}
		}
		return outcomes
	}

	var keys []GroupKey
	seen := make(map[GroupKey]bool)
	for _, c := range candidates {
		k := GroupKey{Category: c.Category, Vendor: c.AlternativeVendor}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(a.config.LookupConcurrency)
	for _, k := range keys {
		g.Go(func() error {
			out := a.lookupOne(ctx, k)
			mu.Lock()
			outcomes[k] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (a *SubstitutionAdvisor) lookupOne(ctx context.Context, k GroupKey) (out lookupOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = lookupOutcome{status: LookupDegraded, err: fmt.Errorf("lookup panic: %v", r)}
		}
		if out.status == LookupDegraded {
			a.logger.LogFields(ctx, slog.LevelWarn, "Price lookup degraded", log.NewFields().
				WithVendor(k.Vendor, k.Category).
				WithOperation(log.OpLookup).
				WithError(out.err))
		}
	}()

	if err := ctx.Err(); err != nil {
		return lookupOutcome{status: LookupDegraded, err: err}
	}
	quote, err := a.lookup.Lookup(ctx, k.Vendor, k.Category)
	switch {
	case err == nil && quote.MonthlyPrice.IsPositive():
		return lookupOutcome{status: LookupVerified, quote: quote}
	case err == nil, errors.Is(err, pricing.ErrPriceUnknown):
		return lookupOutcome{status: LookupUnknown}
	default:
		return lookupOutcome{status: LookupDegraded, err: err}
	}
}
