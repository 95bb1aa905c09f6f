package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"spendlens/internal/core"
	"spendlens/internal/log"
	"spendlens/internal/pricing"
)

func infraView(t *testing.T) *GroupedView {
	t.Helper()
	recs := append(monthSeries("a", "infra", "AWS", "3000", "3000", "3000"),
		monthSeries("g", "infra", "GCP", "2800", "2800", "2800")...)
	return mustGroup(t, recs...)
}

func TestSubstitutionAdvisor_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      int
	}{
		{"below default threshold", 0.10, 0},
		{"above lowered threshold", 0.05, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSubstitutionAdvisor(SubstitutionConfig{SavingsThreshold: tt.threshold}, nil, log.Discard())
			got := a.Candidates(infraView(t))
			if len(got) != tt.want {
				t.Fatalf("got %d candidates, want %d", len(got), tt.want)
			}
			if tt.want == 0 {
				return
			}
			c := got[0]
			if c.IncumbentVendor != "AWS" || c.AlternativeVendor != "GCP" {
				t.Errorf("incumbent/alternative = %s/%s", c.IncumbentVendor, c.AlternativeVendor)
			}
			if !c.SavingsPct.Equal(dec("0.0667")) {
				t.Errorf("SavingsPct = %s, want 0.0667", c.SavingsPct)
			}
			if !c.MonthlySavings.Equal(dec("200")) {
				t.Errorf("MonthlySavings = %s, want 200", c.MonthlySavings)
			}
			if !c.OverlapPeriod.Start.Equal(core.NewDate(2025, 1, 1)) || !c.OverlapPeriod.End.Equal(core.NewDate(2025, 3, 31)) {
				t.Errorf("OverlapPeriod = %s", c.OverlapPeriod)
			}
		})
	}
}

func TestSubstitutionAdvisor_ThresholdIsStrict(t *testing.T) {
	recs := append(monthSeries("a", "docs", "Confluence", "100"), monthSeries("n", "docs", "Notion", "90")...)
	a := NewSubstitutionAdvisor(SubstitutionConfig{SavingsThreshold: 0.10}, nil, log.Discard())
	if got := a.Candidates(mustGroup(t, recs...)); len(got) != 0 {
		t.Errorf("savings exactly at threshold must not be emitted: %+v", got)
	}
}

func TestSubstitutionAdvisor_RequiresOverlap(t *testing.T) {
	recs := []core.ExpenseRecord{
		monthly("a", "infra", "AWS", "3000", core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)),
		monthly("g", "infra", "GCP", "1000", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31)),
	}
	a := NewSubstitutionAdvisor(DefaultSubstitutionConfig(), nil, log.Discard())
	if got := a.Candidates(mustGroup(t, recs...)); len(got) != 0 {
		t.Errorf("non-overlapping vendors must not be paired: %+v", got)
	}
}

func TestSubstitutionAdvisor_NilLookupSkips(t *testing.T) {
	a := NewSubstitutionAdvisor(SubstitutionConfig{SavingsThreshold: 0.05}, nil, log.Discard())
	res, err := a.Analyze(context.Background(), infraView(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Completeness != Complete || len(res.Substitutions) != 1 {
		t.Fatalf("Analyze() = %+v", res)
	}
	c := res.Substitutions[0]
	if c.PriceVerified || c.LookupStatus != LookupSkipped || c.AlternativeListPrice != nil {
		t.Errorf("candidate = %+v, want unverified and skipped", c)
	}
}

func TestSubstitutionAdvisor_LookupOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		lookup       pricing.LookupFunc
		wantStatus   string
		wantVerified bool
		wantComplete Completeness
	}{
		{
			name: "verified price",
			lookup: func(ctx context.Context, vendor, category string) (pricing.Quote, error) {
				return pricing.Quote{Vendor: vendor, Category: category, MonthlyPrice: dec("2750.004")}, nil
			},
			wantStatus:   LookupVerified,
			wantVerified: true,
			wantComplete: Complete,
		},
		{
			name: "price unknown",
			lookup: func(ctx context.Context, vendor, category string) (pricing.Quote, error) {
				return pricing.Quote{}, pricing.ErrPriceUnknown
			},
			wantStatus:   LookupUnknown,
			wantComplete: Complete,
		},
		{
			name: "lookup always fails",
			lookup: func(ctx context.Context, vendor, category string) (pricing.Quote, error) {
				return pricing.Quote{}, errors.New("connection refused")
			},
			wantStatus:   LookupDegraded,
			wantComplete: Partial,
		},
		{
			name: "lookup panics",
			lookup: func(ctx context.Context, vendor, category string) (pricing.Quote, error) {
				panic("boom")
			},
			wantStatus:   LookupDegraded,
			wantComplete: Partial,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSubstitutionAdvisor(SubstitutionConfig{SavingsThreshold: 0.05}, tt.lookup, log.Discard())
			res, err := a.Analyze(context.Background(), infraView(t))
			if err != nil {
				t.Fatalf("Analyze() must not fail on lookup problems: %v", err)
			}
			if len(res.Substitutions) != 1 {
				t.Fatalf("got %d candidates, want 1", len(res.Substitutions))
			}
			c := res.Substitutions[0]
			if c.LookupStatus != tt.wantStatus || c.PriceVerified != tt.wantVerified {
				t.Errorf("status/verified = %s/%v, want %s/%v", c.LookupStatus, c.PriceVerified, tt.wantStatus, tt.wantVerified)
			}
			if res.Completeness != tt.wantComplete || c.Provenance.Completeness != tt.wantComplete {
				t.Errorf("completeness = %s/%s, want %s", res.Completeness, c.Provenance.Completeness, tt.wantComplete)
			}
			if !c.AlternativeMonthlyCost.Equal(dec("2800")) {
				t.Errorf("ledger cost must be kept, got %s", c.AlternativeMonthlyCost)
			}
			if tt.wantVerified && !c.AlternativeListPrice.Equal(dec("2750")) {
				t.Errorf("AlternativeListPrice = %s, want 2750", c.AlternativeListPrice)
			}
			if tt.wantComplete == Partial && res.Reason == "" {
				t.Error("partial result must carry a reason")
			}
		})
	}
}

func TestSubstitutionAdvisor_LookupOncePerAlternative(t *testing.T) {
	recs := append(monthSeries("c", "comms", "Zoom", "30"), monthSeries("t", "comms", "Teams", "50")...)
	recs = append(recs, monthSeries("w", "comms", "Webex", "60")...)

	var calls atomic.Int32
	lookup := pricing.LookupFunc(func(ctx context.Context, vendor, category string) (pricing.Quote, error) {
		calls.Add(1)
		return pricing.Quote{}, pricing.ErrPriceUnknown
	})
	a := NewSubstitutionAdvisor(DefaultSubstitutionConfig(), lookup, log.Discard())
	res, err := a.Analyze(context.Background(), mustGroup(t, recs...))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Substitutions) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Substitutions))
	}
	if calls.Load() != 1 {
		t.Errorf("lookup called %d times, want 1", calls.Load())
	}
	// Webex saves 50%, Teams 40%.
	if res.Substitutions[0].IncumbentVendor != "Webex" || res.Substitutions[1].IncumbentVendor != "Teams" {
		t.Errorf("order = %s, %s", res.Substitutions[0].IncumbentVendor, res.Substitutions[1].IncumbentVendor)
	}
}

func TestSubstitutionAdvisor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := pricing.LookupFunc(func(ctx context.Context, vendor, category string) (pricing.Quote, error) {
		t.Error("lookup must not be called after cancellation")
		return pricing.Quote{}, nil
	})
	a := NewSubstitutionAdvisor(SubstitutionConfig{SavingsThreshold: 0.05}, lookup, log.Discard())
	res, err := a.Analyze(ctx, infraView(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Completeness != Partial || res.Substitutions[0].LookupStatus != LookupDegraded {
		t.Errorf("cancelled lookups should degrade, got %+v", res)
	}
}
