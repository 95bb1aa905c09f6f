package analysis

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"spendlens/internal/core"
)

type fakeTerms map[string]YearlyTerms

func (f fakeTerms) YearlyTerms(vendor, category string) (YearlyTerms, bool) {
	t, ok := f[vendor]
	return t, ok
}

func TestYearlyAdvisor_StableSubscription(t *testing.T) {
	view := mustGroup(t, monthSeries("s", "comms", "Slack", "49.00", "49.00", "49.00")...)
	res, err := NewYearlyAdvisor(DefaultYearlyConfig()).Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Switches) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(res.Switches))
	}
	rec := res.Switches[0]
	if !rec.IsStable || rec.CoefficientOfVariation != 0 {
		t.Errorf("IsStable/CV = %v/%v", rec.IsStable, rec.CoefficientOfVariation)
	}
	if !rec.ProjectedAnnualCost.Equal(dec("588.00")) {
		t.Errorf("ProjectedAnnualCost = %s, want 588.00", rec.ProjectedAnnualCost)
	}
	if rec.SampleCount != 3 || !rec.MeanAmount.Equal(dec("49")) {
		t.Errorf("SampleCount/Mean = %d/%s", rec.SampleCount, rec.MeanAmount)
	}
	if rec.EstimatedSavings != nil {
		t.Errorf("EstimatedSavings should be nil without a known discount, got %s", rec.EstimatedSavings)
	}
	if rec.Currency != "USD" {
		t.Errorf("Currency = %q", rec.Currency)
	}
}

func TestYearlyAdvisor_VariableSpendExcluded(t *testing.T) {
	view := mustGroup(t, monthSeries("a", "infra", "AWS", "3200", "3500", "3800")...)
	a := NewYearlyAdvisor(DefaultYearlyConfig())

	profile, _, ok, err := a.Profile(view.Records(GroupKey{Category: "infra", Vendor: "AWS"}))
	if err != nil || !ok {
		t.Fatalf("Profile() ok=%v err=%v", ok, err)
	}
	if profile.IsStable {
		t.Errorf("variable spend classified stable (CV=%v)", profile.CoefficientOfVariation)
	}

	res, err := a.Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Switches) != 0 {
		t.Errorf("variable spend must not be recommended: %+v", res.Switches)
	}
}

func TestYearlyAdvisor_InsufficientSamples(t *testing.T) {
	view := mustGroup(t, monthSeries("s", "comms", "Slack", "49", "49")...)
	a := NewYearlyAdvisor(DefaultYearlyConfig())

	_, _, ok, err := a.Profile(view.Records(GroupKey{Category: "comms", Vendor: "Slack"}))
	if err != nil || ok {
		t.Fatalf("Profile() with 2 samples ok=%v err=%v, want no classification", ok, err)
	}
	res, _ := a.Analyze(context.Background(), view)
	if len(res.Switches) != 0 {
		t.Errorf("expected no recommendation, got %+v", res.Switches)
	}
}

func TestYearlyAdvisor_IgnoresNonMonthlyRecords(t *testing.T) {
	recs := monthSeries("s", "comms", "Slack", "49", "49")
	recs = append(recs, monthly("y", "comms", "Slack", "49", core.NewDate(2025, 3, 1), core.NewDate(2026, 2, 28), withRecurrency(core.Yearly)))
	res, _ := NewYearlyAdvisor(DefaultYearlyConfig()).Analyze(context.Background(), mustGroup(t, recs...))
	if len(res.Switches) != 0 {
		t.Errorf("yearly record must not count as a monthly sample")
	}
}

func TestYearlyAdvisor_Tolerance(t *testing.T) {
	// CV of 49.00/49.50/49.00 is about 0.0048.
	view := mustGroup(t, monthSeries("s", "comms", "Slack", "49.00", "49.50", "49.00")...)

	strict := DefaultYearlyConfig()
	strict.StabilityTolerance = 0.001
	if res, _ := NewYearlyAdvisor(strict).Analyze(context.Background(), view); len(res.Switches) != 0 {
		t.Errorf("tolerance 0.001 should reject CV ~0.0048")
	}
	if res, _ := NewYearlyAdvisor(DefaultYearlyConfig()).Analyze(context.Background(), view); len(res.Switches) != 1 {
		t.Errorf("default tolerance 0.01 should accept CV ~0.0048")
	}
}

func TestYearlyAdvisor_EstimatedSavings(t *testing.T) {
	listPrice := dec("480")
	vendorRate := dec("0.15")
	defaultRate := dec("0.20")

	recs := append(monthSeries("s", "comms", "Slack", "49", "49", "49"), monthSeries("n", "docs", "Notion", "10", "10", "10")...)
	recs = append(recs, monthSeries("f", "design", "Figma", "45", "45", "45")...)
	view := mustGroup(t, recs...)

	cfg := DefaultYearlyConfig()
	cfg.DefaultDiscountRate = &defaultRate
	cfg.Terms = fakeTerms{
		"Slack": {ListPrice: &listPrice},
		"Figma": {DiscountRate: &vendorRate},
	}
	res, err := NewYearlyAdvisor(cfg).Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	want := map[string]struct {
		savings string
		basis   string
	}{
		"Slack":  {"108", "list_price"},
		"Figma":  {"81", "vendor_discount"},
		"Notion": {"24", "default_discount"},
	}
	for _, rec := range res.Switches {
		w := want[rec.Vendor]
		if rec.EstimatedSavings == nil || !rec.EstimatedSavings.Equal(decimal.RequireFromString(w.savings)) {
			t.Errorf("%s savings = %v, want %s", rec.Vendor, rec.EstimatedSavings, w.savings)
		}
		if rec.SavingsBasis != w.basis {
			t.Errorf("%s basis = %q, want %q", rec.Vendor, rec.SavingsBasis, w.basis)
		}
	}

	order := []string{res.Switches[0].Vendor, res.Switches[1].Vendor, res.Switches[2].Vendor}
	if order[0] != "Slack" || order[1] != "Figma" || order[2] != "Notion" {
		t.Errorf("order = %v, want by projected annual cost desc", order)
	}
}

func TestYearlyAdvisor_ZeroAmounts(t *testing.T) {
	view := mustGroup(t, monthSeries("z", "comms", "FreeTier", "0", "0", "0")...)
	res, err := NewYearlyAdvisor(DefaultYearlyConfig()).Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Switches) != 1 || res.Switches[0].CoefficientOfVariation != 0 {
		t.Fatalf("zero amounts should be stable with CV 0: %+v", res.Switches)
	}
}
