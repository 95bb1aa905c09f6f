package analysis

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"spendlens/internal/core"
)

// OverlapWindow is one maximal span during which two vendors of the same
// category were both billing.
type OverlapWindow struct {
	Category           string          `json:"category"`
	VendorA            string          `json:"vendor_a"`
	VendorB            string          `json:"vendor_b"`
	OverlapStart       core.Date       `json:"overlap_start"`
	OverlapEnd         core.Date       `json:"overlap_end"`
	VendorAMonthlyCost decimal.Decimal `json:"vendor_a_monthly_cost"`
	VendorBMonthlyCost decimal.Decimal `json:"vendor_b_monthly_cost"`
}

// CombinedMonthlyCost is the spend on both vendors per month.
func (o OverlapWindow) CombinedMonthlyCost() decimal.Decimal {
	return o.VendorAMonthlyCost.Add(o.VendorBMonthlyCost)
}

// DuplicateFinding is an overlap with its derived figures and provenance.
type DuplicateFinding struct {
	OverlapWindow
	CombinedMonthly         decimal.Decimal `json:"combined_monthly_cost"`
	PotentialMonthlySavings decimal.Decimal `json:"potential_monthly_savings"`
	OverlapDays             int             `json:"overlap_days"`
	Provenance              Provenance      `json:"provenance"`
}

// DuplicateDetector finds vendor pairs in a category with overlapping windows.
type DuplicateDetector struct{}

func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{}
}

func (d *DuplicateDetector) Name() string {
	return AnalyzerDuplicates
}

func (d *DuplicateDetector) Analyze(ctx context.Context, view *GroupedView) (Result, error) {
	return Result{Duplicates: DetectDuplicates(view), Completeness: Complete}, nil
}

// DetectDuplicates enumerates unordered vendor pairs per category and emits
// one finding per maximal overlap span. Findings are ordered by combined
// monthly cost descending, then category, vendor_a, vendor_b, overlap start.
func DetectDuplicates(view *GroupedView) []DuplicateFinding {
	var findings []DuplicateFinding
	for _, category := range view.Categories() {
		vendors := view.Vendors(category)
		if len(vendors) < 2 {
			continue
		}
		for i := 0; i < len(vendors)-1; i++ {
			keyA := GroupKey{Category: category, Vendor: vendors[i]}
			windowsA := view.ActiveWindows(keyA)
			costA := view.MonthlyCost(keyA)
			for j := i + 1; j < len(vendors); j++ {
				keyB := GroupKey{Category: category, Vendor: vendors[j]}
				spans := Intersections(windowsA, view.ActiveWindows(keyB))
				if len(spans) == 0 {
					continue
				}
				costB := view.MonthlyCost(keyB)
				for _, span := range spans {
					ow := OverlapWindow{
						Category:           category,
						VendorA:            vendors[i],
						VendorB:            vendors[j],
						OverlapStart:       span.Start,
						OverlapEnd:         span.End,
						VendorAMonthlyCost: costA,
						VendorBMonthlyCost: costB,
					}
					findings = append(findings, DuplicateFinding{
						OverlapWindow:           ow,
						CombinedMonthly:         ow.CombinedMonthlyCost(),
						PotentialMonthlySavings: decimal.Min(costA, costB),
						OverlapDays:             int(span.End.Sub(span.Start.Time).Hours()/24) + 1,
						Provenance:              Provenance{Analyzer: AnalyzerDuplicates, Completeness: Complete},
					})
				}
			}
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if c := a.CombinedMonthly.Cmp(b.CombinedMonthly); c != 0 {
			return c > 0
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.VendorA != b.VendorA {
			return a.VendorA < b.VendorA
		}
		if a.VendorB != b.VendorB {
			return a.VendorB < b.VendorB
		}
		return a.OverlapStart.Before(b.OverlapStart)
	})
	return findings
}
