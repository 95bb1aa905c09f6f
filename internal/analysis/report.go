package analysis

import (
	"context"

	"github.com/shopspring/decimal"

	"spendlens/internal/ingest"
)

// Analyzer names, used as provenance tags and section keys.
const (
	AnalyzerDuplicates   = "duplicate_spend"
	AnalyzerYearlySwitch = "yearly_switch"
	AnalyzerSubstitution = "smart_substitution"
)

// Completeness tags a finding produced with or without full external data.
type Completeness string

const (
	Complete Completeness = "complete"
	Partial  Completeness = "partial"
)

// SectionStatus summarizes one analyzer's section of the report.
type SectionStatus string

const (
	SectionComplete SectionStatus = "complete"
	SectionPartial  SectionStatus = "partial"
	SectionEmpty    SectionStatus = "empty"
	SectionFailed   SectionStatus = "failed"
)

// RunStatus is the terminal outcome of an analysis run.
type RunStatus string

const (
	RunCompleted          RunStatus = "completed"
	RunPartiallyCompleted RunStatus = "partially_completed"
)

// Provenance records which analyzer produced a finding and how completely.
type Provenance struct {
	Analyzer     string       `json:"analyzer"`
	Completeness Completeness `json:"completeness"`
}

// Analyzer is one read-only pass over a grouped view.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, view *GroupedView) (Result, error)
}

// Result carries whichever finding list the analyzer produces, plus whether
// it had to degrade.
type Result struct {
	Duplicates    []DuplicateFinding
	Switches      []SwitchRecommendation
	Substitutions []SubstitutionCandidate
	Completeness  Completeness
	Reason        string
}

// Section is one ordered finding list with its status.
type Section[T any] struct {
	Status SectionStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Items  []T           `json:"items"`
}

// AnalyzerError annotates a failed analyzer in the report.
type AnalyzerError struct {
	Analyzer string `json:"analyzer"`
	Error    string `json:"error"`
}

// Totals rolls up the savings the findings point at.
type Totals struct {
	DuplicatePairs          int             `json:"duplicate_pairs"`
	DuplicateMonthlySavings decimal.Decimal `json:"duplicate_monthly_savings"`
	YearlySwitchSavings     decimal.Decimal `json:"yearly_switch_savings"`
	YearlySavingsUnknown    int             `json:"yearly_savings_unknown"`
	SubstitutionMonthly     decimal.Decimal `json:"substitution_monthly_savings"`
}

// Report is the merged output of one run. It holds no timestamps or
// identifiers, so two runs over the same batch serialize identically.
type Report struct {
	Status                 RunStatus                      `json:"status"`
	Batch                  ingest.BatchSummary            `json:"batch"`
	DuplicateFindings      Section[DuplicateFinding]      `json:"duplicate_findings"`
	SwitchRecommendations  Section[SwitchRecommendation]  `json:"switch_recommendations"`
	SubstitutionCandidates Section[SubstitutionCandidate] `json:"substitution_candidates"`
	Errors                 []AnalyzerError                `json:"errors"`
	Totals                 Totals                         `json:"totals"`
}

// NewReport returns a report with every section failed until an outcome is applied.
func NewReport(batch ingest.BatchSummary) *Report {
	return &Report{
		Status:                 RunCompleted,
		Batch:                  batch,
		DuplicateFindings:      Section[DuplicateFinding]{Status: SectionFailed, Reason: "not run", Items: []DuplicateFinding{}},
		SwitchRecommendations:  Section[SwitchRecommendation]{Status: SectionFailed, Reason: "not run", Items: []SwitchRecommendation{}},
		SubstitutionCandidates: Section[SubstitutionCandidate]{Status: SectionFailed, Reason: "not run", Items: []SubstitutionCandidate{}},
		Errors:                 []AnalyzerError{},
	}
}

// ApplyResult folds a successful analyzer result into its section.
func (r *Report) ApplyResult(analyzer string, res Result) {
	switch analyzer {
	case AnalyzerDuplicates:
		r.DuplicateFindings = newSection(res.Duplicates, res, "no vendors with overlapping windows in a shared category")
	case AnalyzerYearlySwitch:
		r.SwitchRecommendations = newSection(res.Switches, res, "no stable monthly subscriptions with enough samples")
	case AnalyzerSubstitution:
		r.SubstitutionCandidates = newSection(res.Substitutions, res, "no cheaper overlapping alternative above the savings threshold")
	}
}

// ApplyFailure marks an analyzer's section failed and records the error.
// The run becomes partially completed.
func (r *Report) ApplyFailure(analyzer string, err error) {
	reason := err.Error()
	switch analyzer {
	case AnalyzerDuplicates:
		r.DuplicateFindings = Section[DuplicateFinding]{Status: SectionFailed, Reason: reason, Items: []DuplicateFinding{}}
	case AnalyzerYearlySwitch:
		r.SwitchRecommendations = Section[SwitchRecommendation]{Status: SectionFailed, Reason: reason, Items: []SwitchRecommendation{}}
	case AnalyzerSubstitution:
		r.SubstitutionCandidates = Section[SubstitutionCandidate]{Status: SectionFailed, Reason: reason, Items: []SubstitutionCandidate{}}
	}
	r.Errors = append(r.Errors, AnalyzerError{Analyzer: analyzer, Error: reason})
	r.Status = RunPartiallyCompleted
}

func newSection[T any](items []T, res Result, emptyReason string) Section[T] {
	if items == nil {
		items = []T{}
	}
	s := Section[T]{Status: SectionComplete, Items: items}
	switch {
	case res.Completeness == Partial:
		s.Status = SectionPartial
		s.Reason = res.Reason
	case len(items) == 0:
		s.Status = SectionEmpty
		s.Reason = emptyReason
	}
	return s
}

// ComputeTotals derives the savings roll-up from the current sections.
func (r *Report) ComputeTotals() {
	t := Totals{
		DuplicateMonthlySavings: decimal.Zero,
		YearlySwitchSavings:     decimal.Zero,
		SubstitutionMonthly:     decimal.Zero,
	}

	t.DuplicatePairs, t.DuplicateMonthlySavings = consolidationSavings(r.DuplicateFindings.Items)

	for _, s := range r.SwitchRecommendations.Items {
		if s.EstimatedSavings == nil {
			t.YearlySavingsUnknown++
			continue
		}
		t.YearlySwitchSavings = t.YearlySwitchSavings.Add(*s.EstimatedSavings)
	}

	for _, c := range r.SubstitutionCandidates.Items {
		t.SubstitutionMonthly = t.SubstitutionMonthly.Add(c.MonthlySavings)
	}
	r.Totals = t
}

// consolidationSavings counts distinct vendor pairs and the monthly spend
// saved by keeping only the most expensive vendor of each set of mutually
// overlapping vendors in a category. A vendor in several pairs is counted
// once.
func consolidationSavings(findings []DuplicateFinding) (int, decimal.Decimal) {
	type pair struct{ a, b GroupKey }
	parent := make(map[GroupKey]GroupKey)
	cost := make(map[GroupKey]decimal.Decimal)
	var find func(GroupKey) GroupKey
	find = func(k GroupKey) GroupKey {
		p, ok := parent[k]
		if !ok || p == k {
			parent[k] = k
			return k
		}
		root := find(p)
		parent[k] = root
		return root
	}

	seen := make(map[pair]bool)
	for _, f := range findings {
		a := GroupKey{Category: f.Category, Vendor: f.VendorA}
		b := GroupKey{Category: f.Category, Vendor: f.VendorB}
		cost[a], cost[b] = f.VendorAMonthlyCost, f.VendorBMonthlyCost
		if p := (pair{a, b}); !seen[p] {
			seen[p] = true
			if ra, rb := find(a), find(b); ra != rb {
				parent[ra] = rb
			}
		}
	}

	sum := make(map[GroupKey]decimal.Decimal)
	top := make(map[GroupKey]decimal.Decimal)
	for k, c := range cost {
		root := find(k)
		sum[root] = sum[root].Add(c)
		if c.GreaterThan(top[root]) {
			top[root] = c
		}
	}
	total := decimal.Zero
	for root, s := range sum {
		total = total.Add(s.Sub(top[root]))
	}
	return len(seen), total
}
