// Package render prints analysis reports for terminals.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"spendlens/internal/analysis"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	headStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E5C07B"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Summary renders the findings of a report, section by section, followed
// by the savings totals.
func Summary(r *analysis.Report) string {
	sections := []string{
		titleStyle.Render("Expense pattern analysis") + " " + dimStyle.Render(string(r.Status)),
		dimStyle.Render(fmt.Sprintf("%d of %d rows accepted, %d skipped",
			r.Batch.RowsAccepted, r.Batch.RowsReceived, len(r.Batch.Warnings))),
		duplicates(r.DuplicateFindings),
		switches(r.SwitchRecommendations),
		substitutions(r.SubstitutionCandidates),
		totals(r.Totals),
	}
	for _, e := range r.Errors {
		sections = append(sections, warnStyle.Render(fmt.Sprintf("! %s failed: %s", e.Analyzer, e.Error)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...)) + "\n"
}

func header[T any](title string, s analysis.Section[T]) string {
	line := headStyle.Render(fmt.Sprintf("%s (%d)", title, len(s.Items)))
	if s.Status != analysis.SectionComplete {
		line += " " + dimStyle.Render(string(s.Status))
		if s.Reason != "" {
			line += dimStyle.Render(": " + s.Reason)
		}
	}
	return line
}

func duplicates(s analysis.Section[analysis.DuplicateFinding]) string {
	lines := []string{"", header("Duplicate spend", s)}
	for _, f := range s.Items {
		lines = append(lines, fmt.Sprintf("  %s: %s + %s, %s to %s (%d days), %s/month combined, save %s",
			f.Category, f.VendorA, f.VendorB, f.OverlapStart, f.OverlapEnd, f.OverlapDays,
			f.CombinedMonthly.StringFixed(2), f.PotentialMonthlySavings.StringFixed(2)))
	}
	return strings.Join(lines, "\n")
}

func switches(s analysis.Section[analysis.SwitchRecommendation]) string {
	lines := []string{"", header("Switch to yearly billing", s)}
	for _, rec := range s.Items {
		savings := "savings unknown"
		if rec.EstimatedSavings != nil {
			savings = fmt.Sprintf("save %s %s (%s)", rec.EstimatedSavings.StringFixed(2), rec.Currency, rec.SavingsBasis)
		}
		lines = append(lines, fmt.Sprintf("  %s / %s: %d months at %s, %s/year projected, %s",
			rec.Category, rec.Vendor, rec.SampleCount, rec.MeanAmount.StringFixed(2),
			rec.ProjectedAnnualCost.StringFixed(2), savings))
	}
	return strings.Join(lines, "\n")
}

func substitutions(s analysis.Section[analysis.SubstitutionCandidate]) string {
	lines := []string{"", header("Cheaper alternatives", s)}
	for _, c := range s.Items {
		verified := "unverified"
		if c.PriceVerified {
			verified = "verified"
		}
		lines = append(lines, fmt.Sprintf("  %s: %s %s -> %s %s, save %s/month (%s%%, %s)",
			c.Category, c.IncumbentVendor, c.IncumbentMonthlyCost.StringFixed(2),
			c.AlternativeVendor, c.AlternativeMonthlyCost.StringFixed(2),
			c.MonthlySavings.StringFixed(2), c.SavingsPct.Shift(2).StringFixed(1), verified))
	}
	return strings.Join(lines, "\n")
}

func totals(t analysis.Totals) string {
	return strings.Join([]string{
		"",
		headStyle.Render("Totals"),
		fmt.Sprintf("  duplicate spend: %s/month over %d pairs", t.DuplicateMonthlySavings.StringFixed(2), t.DuplicatePairs),
		fmt.Sprintf("  yearly switches: %s/year (%d unknown)", t.YearlySwitchSavings.StringFixed(2), t.YearlySavingsUnknown),
		fmt.Sprintf("  substitutions:   %s/month", t.SubstitutionMonthly.StringFixed(2)),
	}, "\n")
}
