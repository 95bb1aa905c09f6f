package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendlens/internal/core"
)

type recOpt func(*core.ExpenseRecord)

func monthly(id, category, vendor, amount string, start, end core.Date, opts ...recOpt) core.ExpenseRecord {
	rec := core.ExpenseRecord{
		TransactionID: id,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		OccurredAt:    start.Time.Add(9 * time.Hour),
		VendorName:    vendor,
		Category:      category,
		Recurrency:    core.Monthly,
		PeriodStart:   start,
		PeriodEnd:     end,
	}
	for _, o := range opts {
		o(&rec)
	}
	return rec
}

func withRecurrency(r core.Recurrency) recOpt {
	return func(rec *core.ExpenseRecord) { rec.Recurrency = r }
}

// monthSeries returns n consecutive calendar-month records starting in January 2025.
func monthSeries(prefix, category, vendor string, amounts ...string) []core.ExpenseRecord {
	var out []core.ExpenseRecord
	for i, amt := range amounts {
		start := core.NewDate(2025, i+1, 1)
		end := core.FixedCadence(1).PeriodEnd(start)
		out = append(out, monthly(prefix+string(rune('a'+i)), category, vendor, amt, start, end))
	}
	return out
}

func mustGroup(t *testing.T, recs ...core.ExpenseRecord) *GroupedView {
	t.Helper()
	view, err := Group(recs)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	return view
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
