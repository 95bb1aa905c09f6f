// Package analysis implements the expense pattern analyzers and the grouped
// ledger view they share.
package analysis

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"spendlens/internal/core"
)

// GroupKey identifies one vendor within one category.
type GroupKey struct {
	Category string
	Vendor   string
}

type group struct {
	records     []core.ExpenseRecord
	windows     []core.Window
	monthlyCost decimal.Decimal
}

// GroupedView partitions a batch by (category, vendor). It is built once per
// run and never modified; accessors return copies, so analyzers running in
// parallel all observe the same data in the same order.
type GroupedView struct {
	groups     map[GroupKey]group
	categories []string
	vendors    map[string][]string
	records    int
}

// Group builds the view. Each group's records are sorted by period start,
// then occurrence time, then transaction id.
func Group(records []core.ExpenseRecord) (*GroupedView, error) {
	buckets := make(map[GroupKey][]core.ExpenseRecord)
	for _, rec := range records {
		key := GroupKey{Category: rec.Category, Vendor: rec.VendorName}
		buckets[key] = append(buckets[key], rec)
	}

	v := &GroupedView{
		groups:  make(map[GroupKey]group, len(buckets)),
		vendors: make(map[string][]string),
		records: len(records),
	}
	for key, recs := range buckets {
		sort.SliceStable(recs, func(i, j int) bool {
			a, b := recs[i], recs[j]
			if !a.PeriodStart.Equal(b.PeriodStart) {
				return a.PeriodStart.Before(b.PeriodStart)
			}
			if !a.OccurredAt.Equal(b.OccurredAt) {
				return a.OccurredAt.Before(b.OccurredAt)
			}
			return a.TransactionID < b.TransactionID
		})

		cost, err := monthlyCost(recs)
		if err != nil {
			return nil, fmt.Errorf("group %s/%s: %w", key.Category, key.Vendor, err)
		}
		windows := make([]core.Window, len(recs))
		for i, rec := range recs {
			windows[i] = rec.Window()
		}

		v.groups[key] = group{records: recs, windows: MergeWindows(windows), monthlyCost: cost}
		if _, ok := v.vendors[key.Category]; !ok {
			v.categories = append(v.categories, key.Category)
		}
		v.vendors[key.Category] = append(v.vendors[key.Category], key.Vendor)
	}

	sort.Strings(v.categories)
	for _, vendors := range v.vendors {
		sort.Strings(vendors)
	}
	return v, nil
}

// monthlyCost is the mean monthly-equivalent amount across records, in cents.
func monthlyCost(recs []core.ExpenseRecord) (decimal.Decimal, error) {
	if len(recs) == 0 {
		return decimal.Zero, nil
	}
	sum := decimal.Zero
	for _, rec := range recs {
		m, err := rec.MonthlyAmount()
		if err != nil {
			return decimal.Zero, fmt.Errorf("transaction %s: %w", rec.TransactionID, err)
		}
		sum = sum.Add(m)
	}
	return core.RoundCents(sum.Div(decimal.NewFromInt(int64(len(recs))))), nil
}

// Categories returns category names in ascending order.
func (v *GroupedView) Categories() []string {
	return append([]string(nil), v.categories...)
}

// Vendors returns the vendors seen in a category in ascending order.
func (v *GroupedView) Vendors(category string) []string {
	return append([]string(nil), v.vendors[category]...)
}

// Keys returns every group key ordered by category, then vendor.
func (v *GroupedView) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(v.groups))
	for _, c := range v.categories {
		for _, vendor := range v.vendors[c] {
			keys = append(keys, GroupKey{Category: c, Vendor: vendor})
		}
	}
	return keys
}

// Records returns a copy of the time-ordered records of a group.
func (v *GroupedView) Records(key GroupKey) []core.ExpenseRecord {
	return append([]core.ExpenseRecord(nil), v.groups[key].records...)
}

// ActiveWindows returns the group's merged billing windows.
func (v *GroupedView) ActiveWindows(key GroupKey) []core.Window {
	return append([]core.Window(nil), v.groups[key].windows...)
}

// MonthlyCost returns the group's mean monthly-equivalent spend.
func (v *GroupedView) MonthlyCost(key GroupKey) decimal.Decimal {
	return v.groups[key].monthlyCost
}

// Len returns the number of groups.
func (v *GroupedView) Len() int {
	return len(v.groups)
}

// RecordCount returns the number of records the view was built from.
func (v *GroupedView) RecordCount() int {
	return v.records
}
