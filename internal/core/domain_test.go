package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseRecurrency(t *testing.T) {
	cases := []struct {
		in   string
		want Recurrency
		ok   bool
	}{
		{"Monthly", Monthly, true},
		{" MONTHLY ", Monthly, true},
		{"bi-monthly", Bimonthly, true},
		{"Quarterly", Quarterly, true},
		{"annual", Yearly, true},
		{"One-Time", OneTime, true},
		{"once", OneTime, true},
		{"weekly", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseRecurrency(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidRecurrency) {
			t.Fatalf("%q expected ErrInvalidRecurrency, got %v", tc.in, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-01-15 10:30:00", time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"2025-01-15", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2025-01-15T10:30:00Z", time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"15/01/2025", time.Time{}, false},
		{"2025-02-30", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestWindowOverlaps(t *testing.T) {
	a := Window{Start: NewDate(2025, 1, 1), End: NewDate(2025, 1, 31)}
	tests := []struct {
		name    string
		other   Window
		overlap bool
		want    Window
	}{
		{
			name:    "partial overlap",
			other:   Window{Start: NewDate(2025, 1, 15), End: NewDate(2025, 2, 15)},
			overlap: true,
			want:    Window{Start: NewDate(2025, 1, 15), End: NewDate(2025, 1, 31)},
		},
		{
			name:    "single shared day",
			other:   Window{Start: NewDate(2025, 1, 31), End: NewDate(2025, 2, 28)},
			overlap: true,
			want:    Window{Start: NewDate(2025, 1, 31), End: NewDate(2025, 1, 31)},
		},
		{
			name:    "contained",
			other:   Window{Start: NewDate(2025, 1, 10), End: NewDate(2025, 1, 12)},
			overlap: true,
			want:    Window{Start: NewDate(2025, 1, 10), End: NewDate(2025, 1, 12)},
		},
		{
			name:    "adjacent is not overlap",
			other:   Window{Start: NewDate(2025, 2, 1), End: NewDate(2025, 2, 28)},
			overlap: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := a.Intersect(tt.other)
			if ok != tt.overlap {
				t.Fatalf("Intersect ok = %v, want %v", ok, tt.overlap)
			}
			if ok && (!got.Start.Equal(tt.want.Start) || !got.End.Equal(tt.want.End)) {
				t.Errorf("Intersect = %s, want %s", got, tt.want)
			}
			if a.Overlaps(tt.other) != tt.other.Overlaps(a) {
				t.Errorf("Overlaps is not symmetric")
			}
		})
	}
}

func TestWindowTouches(t *testing.T) {
	a := Window{Start: NewDate(2025, 1, 1), End: NewDate(2025, 1, 31)}
	if !a.Touches(Window{Start: NewDate(2025, 2, 1), End: NewDate(2025, 2, 28)}) {
		t.Errorf("next-day window should touch")
	}
	if a.Touches(Window{Start: NewDate(2025, 2, 2), End: NewDate(2025, 2, 28)}) {
		t.Errorf("window with a one day gap should not touch")
	}
}

func TestExpenseRecordValidate(t *testing.T) {
	good := ExpenseRecord{
		TransactionID: "t1",
		Amount:        decimal.RequireFromString("49.00"),
		Currency:      "USD",
		VendorName:    "Slack",
		Category:      "subscriptions",
		Recurrency:    Monthly,
		PeriodStart:   NewDate(2025, 1, 1),
		PeriodEnd:     NewDate(2025, 1, 31),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	negative := good
	negative.Amount = decimal.RequireFromString("-1")
	reversed := good
	reversed.PeriodEnd = NewDate(2024, 12, 31)
	noVendor := good
	noVendor.VendorName = " "
	badCadence := good
	badCadence.Recurrency = "weekly"

	bads := []struct {
		rec  ExpenseRecord
		want error
	}{
		{negative, ErrInvalidAmount},
		{reversed, ErrInvalidPeriod},
		{noVendor, ErrMissingField},
		{badCadence, ErrInvalidRecurrency},
	}
	for i, tc := range bads {
		if err := tc.rec.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 3, 9))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-03-09"` {
		t.Fatalf("marshal = %s", b)
	}
	var d Date
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2025, 3, 9)) {
		t.Fatalf("unmarshal = %s", d)
	}
}
