package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Monthly   Recurrency = "monthly"
	Bimonthly Recurrency = "bimonthly"
	Quarterly Recurrency = "quarterly"
	Yearly    Recurrency = "yearly"
	OneTime   Recurrency = "one_time"
)

type (
	// Recurrency is the billing cadence declared on a ledger row.
	Recurrency string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	// Window is the inclusive [Start, End] span a payment covers.
	Window struct {
		Start Date `json:"start"`
		End   Date `json:"end"`
	}

	// ExpenseRecord is one validated ledger transaction.
	ExpenseRecord struct {
		TransactionID string          `json:"transaction_id"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		OccurredAt    time.Time       `json:"occurred_at"`
		VendorName    string          `json:"vendor_name"`
		Category      string          `json:"category"`
		Recurrency    Recurrency      `json:"recurrency"`
		PeriodStart   Date            `json:"period_start"`
		PeriodEnd     Date            `json:"period_end"`
		Department    string          `json:"department,omitempty"`
		Description   string          `json:"description,omitempty"`
		PaymentMethod string          `json:"payment_method,omitempty"`
		SrcAccount    string          `json:"src_account,omitempty"`
		DstAccount    string          `json:"dst_account,omitempty"`
	}
)

var recurrencyAliases = map[string]Recurrency{
	"monthly":    Monthly,
	"month":      Monthly,
	"bimonthly":  Bimonthly,
	"bi-monthly": Bimonthly,
	"bi_monthly": Bimonthly,
	"quarterly":  Quarterly,
	"quarter":    Quarterly,
	"yearly":     Yearly,
	"year":       Yearly,
	"annual":     Yearly,
	"annually":   Yearly,
	"one_time":   OneTime,
	"one-time":   OneTime,
	"one time":   OneTime,
	"onetime":    OneTime,
	"once":       OneTime,
}

// ParseRecurrency maps a ledger value onto a Recurrency, ignoring case.
func ParseRecurrency(s string) (Recurrency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if r, ok := recurrencyAliases[key]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRecurrency, s)
}

// IsValid reports whether r is one of the known cadences.
func (r Recurrency) IsValid() bool {
	switch r {
	case Monthly, Bimonthly, Quarterly, Yearly, OneTime:
		return true
	default:
		return false
	}
}

func (r Recurrency) String() string {
	return string(r)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Overlaps reports whether the two inclusive windows share at least one day.
func (w Window) Overlaps(o Window) bool {
	return !w.Start.After(o.End) && !o.Start.After(w.End)
}

// Intersect returns the shared span of w and o; ok is false when they are disjoint.
func (w Window) Intersect(o Window) (Window, bool) {
	if !w.Overlaps(o) {
		return Window{}, false
	}
	start := w.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := w.End
	if o.End.Before(end) {
		end = o.End
	}
	return Window{Start: start, End: end}, true
}

// Touches reports whether o starts no later than the day after w ends.
// Windows that touch are merged into one continuous span.
func (w Window) Touches(o Window) bool {
	return !o.Start.After(w.End.AddDays(1)) && !w.Start.After(o.End.AddDays(1))
}

// MonthsSpanned counts the calendar months the window touches, at least 1.
func (w Window) MonthsSpanned() int {
	n := (w.End.Year()-w.Start.Year())*12 + int(w.End.Month()) - int(w.Start.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// Window returns the billing-active span of the record.
func (e ExpenseRecord) Window() Window {
	return Window{Start: e.PeriodStart, End: e.PeriodEnd}
}

// MonthlyAmount normalizes the record's amount to a monthly equivalent
// using the cadence registered for its recurrency.
func (e ExpenseRecord) MonthlyAmount() (decimal.Decimal, error) {
	policy, err := CadenceFor(e.Recurrency)
	if err != nil {
		return decimal.Zero, err
	}
	months := policy.MonthsCovered(e.Window())
	if months < 1 {
		months = 1
	}
	return e.Amount.Div(decimal.NewFromInt(int64(months))), nil
}

func (e ExpenseRecord) Validate() error {
	if strings.TrimSpace(e.TransactionID) == "" {
		return fmt.Errorf("%w: transaction_id", ErrMissingField)
	}
	if strings.TrimSpace(e.VendorName) == "" {
		return fmt.Errorf("%w: vendor_name", ErrMissingField)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: expense_type", ErrMissingField)
	}
	if strings.TrimSpace(e.Currency) == "" {
		return fmt.Errorf("%w: currency", ErrMissingField)
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !e.Recurrency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecurrency, e.Recurrency)
	}
	if err := e.PeriodStart.Validate(); err != nil {
		return fmt.Errorf("%w: period_start: %v", ErrInvalidDate, err)
	}
	if err := e.PeriodEnd.Validate(); err != nil {
		return fmt.Errorf("%w: period_end: %v", ErrInvalidDate, err)
	}
	if e.PeriodEnd.Before(e.PeriodStart) {
		return ErrInvalidPeriod
	}
	return nil
}
