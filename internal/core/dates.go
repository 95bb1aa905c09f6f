package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day format used in reports and storage.
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	DateLayout,
}

// ParseTimestamp parses a ledger timestamp. Values without a zone are UTC.
// Only the layouts above are accepted; anything else is ErrInvalidDate.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseDate parses a calendar day, accepting a full timestamp and keeping its date.
func ParseDate(s string) (Date, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}
