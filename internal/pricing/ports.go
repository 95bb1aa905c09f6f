// Package pricing provides best-effort vendor price lookups used to verify
// substitution candidates.
package pricing

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrPriceUnknown means the source answered but has no price for the vendor.
// It is a normal outcome, not a degradation.
var ErrPriceUnknown = errors.New("price unknown")

// Quote is a monthly list price for a vendor in a category.
type Quote struct {
	Vendor       string          `json:"vendor"`
	Category     string          `json:"category"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	Currency     string          `json:"currency,omitempty"`
	Source       string          `json:"source"`
}

type (
	// Lookup answers "what does this vendor charge per month" or ErrPriceUnknown.
	// Implementations may be slow, rate limited or unavailable.
	Lookup interface {
		Lookup(ctx context.Context, vendor, category string) (Quote, error)
	}

	// LookupFunc adapts a function to Lookup.
	LookupFunc func(ctx context.Context, vendor, category string) (Quote, error)
)

func (f LookupFunc) Lookup(ctx context.Context, vendor, category string) (Quote, error) {
	return f(ctx, vendor, category)
}

// Key normalizes a vendor/category pair for caching and catalog matching.
func Key(vendor, category string) string {
	return strings.ToLower(strings.TrimSpace(vendor)) + "|" + strings.ToLower(strings.TrimSpace(category))
}
