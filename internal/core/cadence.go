// This file implements the Strategy Pattern for billing cadences.
// Each recurrency has a policy that knows how many months one payment covers
// and how far its active window extends when the ledger omits an end date.

package core

import (
	"fmt"
	"sync"
	"time"
)

// CadencePolicy is the strategy interface for a billing cadence.
type CadencePolicy interface {
	// MonthsCovered returns how many months a single payment pays for.
	MonthsCovered(w Window) int

	// PeriodEnd infers the last active day of a payment starting on start.
	PeriodEnd(start Date) Date
}

// FixedCadence covers a fixed number of calendar months per payment.
type FixedCadence int

func (c FixedCadence) MonthsCovered(Window) int {
	return int(c)
}

// PeriodEnd returns the day before the next payment would start. The next
// start day is clamped to the length of its month, so a payment on Jan 31
// covers through Feb 27 (or 28 in a leap year).
func (c FixedCadence) PeriodEnd(start Date) Date {
	first := time.Date(start.Year(), start.Time.Month()+time.Month(c), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := start.Day()
	if day > lastDay {
		day = lastDay
	}
	next := time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
	return Date{Time: next.AddDate(0, 0, -1)}
}

// OneTimeCadence spreads a payment over every month its window touches.
type OneTimeCadence struct{}

func (OneTimeCadence) MonthsCovered(w Window) int {
	return w.MonthsSpanned()
}

// PeriodEnd for a one-off payment is the payment day itself.
func (OneTimeCadence) PeriodEnd(start Date) Date {
	return start
}

var (
	cadenceMu sync.RWMutex
	cadences  = map[Recurrency]CadencePolicy{
		Monthly:   FixedCadence(1),
		Bimonthly: FixedCadence(2),
		Quarterly: FixedCadence(3),
		Yearly:    FixedCadence(12),
		OneTime:   OneTimeCadence{},
	}
)

// CadenceFor returns the policy registered for a recurrency.
func CadenceFor(r Recurrency) (CadencePolicy, error) {
	cadenceMu.RLock()
	defer cadenceMu.RUnlock()
	policy, ok := cadences[r]
	if !ok {
		return nil, fmt.Errorf("%w: no cadence for %q", ErrInvalidRecurrency, r)
	}
	return policy, nil
}

// RegisterCadence replaces or adds the policy for a recurrency.
func RegisterCadence(r Recurrency, policy CadencePolicy) {
	cadenceMu.Lock()
	defer cadenceMu.Unlock()
	cadences[r] = policy
}
