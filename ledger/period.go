package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDITY PERIOD - A dated interval with its own contracted quantity
// =============================================================================

// ValidityPeriod is the interval during which a contracted quantity and rate
// apply. A contract renewal adds a new period; periods never overlap.
//
// Invariant: Start <= End. The month span is inclusive on both ends, so a
// period from 2025-01-15 to 2025-03-20 spans three months.
type ValidityPeriod struct {
	Start time.Time
	End   time.Time

	// Total contracted quantity for the whole period.
	Total Quantity

	// How often the contract is settled (closure billing cadence).
	Frequency Frequency

	// Monetary rate per unit, used to price the suggested billable amount.
	Rate decimal.Decimal
}

// Validate checks the Start <= End invariant.
func (p ValidityPeriod) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// StartMonth returns the calendar month of the period's first day.
func (p ValidityPeriod) StartMonth() Month { return MonthOf(p.Start) }

// EndMonth returns the calendar month of the period's last day.
func (p ValidityPeriod) EndMonth() Month { return MonthOf(p.End) }

// MonthSpan returns the inclusive number of calendar months the period
// touches: (end.year*12+end.month) - (start.year*12+start.month) + 1.
func (p ValidityPeriod) MonthSpan() int {
	return MonthsBetween(p.StartMonth(), p.EndMonth()) + 1
}

// Covers reports whether the month falls inside the period's month span.
func (p ValidityPeriod) Covers(m Month) bool {
	return !m.Before(p.StartMonth()) && !m.After(p.EndMonth())
}

// =============================================================================
// PERIOD PRORATOR - Constant monthly quota from a period total
// =============================================================================

// MonthlyQuota returns the quantity the month is entitled to under this
// period.
//
// Recurring contracts get Total / MonthSpan for every covered month, so the
// quotas sum back to Total across the span. One-off bags attribute the full
// Total to the period's first month only; later months get zero.
//
// A month outside the period, or a degenerate span, yields zero. A period
// with Total <= 0 simply prorates to zero or below; that is configuration,
// not an error.
func (p ValidityPeriod) MonthlyQuota(billing BillingMode, m Month) Quantity {
	if !p.Covers(m) {
		return p.Total.Zero()
	}

	span := p.MonthSpan()
	if span <= 0 {
		return p.Total.Zero()
	}

	if billing == BillingOneOff {
		if m.Equal(p.StartMonth()) {
			return p.Total
		}
		return p.Total.Zero()
	}

	return p.Total.DivInt(span)
}
