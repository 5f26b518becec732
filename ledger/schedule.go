package ledger

import "time"

// =============================================================================
// DUE-DATE SCHEDULE - When is a contract's closure due?
// =============================================================================

// Frequency is a validity period's closure billing cadence.
//
// Due-ness is a scheduling fact, the billing amount is a balance fact. A
// contract can be due with a positive balance (nothing to bill) or not due
// with a negative one (still surfaced as a candidate via the
// monthly-overshoot rule in the selector).
type Frequency string

const (
	// FrequencyNone: never scheduled. Contracts without a cadence only
	// surface when their balance goes negative.
	FrequencyNone Frequency = ""

	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiannual Frequency = "SEMIANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"

	// FrequencyOnDemand: billed only when the client requests it. Never due
	// on the calendar; a deficit under this cadence needs a purchase order
	// before it can be committed.
	FrequencyOnDemand Frequency = "ON_DEMAND"
)

// DueIn reports whether a closure is due in the given month under this
// cadence. Pure calendar lookup, independent of the period's start date and
// of balance sign.
func (f Frequency) DueIn(m Month) bool {
	switch f {
	case FrequencyMonthly:
		return true
	case FrequencyQuarterly:
		switch m.Month {
		case time.March, time.June, time.September, time.December:
			return true
		}
		return false
	case FrequencySemiannual:
		return m.Month == time.June || m.Month == time.December
	case FrequencyAnnual:
		return m.Month == time.December
	default:
		// FrequencyNone, FrequencyOnDemand: never on the calendar.
		return false
	}
}

// OnDemand reports whether billing requires an explicit client request.
func (f Frequency) OnDemand() bool { return f == FrequencyOnDemand }
