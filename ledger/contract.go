package ledger

import (
	"time"
)

// =============================================================================
// CONTRACT - A client agreement sold as a prepaid bag of hours or tickets
// =============================================================================

// ContractFamily classifies how a contract is accounted for.
type ContractFamily string

const (
	// FamilyBag: prepaid bag of hours, cumulative balance with carry-over.
	FamilyBag ContractFamily = "BAG"

	// FamilyDedicatedBag: dedicated bag; different commercial terms but the
	// same ledger logic as FamilyBag.
	FamilyDedicatedBag ContractFamily = "DEDICATED_BAG"

	// FamilyEvents: ticket-count contract, judged month by month with no
	// carry-over. Handled by the events package, not the balance accumulator.
	FamilyEvents ContractFamily = "EVENTS"
)

// BillingMode determines how a period's total quantity is attributed.
type BillingMode string

const (
	// BillingRecurring: the total is prorated evenly across the period.
	BillingRecurring BillingMode = "RECURRING"

	// BillingOneOff: the full total lands on the period's first month.
	BillingOneOff BillingMode = "ONE_OFF"
)

// Contract owns an ordered, non-overlapping sequence of validity periods and
// an unordered set of regularizations (held in the store, not here).
//
// Lifecycle: created once by configuration, extended by renewal (new period),
// touched by sync (LastSyncedAt). Never deleted while periods or
// regularizations reference it.
type Contract struct {
	ID       string
	ClientID string // groups the client's contract family for duplicate detection
	Name     string
	Unit     Unit
	Family   ContractFamily
	Billing  BillingMode

	// Ordered by start date. Contiguous in practice; the engine tolerates gaps.
	Periods []ValidityPeriod

	// When the external worklog sync last completed for this contract.
	// Zero means never synced.
	LastSyncedAt time.Time
}

// FirstPeriod returns the earliest validity period.
func (c *Contract) FirstPeriod() (ValidityPeriod, bool) {
	if len(c.Periods) == 0 {
		return ValidityPeriod{}, false
	}
	return c.Periods[0], true
}

// PeriodFor returns the validity period covering the given month.
// A month in a gap between periods has no covering period.
func (c *Contract) PeriodFor(m Month) (ValidityPeriod, bool) {
	for _, p := range c.Periods {
		if p.Covers(m) {
			return p, true
		}
	}
	return ValidityPeriod{}, false
}

// ActiveIn reports whether any validity period covers the month.
func (c *Contract) ActiveIn(m Month) bool {
	_, ok := c.PeriodFor(m)
	return ok
}

// IsEvents reports whether the contract uses the non-accumulating
// events accounting mode.
func (c *Contract) IsEvents() bool { return c.Family == FamilyEvents }

// NeedsSync reports whether the last external sync is stale. Candidates carry
// this flag so an operator knows the consumption figures may be behind.
const syncStaleness = 24 * time.Hour

func (c *Contract) NeedsSync(now time.Time) bool {
	return c.LastSyncedAt.IsZero() || now.Sub(c.LastSyncedAt) > syncStaleness
}
