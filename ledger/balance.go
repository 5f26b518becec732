/*
balance.go - The monthly balance accumulator (ledger core)

PURPOSE:
  Walks every calendar month from a contract's first validity period through
  a target month, in strictly increasing order, folding prorated quotas,
  one-off top-ups, raw consumption (net of returns) and billed-excess
  credits into a running cumulative balance. This is the calculation that
  answers "how much has this contract over- or under-consumed?"

THE WALK:
  For each month m from firstPeriodStart to target:
    quota     = covering period's prorated quota (zero in a gap)
    raw       = persisted monthly metric (zero when absent)
    effective = raw - returns dated in m
    monthly   = (quota + oneOffTopUps) - effective + billedExcess
    accumulated += monthly

  The iteration bound is MonthsBetween(first, target), computed once. There
  is no safety counter; the loop is provably finite.

OPENING BALANCE:
  Billed EXCESS / SOBRANTE_ANTERIOR / RETURN events dated strictly before
  the first period seed the accumulator, so history predating the tracked
  periods is never lost.

TWO TRIGGERS:
  The target month is evaluated twice conceptually: once inside the walk
  (lifetime accumulated balance) and once standalone (did THIS month
  overshoot its quota?). A contract is billable on either trigger - prior
  surplus can mask a lifetime deficit while the month itself overshot.

MANUAL CONSUMPTION:
  Manual entries are already folded into the raw metric by the upstream
  sync before persistence. The walk re-derives the manual total for display
  only; re-adding it would double count.

SEE ALSO:
  - period.go: MonthlyQuota proration
  - regularization.go: Classifier feeding the walk
  - closure/: Turns statements into billing candidates
*/
package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// STATEMENT - Month-by-month balance view for one contract
// =============================================================================

// MonthEntry is one row of the month-by-month summary.
type MonthEntry struct {
	Month Month

	// Contracted: prorated quota plus one-off top-ups for the month.
	Contracted Quantity

	// Consumed: raw metric net of returns.
	Consumed Quantity

	// Returned and Manual are carried for display; Returned is already
	// subtracted from Consumed, Manual is already inside the raw metric.
	Returned Quantity
	Manual   Quantity

	// Monthly: contracted - consumed + billed-excess credits.
	Monthly Quantity

	// Accumulated: running balance through this month, opening included.
	Accumulated Quantity
}

// Statement is the accumulator's full output for (contract, target month).
type Statement struct {
	ContractID string
	Target     Month

	// Opening: billed excess/surplus/returns predating the first period.
	Opening Quantity

	// Entries: one row per month of the walk, chronological.
	Entries []MonthEntry

	// Accumulated: lifetime balance through the target month.
	Accumulated Quantity

	// TargetMonthly: the target month's standalone balance, the
	// monthly-overshoot trigger independent of history.
	TargetMonthly Quantity

	// Processed / Invoiced: when the target month already carries a billed
	// excess or an approval marker, the month is settled and Invoiced holds
	// the amount already invoiced. Processed statements never become
	// candidates.
	Processed bool
	Invoiced  Quantity
}

// =============================================================================
// BALANCE CALCULATOR
// =============================================================================

// BalanceCalculator computes statements from the two read sides. It is pure
// CPU work over the fetched inputs: no shared state, safe to run for many
// contracts in parallel.
type BalanceCalculator struct {
	Consumption     ConsumptionSource
	Regularizations RegularizationSource
}

// Statement computes the month-by-month and cumulative balance for a
// contract through the target month.
//
// Returns ErrNoValidityPeriods when the contract has none: that is a
// configuration error fatal for this contract only, the caller skips it and
// keeps the batch going.
func (bc *BalanceCalculator) Statement(ctx context.Context, c *Contract, target Month) (*Statement, error) {
	first, ok := c.FirstPeriod()
	if !ok {
		return nil, &ContractError{ContractID: c.ID, Err: ErrNoValidityPeriods}
	}

	regs, err := bc.Regularizations.Regularizations(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load regularizations for %s: %w", c.ID, err)
	}

	opening := OpeningBalance(regs, first.Start, c.Unit)
	grouped := GroupAdjustments(regs, c.Unit)

	stmt := &Statement{
		ContractID:    c.ID,
		Target:        target,
		Opening:       opening,
		Accumulated:   opening,
		TargetMonthly: ZeroQuantity(c.Unit),
	}

	start := first.StartMonth()
	span := MonthsBetween(start, target)
	if span < 0 {
		// Target predates the tracked periods: nothing to walk, the
		// statement is just the opening balance.
		stmt.Invoiced, stmt.Processed = ProcessedAmount(regs, target, c.Unit)
		return stmt, nil
	}

	stmt.Entries = make([]MonthEntry, 0, span+1)

	for i := 0; i <= span; i++ {
		m := start.Add(i)

		entry, err := bc.monthEntry(ctx, c, m, grouped)
		if err != nil {
			return nil, err
		}

		stmt.Accumulated = stmt.Accumulated.Add(entry.Monthly)
		entry.Accumulated = stmt.Accumulated
		stmt.Entries = append(stmt.Entries, entry)
	}

	stmt.TargetMonthly = stmt.Entries[len(stmt.Entries)-1].Monthly
	stmt.Invoiced, stmt.Processed = ProcessedAmount(regs, target, c.Unit)

	return stmt, nil
}

// monthEntry builds the row for one month of the walk.
func (bc *BalanceCalculator) monthEntry(ctx context.Context, c *Contract, m Month, grouped map[Month]MonthlyAdjustments) (MonthEntry, error) {
	quota := ZeroQuantity(c.Unit)
	if period, ok := c.PeriodFor(m); ok {
		quota = period.MonthlyQuota(c.Billing, m)
	}

	raw, err := bc.Consumption.MonthlyConsumption(ctx, c.ID, m)
	if err != nil {
		return MonthEntry{}, fmt.Errorf("load consumption for %s %s: %w", c.ID, m, err)
	}

	adj := AdjustmentsFor(grouped, m, c.Unit)

	consumed := Quantity{Value: raw, Unit: c.Unit}.Sub(adj.Returned)
	contracted := quota.Add(adj.OneOff)
	monthly := contracted.Sub(consumed).Add(adj.BilledExcess)

	return MonthEntry{
		Month:      m,
		Contracted: contracted,
		Consumed:   consumed,
		Returned:   adj.Returned,
		Manual:     adj.Manual,
		Monthly:    monthly,
	}, nil
}
