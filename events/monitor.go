/*
Package events provides the monitoring mode for ticket-count contracts.

PURPOSE:
  EVENTS-family contracts are judged month by month: each month's contracted
  ticket count against its consumed count, with exceedance flags only. There
  is NO cumulative balance and NO carry-over between months - an exceeded
  January has no effect on February's contracted figure. Totals are plain
  sums, not accruals.

  The package shares the period/regularization vocabulary with the ledger
  (prorated quotas, one-off top-ups, returns, manual entries) but none of
  the accumulator's carry logic.

DIFFERENCE FROM THE BAG LEDGER:
  Manual consumption is ADDED to the month's ticket count here. Ticket
  counts come straight from the tracker and never include manual entries,
  unlike the hour metrics, where the sync folds manual entries in upstream.

SEE ALSO:
  - ledger/balance.go: The cumulative mode for bag contracts
  - closure/: Routes EVENTS contracts to this monitor
*/
package events

import (
	"context"
	"fmt"

	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// EVENTS MONITOR - Per-month contracted vs consumed, no carry-over
// =============================================================================

// MonthStatus is one month's standing, judged independently.
type MonthStatus struct {
	Month      ledger.Month
	Contracted ledger.Quantity
	Consumed   ledger.Quantity
	Exceeded   bool
}

// Report is the monitor's output for one contract through the target month.
type Report struct {
	ContractID   string
	ContractName string
	Target       ledger.Month

	Months []MonthStatus

	TotalContracted ledger.Quantity
	TotalConsumed   ledger.Quantity
	Exceeded        bool
}

// Monitor computes events reports from the same read sides the ledger uses.
type Monitor struct {
	Consumption     ledger.ConsumptionSource
	Regularizations ledger.RegularizationSource
}

// Report walks every month from the contract's first period through the
// target month and judges each one on its own.
func (mon *Monitor) Report(ctx context.Context, c *ledger.Contract, target ledger.Month) (*Report, error) {
	first, ok := c.FirstPeriod()
	if !ok {
		return nil, &ledger.ContractError{ContractID: c.ID, Err: ledger.ErrNoValidityPeriods}
	}

	regs, err := mon.Regularizations.Regularizations(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load regularizations for %s: %w", c.ID, err)
	}
	grouped := ledger.GroupAdjustments(regs, c.Unit)

	report := &Report{
		ContractID:      c.ID,
		ContractName:    c.Name,
		Target:          target,
		TotalContracted: ledger.ZeroQuantity(c.Unit),
		TotalConsumed:   ledger.ZeroQuantity(c.Unit),
	}

	start := first.StartMonth()
	span := ledger.MonthsBetween(start, target)
	if span < 0 {
		return report, nil
	}

	report.Months = make([]MonthStatus, 0, span+1)

	for i := 0; i <= span; i++ {
		m := start.Add(i)

		quota := ledger.ZeroQuantity(c.Unit)
		if period, ok := c.PeriodFor(m); ok {
			quota = period.MonthlyQuota(c.Billing, m)
		}

		tickets, err := mon.Consumption.MonthlyConsumption(ctx, c.ID, m)
		if err != nil {
			return nil, fmt.Errorf("load ticket count for %s %s: %w", c.ID, m, err)
		}

		adj := ledger.AdjustmentsFor(grouped, m, c.Unit)

		contracted := quota.Add(adj.OneOff)
		consumed := ledger.Quantity{Value: tickets, Unit: c.Unit}.
			Add(adj.Manual).
			Sub(adj.Returned)

		report.Months = append(report.Months, MonthStatus{
			Month:      m,
			Contracted: contracted,
			Consumed:   consumed,
			Exceeded:   consumed.GreaterThan(contracted),
		})

		report.TotalContracted = report.TotalContracted.Add(contracted)
		report.TotalConsumed = report.TotalConsumed.Add(consumed)
	}

	report.Exceeded = report.TotalConsumed.GreaterThan(report.TotalContracted)

	return report, nil
}
