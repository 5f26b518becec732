/*
Package closure decides which contracts must be billed each month.

PURPOSE:
  The monthly "cierre": for every contract active in a target month, run the
  balance accumulator and classify the contract as already processed this
  month, a candidate for billing, or not due. Candidates carry the
  suggested billable amount (the negative accumulation, floored at zero)
  and its monetary value at the covering period's rate.

CANDIDATE RULES:
  A contract becomes a candidate when ANY of:
    - lifetime accumulated balance is below -epsilon
    - the target month ALONE overshot its quota (prior surplus can mask the
      lifetime figure)
    - the period's billing cadence says this month is due
  A processed month (billed excess or approval marker dated in it) is never
  a candidate; it reports the amount already invoiced instead.

COMMIT:
  Committing a candidate appends a billed EXCESS regularization dated the
  28th of the target month. On the next run the month classifies as
  processed with that amount - the loop closes structurally, no state
  machine needed. Commit is the ONLY mutation in the whole computation and
  it is all-or-nothing per contract.

FAILURE MODEL:
  One contract failing (bad configuration, store error, panic in the walk)
  is caught, attached to the result with its contract ID, and the run
  continues. A failed contract appears in neither list.

SEE ALSO:
  - ledger/balance.go: The accumulator this package orchestrates
  - events/: Parallel non-accumulating mode for ticket-count contracts
*/
package closure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/events"
	"github.com/warp/contract-ledger/ledger"
)

// Closure commits are dated the 28th of the closed month: always a valid day,
// late enough to never collide with backdated operator entries at month start.
const commitDay = 28

// =============================================================================
// RESULT TYPES
// =============================================================================

// Candidate is a contract due for billing in the target month.
type Candidate struct {
	ContractID   string
	ContractName string
	Month        ledger.Month

	// Suggested: max(0, -accumulated), the quantity to invoice.
	Suggested ledger.Quantity

	// SuggestedCash: Suggested priced at the covering period's rate.
	SuggestedCash decimal.Decimal

	// Due: the cadence alone put this contract on the list this month.
	Due bool

	// NeedsPO: deficit under an on-demand cadence; a purchase order must
	// exist before the commit.
	NeedsPO bool

	// NeedsSync: the last external sync is stale, figures may be behind.
	NeedsSync bool

	Accumulated   ledger.Quantity
	TargetMonthly ledger.Quantity

	Statement *ledger.Statement
}

// ProcessedRecord reports a contract whose target month is already settled.
type ProcessedRecord struct {
	ContractID   string
	ContractName string
	Month        ledger.Month
	Invoiced     ledger.Quantity
}

// Result is the full output of a closure run.
type Result struct {
	Month ledger.Month

	Candidates []Candidate
	Processed  []ProcessedRecord
	Events     []*events.Report
	Errors     []*ledger.ContractError
}

// =============================================================================
// SELECTOR
// =============================================================================

// Selector orchestrates the accumulator, the due-date schedule and the
// events monitor across all active contracts.
type Selector struct {
	Contracts       ledger.ContractSource
	Regularizations ledger.RegularizationStore
	Calc            *ledger.BalanceCalculator
	Events          *events.Monitor
}

// NewSelector wires a selector over the given stores.
func NewSelector(contracts ledger.ContractSource, regs ledger.RegularizationStore, consumption ledger.ConsumptionSource) *Selector {
	return &Selector{
		Contracts:       contracts,
		Regularizations: regs,
		Calc:            &ledger.BalanceCalculator{Consumption: consumption, Regularizations: regs},
		Events:          &events.Monitor{Consumption: consumption, Regularizations: regs},
	}
}

// Run computes the closure result for the target month. now is only used for
// sync staleness; the ledger math depends on nothing but stored data.
func (s *Selector) Run(ctx context.Context, target ledger.Month, now time.Time) (*Result, error) {
	contracts, err := s.Contracts.ActiveContracts(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("list active contracts: %w", err)
	}

	result := &Result{Month: target}

	for _, c := range contracts {
		if err := s.runContract(ctx, result, c, target, now); err != nil {
			result.Errors = append(result.Errors, asContractError(c.ID, err))
		}
	}

	return result, nil
}

// runContract processes one contract, converting panics into per-contract
// errors so a single bad configuration cannot take down the batch.
func (s *Selector) runContract(ctx context.Context, result *Result, c *ledger.Contract, target ledger.Month, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if c.IsEvents() {
		report, err := s.Events.Report(ctx, c, target)
		if err != nil {
			return err
		}
		result.Events = append(result.Events, report)
		return nil
	}

	stmt, err := s.Calc.Statement(ctx, c, target)
	if err != nil {
		return err
	}

	if stmt.Processed {
		result.Processed = append(result.Processed, ProcessedRecord{
			ContractID:   c.ID,
			ContractName: c.Name,
			Month:        target,
			Invoiced:     stmt.Invoiced,
		})
		return nil
	}

	period, covered := c.PeriodFor(target)
	if !covered {
		// Month in a gap: rate and cadence from the latest period.
		period = c.Periods[len(c.Periods)-1]
	}

	due := period.Frequency.DueIn(target)
	deficit := stmt.Accumulated.IsDeficit() || stmt.TargetMonthly.IsDeficit()
	if !due && !deficit {
		return nil
	}

	suggested := stmt.Accumulated.Deficit()

	result.Candidates = append(result.Candidates, Candidate{
		ContractID:    c.ID,
		ContractName:  c.Name,
		Month:         target,
		Suggested:     suggested,
		SuggestedCash: suggested.Value.Mul(period.Rate),
		Due:           due,
		NeedsPO:       deficit && period.Frequency.OnDemand(),
		NeedsSync:     c.NeedsSync(now),
		Accumulated:   stmt.Accumulated,
		TargetMonthly: stmt.TargetMonthly,
		Statement:     stmt,
	})
	return nil
}

// =============================================================================
// COMMIT - The one mutation
// =============================================================================

// Commit settles a contract's target month by appending a billed EXCESS
// regularization for the amount. Rejected with ErrAlreadyProcessed when the
// month is already settled, which makes a double commit harmless.
func (s *Selector) Commit(ctx context.Context, contractID string, target ledger.Month, amount decimal.Decimal, note, actor string) (ledger.RegularizationRecord, error) {
	c, err := s.Contracts.Contract(ctx, contractID)
	if err != nil {
		return ledger.RegularizationRecord{}, err
	}

	regs, err := s.Regularizations.Regularizations(ctx, contractID)
	if err != nil {
		return ledger.RegularizationRecord{}, fmt.Errorf("load regularizations for %s: %w", contractID, err)
	}
	if _, processed := ledger.ProcessedAmount(regs, target, c.Unit); processed {
		return ledger.RegularizationRecord{}, &ledger.ContractError{ContractID: contractID, Err: ledger.ErrAlreadyProcessed}
	}

	rec := ledger.RegularizationRecord{
		ID:          uuid.NewString(),
		ContractID:  contractID,
		Date:        target.Day(commitDay),
		Type:        ledger.TypeExcess,
		Quantity:    amount,
		IsBilled:    true,
		Description: note,
		CreatedBy:   actor,
	}

	if err := s.Regularizations.AppendRegularization(ctx, rec); err != nil {
		return ledger.RegularizationRecord{}, fmt.Errorf("append closure excess for %s: %w", contractID, err)
	}

	return rec, nil
}

func asContractError(contractID string, err error) *ledger.ContractError {
	if cerr, ok := err.(*ledger.ContractError); ok {
		return cerr
	}
	return &ledger.ContractError{ContractID: contractID, Err: err}
}
