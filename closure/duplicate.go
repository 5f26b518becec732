/*
duplicate.go - Reconciling manual entries against synced worklogs

PURPOSE:
  An operator sometimes records hours by hand (MANUAL_CONSUMPTION) before
  the tracker sync catches up. When the sync later imports a worklog for the
  same ticket and month, the hours are counted twice. This detector
  cross-references pending manual entries against synced worklogs across the
  client's WHOLE contract family - the worklog may have landed on a sibling
  contract - and flags probable double entry.

SCOPE RULES:
  - Only manual entries naming a specific external ticket are checked.
  - Synced entries already tagged as manual are excluded from the search,
    or every manual entry would match itself.
  - Flags fire only for bag-backed ticket categories (estimate-bag,
    time-and-materials-against-bag). Plain tickets are EXPECTED to carry
    manual entries; they never flag.

ADVISORY ONLY:
  A flag marks the manual regularization as reviewed. It never deletes it;
  the keep-or-delete decision is an operator action.
*/
package closure

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// DUPLICATE-CONSUMPTION DETECTOR
// =============================================================================

// DuplicateFlag marks a manual entry that probably duplicates synced hours.
type DuplicateFlag struct {
	ContractID       string          `json:"contract_id"`
	RegularizationID string          `json:"regularization_id"`
	TicketID         string          `json:"ticket_id"`
	Month            ledger.Month    `json:"month"`
	QuantityManual   decimal.Decimal `json:"quantity_manual"`
	QuantitySynced   decimal.Decimal `json:"quantity_synced"`

	// ExactMatch: the manual and synced quantities agree within tolerance,
	// the strongest double-entry signal.
	ExactMatch bool `json:"exact_match"`

	// SourceContract: where the synced hours actually landed. May differ
	// from ContractID when the worklog was attributed to a sibling contract.
	SourceContract string `json:"source_contract"`
}

// Detector cross-references manual consumption against synced worklogs.
type Detector struct {
	Contracts       ledger.ContractSource
	Regularizations ledger.RegularizationStore
	Worklogs        ledger.WorklogSource
}

// Detect inspects every unreviewed manual entry of the contract. Flagged
// entries are marked reviewed so the next run is quiet; nothing is deleted.
func (d *Detector) Detect(ctx context.Context, contractID string) ([]DuplicateFlag, error) {
	c, err := d.Contracts.Contract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	regs, err := d.Regularizations.Regularizations(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load regularizations for %s: %w", contractID, err)
	}

	var flags []DuplicateFlag

	for _, reg := range regs {
		manual, ok := reg.(ledger.ManualConsumption)
		if !ok || manual.Reviewed || manual.TicketID == "" {
			continue
		}

		flag, found, err := d.check(ctx, c, manual)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		if err := d.Regularizations.MarkManualReviewed(ctx, manual.ID); err != nil {
			return nil, fmt.Errorf("mark %s reviewed: %w", manual.ID, err)
		}
		flags = append(flags, flag)
	}

	return flags, nil
}

// check searches the client's contract family for synced hours on the manual
// entry's ticket and month.
func (d *Detector) check(ctx context.Context, c *ledger.Contract, manual ledger.ManualConsumption) (DuplicateFlag, bool, error) {
	month := ledger.MonthOf(manual.Date)

	worklogs, err := d.Worklogs.FindWorklogs(ctx, c.ClientID, manual.TicketID, month)
	if err != nil {
		return DuplicateFlag{}, false, fmt.Errorf("search worklogs for ticket %s: %w", manual.TicketID, err)
	}

	synced := decimal.Zero
	source := ""
	bagBacked := false
	for _, wl := range worklogs {
		if wl.Manual {
			continue
		}
		synced = synced.Add(wl.Hours)
		if source == "" {
			source = wl.ContractID
		}
		if wl.Category.BagBacked() {
			bagBacked = true
		}
	}

	if source == "" || !bagBacked {
		return DuplicateFlag{}, false, nil
	}

	diff := manual.Quantity.Sub(synced).Abs()

	return DuplicateFlag{
		ContractID:       c.ID,
		RegularizationID: manual.ID,
		TicketID:         manual.TicketID,
		Month:            month,
		QuantityManual:   manual.Quantity,
		QuantitySynced:   synced,
		ExactMatch:       diff.LessThan(ledger.BalanceEpsilon),
		SourceContract:   source,
	}, true, nil
}
