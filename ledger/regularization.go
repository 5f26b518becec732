/*
regularization.go - Typed adjustment events and their per-month classification

PURPOSE:
  A Regularization is a dated event that adjusts a contract's ledger: billed
  excess, returned consumption, carried-over surplus, one-off top-ups, manual
  consumption, or an approval marker. This file defines the closed set of
  event kinds, the flat persisted record shape, and the classifier that
  groups events into per-month aggregates for the balance accumulator.

KEY CONCEPTS:
  - Regularization: sealed sum type over exactly six kinds. Each variant
    carries only the fields it uses, so illegal states (a RETURN with
    revenue recognition, an APPROVED_EXCESS with a quantity) cannot be
    represented.
  - RegularizationRecord: the flat persisted shape. The type strings and the
    date-based month grouping are contract-compatibility requirements and
    must not change.
  - MonthlyAdjustments: per-month totals consumed by the accumulator.

GROUPING RULE:
  Events are grouped by the calendar month of their OWN date (UTC), never by
  when they were created. Backdated manual entries land in the historical
  month they describe.

IMMUTABILITY:
  Events are immutable once created except for IsBilled flips during revenue
  recognition reconciliation; that mutation happens in the store, the domain
  types here are plain values.

SEE ALSO:
  - balance.go: Folds MonthlyAdjustments into the running balance
  - closure/: Creates billed EXCESS events when a month is committed
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REGULARIZATION KINDS
// =============================================================================

// RegularizationType enumerates the six event kinds. The string values are
// persisted and shared with the upstream billing system; they are bit-exact
// compatibility requirements (two are Spanish legacy names).
type RegularizationType string

const (
	// TypeExcess: an exceedance billed (IsBilled) or pending billing.
	TypeExcess RegularizationType = "EXCESS"

	// TypeReturn: previously-counted consumption credited back.
	TypeReturn RegularizationType = "RETURN"

	// TypePriorSurplus: surplus carried over from before the first tracked
	// period ("sobrante anterior").
	TypePriorSurplus RegularizationType = "SOBRANTE_ANTERIOR"

	// TypeOneOffPurchase: one-off extra quota added to a specific month
	// ("contratación puntual").
	TypeOneOffPurchase RegularizationType = "CONTRATACION_PUNTUAL"

	// TypeManualConsumption: consumption not captured by sync, added to the
	// month's usage by an operator.
	TypeManualConsumption RegularizationType = "MANUAL_CONSUMPTION"

	// TypeApprovedExcess: zero-quantity marker meaning "this month's
	// exceedance was reviewed and approved without billing yet".
	TypeApprovedExcess RegularizationType = "APPROVED_EXCESS"
)

// =============================================================================
// REGULARIZATION - Sealed sum type
// =============================================================================

// Regularization is the closed union of the six event kinds. Only types in
// this package implement it.
type Regularization interface {
	Type() RegularizationType

	// EffectiveAt is the event's own date. Month grouping uses MonthOf on
	// this value, never the creation timestamp.
	EffectiveAt() time.Time

	// Amount is the event's quantity; zero for APPROVED_EXCESS markers.
	Amount() decimal.Decimal

	sealed()
}

// Excess is an exceedance, billed or pending billing. Committing a closure
// creates one of these, billed, dated the 28th of the closed month.
type Excess struct {
	ID                string
	Date              time.Time
	Quantity          decimal.Decimal
	Billed            bool
	RevenueRecognized bool
	Description       string
	CreatedBy         string
}

func (e Excess) Type() RegularizationType { return TypeExcess }
func (e Excess) EffectiveAt() time.Time   { return e.Date }
func (e Excess) Amount() decimal.Decimal  { return e.Quantity }
func (e Excess) sealed()                  {}

// Return credits back consumption that was previously counted.
type Return struct {
	ID          string
	Date        time.Time
	Quantity    decimal.Decimal
	Billed      bool
	Description string
	CreatedBy   string
}

func (r Return) Type() RegularizationType { return TypeReturn }
func (r Return) EffectiveAt() time.Time   { return r.Date }
func (r Return) Amount() decimal.Decimal  { return r.Quantity }
func (r Return) sealed()                  {}

// PriorSurplus is surplus predating the first tracked period. It only ever
// feeds the opening balance of the walk.
type PriorSurplus struct {
	ID          string
	Date        time.Time
	Quantity    decimal.Decimal
	Billed      bool
	Description string
	CreatedBy   string
}

func (s PriorSurplus) Type() RegularizationType { return TypePriorSurplus }
func (s PriorSurplus) EffectiveAt() time.Time   { return s.Date }
func (s PriorSurplus) Amount() decimal.Decimal  { return s.Quantity }
func (s PriorSurplus) sealed()                  {}

// OneOffPurchase adds extra quota to the month it is dated in.
type OneOffPurchase struct {
	ID          string
	Date        time.Time
	Quantity    decimal.Decimal
	Description string
	CreatedBy   string
}

func (p OneOffPurchase) Type() RegularizationType { return TypeOneOffPurchase }
func (p OneOffPurchase) EffectiveAt() time.Time   { return p.Date }
func (p OneOffPurchase) Amount() decimal.Decimal  { return p.Quantity }
func (p OneOffPurchase) sealed()                  {}

// ManualConsumption records usage the sync missed. The upstream sync folds it
// into the persisted monthly metric before the ledger runs; the accumulator
// re-derives the total for display only, it is never re-added.
type ManualConsumption struct {
	ID       string
	Date     time.Time
	Quantity decimal.Decimal

	// TicketID names the external ticket the hours belong to, when known.
	// Drives duplicate detection against synced worklogs.
	TicketID string

	// Reviewed is set once duplicate detection has looked at this entry.
	Reviewed bool

	Description string
	CreatedBy   string
}

func (m ManualConsumption) Type() RegularizationType { return TypeManualConsumption }
func (m ManualConsumption) EffectiveAt() time.Time   { return m.Date }
func (m ManualConsumption) Amount() decimal.Decimal  { return m.Quantity }
func (m ManualConsumption) sealed()                  {}

// ApprovedExcess marks a month's exceedance as reviewed and approved without
// billing. It carries no quantity by construction.
type ApprovedExcess struct {
	ID          string
	Date        time.Time
	Description string
	CreatedBy   string
}

func (a ApprovedExcess) Type() RegularizationType { return TypeApprovedExcess }
func (a ApprovedExcess) EffectiveAt() time.Time   { return a.Date }
func (a ApprovedExcess) Amount() decimal.Decimal  { return decimal.Zero }
func (a ApprovedExcess) sealed()                  {}

// =============================================================================
// PERSISTED RECORD - Flat shape shared with the store and the wire
// =============================================================================

// RegularizationRecord is the persisted-state shape of a regularization.
// Every kind flattens into it; FromRecord recovers the typed variant.
type RegularizationRecord struct {
	ID                  string             `json:"id"`
	ContractID          string             `json:"contract_id"`
	Date                time.Time          `json:"date"`
	Type                RegularizationType `json:"type"`
	Quantity            decimal.Decimal    `json:"quantity"`
	IsBilled            bool               `json:"is_billed"`
	IsRevenueRecognized bool               `json:"is_revenue_recognized"`
	TicketID            string             `json:"ticket_id,omitempty"`
	Reviewed            bool               `json:"reviewed,omitempty"`
	Description         string             `json:"description,omitempty"`
	CreatedBy           string             `json:"created_by,omitempty"`
}

// FromRecord converts a flat record into its typed variant. Fields a kind
// does not use are dropped; an unknown type string is an error, not a silent
// passthrough, because a typo here silently corrupts balances.
func FromRecord(rec RegularizationRecord) (Regularization, error) {
	switch rec.Type {
	case TypeExcess:
		return Excess{
			ID: rec.ID, Date: rec.Date, Quantity: rec.Quantity,
			Billed: rec.IsBilled, RevenueRecognized: rec.IsRevenueRecognized,
			Description: rec.Description, CreatedBy: rec.CreatedBy,
		}, nil
	case TypeReturn:
		return Return{
			ID: rec.ID, Date: rec.Date, Quantity: rec.Quantity,
			Billed: rec.IsBilled, Description: rec.Description, CreatedBy: rec.CreatedBy,
		}, nil
	case TypePriorSurplus:
		return PriorSurplus{
			ID: rec.ID, Date: rec.Date, Quantity: rec.Quantity,
			Billed: rec.IsBilled, Description: rec.Description, CreatedBy: rec.CreatedBy,
		}, nil
	case TypeOneOffPurchase:
		return OneOffPurchase{
			ID: rec.ID, Date: rec.Date, Quantity: rec.Quantity,
			Description: rec.Description, CreatedBy: rec.CreatedBy,
		}, nil
	case TypeManualConsumption:
		return ManualConsumption{
			ID: rec.ID, Date: rec.Date, Quantity: rec.Quantity,
			TicketID: rec.TicketID, Reviewed: rec.Reviewed,
			Description: rec.Description, CreatedBy: rec.CreatedBy,
		}, nil
	case TypeApprovedExcess:
		return ApprovedExcess{
			ID: rec.ID, Date: rec.Date,
			Description: rec.Description, CreatedBy: rec.CreatedBy,
		}, nil
	default:
		return nil, &UnknownTypeError{Type: string(rec.Type), ID: rec.ID}
	}
}

// ToRecord flattens a typed regularization for persistence.
func ToRecord(contractID string, reg Regularization) RegularizationRecord {
	rec := RegularizationRecord{
		ContractID: contractID,
		Date:       reg.EffectiveAt(),
		Type:       reg.Type(),
		Quantity:   reg.Amount(),
	}

	switch r := reg.(type) {
	case Excess:
		rec.ID, rec.IsBilled, rec.IsRevenueRecognized = r.ID, r.Billed, r.RevenueRecognized
		rec.Description, rec.CreatedBy = r.Description, r.CreatedBy
	case Return:
		rec.ID, rec.IsBilled = r.ID, r.Billed
		rec.Description, rec.CreatedBy = r.Description, r.CreatedBy
	case PriorSurplus:
		rec.ID, rec.IsBilled = r.ID, r.Billed
		rec.Description, rec.CreatedBy = r.Description, r.CreatedBy
	case OneOffPurchase:
		rec.ID = r.ID
		rec.Description, rec.CreatedBy = r.Description, r.CreatedBy
	case ManualConsumption:
		rec.ID, rec.TicketID, rec.Reviewed = r.ID, r.TicketID, r.Reviewed
		rec.Description, rec.CreatedBy = r.Description, r.CreatedBy
	case ApprovedExcess:
		rec.ID = r.ID
		rec.Description, rec.CreatedBy = r.Description, r.CreatedBy
	}

	return rec
}

// =============================================================================
// CLASSIFIER - Per-month aggregates for the accumulator
// =============================================================================

// MonthlyAdjustments are the classifier's totals for one calendar month.
type MonthlyAdjustments struct {
	// Returned: sum of RETURN quantities. Subtracted from raw consumption.
	Returned Quantity

	// BilledExcess: sum of billed EXCESS and SOBRANTE_ANTERIOR quantities.
	// Credited back into the month balance (the client already paid them).
	BilledExcess Quantity

	// OneOff: sum of CONTRATACION_PUNTUAL quantities. Extra quota.
	OneOff Quantity

	// Manual: sum of MANUAL_CONSUMPTION quantities. Display only; already
	// folded into the raw monthly metric upstream.
	Manual Quantity
}

func emptyAdjustments(unit Unit) MonthlyAdjustments {
	z := ZeroQuantity(unit)
	return MonthlyAdjustments{Returned: z, BilledExcess: z, OneOff: z, Manual: z}
}

// GroupAdjustments buckets a contract's regularizations by the calendar month
// of their own date (UTC) and sums them by kind.
func GroupAdjustments(regs []Regularization, unit Unit) map[Month]MonthlyAdjustments {
	grouped := make(map[Month]MonthlyAdjustments)

	for _, reg := range regs {
		m := MonthOf(reg.EffectiveAt())
		adj, ok := grouped[m]
		if !ok {
			adj = emptyAdjustments(unit)
		}

		qty := Quantity{Value: reg.Amount(), Unit: unit}
		switch r := reg.(type) {
		case Return:
			adj.Returned = adj.Returned.Add(qty)
		case Excess:
			if r.Billed {
				adj.BilledExcess = adj.BilledExcess.Add(qty)
			}
		case PriorSurplus:
			if r.Billed {
				adj.BilledExcess = adj.BilledExcess.Add(qty)
			}
		case OneOffPurchase:
			adj.OneOff = adj.OneOff.Add(qty)
		case ManualConsumption:
			adj.Manual = adj.Manual.Add(qty)
		}

		grouped[m] = adj
	}

	return grouped
}

// AdjustmentsFor returns the month's totals, zero-valued when nothing is
// dated in it.
func AdjustmentsFor(grouped map[Month]MonthlyAdjustments, m Month, unit Unit) MonthlyAdjustments {
	if adj, ok := grouped[m]; ok {
		return adj
	}
	return emptyAdjustments(unit)
}

// ProcessedAmount reports whether the month has already been settled and how
// much was invoiced.
//
// A month is processed when a billed EXCESS, or an APPROVED_EXCESS marker, is
// dated in it. The invoiced amount is the sum of the billed EXCESS quantities
// (an approval marker contributes zero: approved, not yet billed).
func ProcessedAmount(regs []Regularization, m Month, unit Unit) (Quantity, bool) {
	invoiced := ZeroQuantity(unit)
	processed := false

	for _, reg := range regs {
		if !MonthOf(reg.EffectiveAt()).Equal(m) {
			continue
		}
		switch r := reg.(type) {
		case Excess:
			if r.Billed {
				processed = true
				invoiced = invoiced.Add(Quantity{Value: r.Quantity, Unit: unit})
			}
		case ApprovedExcess:
			processed = true
		}
	}

	return invoiced, processed
}

// OpeningBalance sums regularizations dated strictly before the cutoff where
// the kind is EXCESS, SOBRANTE_ANTERIOR or RETURN and the event is billed.
//
// This seeds the accumulator with surplus and returns that predate the first
// tracked period, so a contract whose tracked periods start mid-relationship
// never loses history.
func OpeningBalance(regs []Regularization, cutoff time.Time, unit Unit) Quantity {
	opening := ZeroQuantity(unit)

	for _, reg := range regs {
		if !reg.EffectiveAt().Before(cutoff) {
			continue
		}
		switch r := reg.(type) {
		case Excess:
			if r.Billed {
				opening = opening.Add(Quantity{Value: r.Quantity, Unit: unit})
			}
		case PriorSurplus:
			if r.Billed {
				opening = opening.Add(Quantity{Value: r.Quantity, Unit: unit})
			}
		case Return:
			if r.Billed {
				opening = opening.Add(Quantity{Value: r.Quantity, Unit: unit})
			}
		}
	}

	return opening
}
