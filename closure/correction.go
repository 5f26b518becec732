/*
correction.go - Tiered correction-model pricing

PURPOSE:
  Transforms a single raw hour value before it is summed into the monthly
  metric. Clients negotiate correction models per contract: small items pass
  through, mid-sized items get a surcharge, large items are flattened to a
  fixed figure.

TIER SEMANTICS:
  For an input h, the FIRST tier whose Max >= h applies:
    PASSTHROUGH -> h
    ADD         -> h + Value
    FIXED       -> Value
  A nil Max is the unbounded last tier. No matching tier, or no model at
  all, returns h unchanged.

PER-ITEM APPLICATION:
  The model is applied per work item BEFORE monthly summation, so
  corrections compound additively across many small items instead of firing
  once on the monthly total. This is a precision choice: ten 1-hour items
  under an ADD(0.5) tier cost 15 hours, not 10.5.

MODEL SELECTION:
  At most one model is active per contract at a time: an explicit
  per-contract assignment wins, otherwise a single global default applies.

SEE ALSO:
  - ledger/store.go: MetricStore the corrected totals land in
*/
package closure

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// CORRECTION MODEL - Tiered transform over raw hours
// =============================================================================

// TierMode determines what a matching tier does with the input.
type TierMode string

const (
	ModePassthrough TierMode = "PASSTHROUGH"
	ModeAdd         TierMode = "ADD"
	ModeFixed       TierMode = "FIXED"
)

// CorrectionTier is one band of the transform. Max is the inclusive upper
// bound for inputs this tier handles; nil means unbounded (the last tier).
type CorrectionTier struct {
	Max   *decimal.Decimal
	Mode  TierMode
	Value decimal.Decimal
}

// CorrectionModel is an ordered set of tiers.
type CorrectionModel struct {
	ID    string
	Name  string
	Tiers []CorrectionTier
}

// Validate checks the tier configuration: at least one tier, strictly
// ascending bounds, nothing after an unbounded tier, known modes.
func (m *CorrectionModel) Validate() error {
	if len(m.Tiers) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ledger.ErrInvalidCorrectionModel)
	}

	for i, tier := range m.Tiers {
		switch tier.Mode {
		case ModePassthrough, ModeAdd, ModeFixed:
		default:
			return fmt.Errorf("%w: unknown tier mode %q", ledger.ErrInvalidCorrectionModel, tier.Mode)
		}

		if i == 0 {
			continue
		}
		prev := m.Tiers[i-1]
		if prev.Max == nil {
			return fmt.Errorf("%w: no tiers allowed after unbounded tier", ledger.ErrInvalidCorrectionModel)
		}
		if tier.Max != nil && !tier.Max.GreaterThan(*prev.Max) {
			return fmt.Errorf("%w: tier bounds must be strictly increasing", ledger.ErrInvalidCorrectionModel)
		}
	}

	return nil
}

// Apply transforms one raw hour value. A nil model is a passthrough.
func (m *CorrectionModel) Apply(raw decimal.Decimal) decimal.Decimal {
	if m == nil {
		return raw
	}

	for _, tier := range m.Tiers {
		if tier.Max != nil && raw.GreaterThan(*tier.Max) {
			continue
		}
		switch tier.Mode {
		case ModeAdd:
			return raw.Add(tier.Value)
		case ModeFixed:
			return tier.Value
		default:
			return raw
		}
	}

	return raw
}

// ApplyAll corrects a batch of per-item raw values and returns the corrected
// monthly total. This is the summation order the precision choice demands.
func (m *CorrectionModel) ApplyAll(raws []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, raw := range raws {
		total = total.Add(m.Apply(raw))
	}
	return total
}

// Unbounded is a convenience for building the open-ended last tier.
func Unbounded() *decimal.Decimal { return nil }

// MaxOf wraps a float bound for tier literals.
func MaxOf(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// CorrectionSource resolves the model active for a contract at a point in
// time: the explicit assignment if one exists, else the global default, else
// nil (no correction).
type CorrectionSource interface {
	ActiveModel(ctx context.Context, contractID string, asOf time.Time) (*CorrectionModel, error)
}
