/*
Package ledger provides the core contract balance engine.

PURPOSE:
  This package contains the types and algorithms that track prepaid service
  contracts ("bags" of hours or tickets): prorating a validity period's total
  quantity into monthly quotas, classifying typed adjustment events
  (regularizations), and folding raw monthly consumption into a chronological
  per-month and cumulative balance.

KEY CONCEPTS IN THIS FILE (quantity.go):
  - Quantity: A decimal quantity with a unit (hours or tickets)
  - BalanceEpsilon: The single tolerance used for every negativity check

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. One tolerance: BalanceEpsilon is the ONLY epsilon in the engine.
     A balance is "negative" only below -0.01; everything within the band
     is treated as settled.
  3. One unit per contract: hours OR tickets, never both, no currency mixing

USAGE:
  quota := ledger.NewQuantity(10, ledger.UnitHours)
  balance := quota.Sub(consumed)
  if balance.IsDeficit() {
      // bill the shortfall
  }

SEE ALSO:
  - month.go: Structured calendar month keys
  - balance.go: The monthly balance accumulator
*/
package ledger

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Decimal amount with a unit of account
// =============================================================================

// Unit is a contract's unit of account.
type Unit string

const (
	UnitHours   Unit = "HOURS"
	UnitTickets Unit = "TICKETS"
)

// BalanceEpsilon absorbs decimal noise from prorated quotas (e.g. 120/12
// computed through corrections). Every negativity or equality check in the
// engine goes through this constant; there are no ad hoc tolerances.
var BalanceEpsilon = decimal.NewFromFloat(0.01)

type Quantity struct {
	Value decimal.Decimal
	Unit  Unit
}

func NewQuantity(value float64, unit Unit) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewQuantityFromInt(value int, unit Unit) Quantity {
	return Quantity{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func ZeroQuantity(unit Unit) Quantity {
	return Quantity{Value: decimal.Zero, Unit: unit}
}

// MustParseDecimal parses a decimal literal and panics on malformed input.
// For fixtures and trusted constants only; parse user input with
// decimal.NewFromString directly.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("ledger: bad decimal literal " + strconv.Quote(s) + ": " + err.Error())
	}
	return d
}

func (q Quantity) Zero() Quantity                 { return Quantity{Value: decimal.Zero, Unit: q.Unit} }
func (q Quantity) Add(o Quantity) Quantity        { return Quantity{Value: q.Value.Add(o.Value), Unit: q.Unit} }
func (q Quantity) Sub(o Quantity) Quantity        { return Quantity{Value: q.Value.Sub(o.Value), Unit: q.Unit} }
func (q Quantity) Mul(s decimal.Decimal) Quantity { return Quantity{Value: q.Value.Mul(s), Unit: q.Unit} }
func (q Quantity) Neg() Quantity                  { return Quantity{Value: q.Value.Neg(), Unit: q.Unit} }
func (q Quantity) IsZero() bool                   { return q.Value.IsZero() }
func (q Quantity) IsNegative() bool               { return q.Value.IsNegative() }
func (q Quantity) IsPositive() bool               { return q.Value.IsPositive() }
func (q Quantity) GreaterThan(o Quantity) bool    { return q.Value.GreaterThan(o.Value) }
func (q Quantity) LessThan(o Quantity) bool       { return q.Value.LessThan(o.Value) }

// DivInt divides the quantity by an integer divisor (month counts).
func (q Quantity) DivInt(n int) Quantity {
	return Quantity{Value: q.Value.Div(decimal.NewFromInt(int64(n))), Unit: q.Unit}
}

// IsDeficit reports whether the quantity is negative beyond BalanceEpsilon.
// This is the billing trigger: -0.005 is settled, -0.02 is a deficit.
func (q Quantity) IsDeficit() bool {
	return q.Value.LessThan(BalanceEpsilon.Neg())
}

// Deficit returns how much is owed: max(0, -q), the suggested billable amount
// for a negative balance.
func (q Quantity) Deficit() Quantity {
	if q.Value.IsNegative() {
		return q.Neg()
	}
	return q.Zero()
}
