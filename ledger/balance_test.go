package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/ledger"
	"github.com/warp/contract-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCalculator(t *testing.T) (*ledger.BalanceCalculator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	calc := &ledger.BalanceCalculator{Consumption: mem, Regularizations: mem}
	return calc, mem
}

// bagContract is a 120-hour recurring bag valid through 2025: 10 hours/month.
func bagContract(id string) *ledger.Contract {
	return &ledger.Contract{
		ID:       id,
		ClientID: "acme",
		Name:     "ACME support bag",
		Unit:     ledger.UnitHours,
		Family:   ledger.FamilyBag,
		Billing:  ledger.BillingRecurring,
		Periods: []ledger.ValidityPeriod{{
			Start:     time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:       time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
			Total:     ledger.NewQuantityFromInt(120, ledger.UnitHours),
			Frequency: ledger.FrequencyQuarterly,
			Rate:      decimal.NewFromInt(85),
		}},
	}
}

func setConsumption(t *testing.T, mem *store.Memory, contractID string, m ledger.Month, hours string) {
	t.Helper()
	err := mem.UpsertMonthlyMetric(context.Background(), contractID, m, ledger.MustParseDecimal(hours))
	require.NoError(t, err)
}

func addReg(t *testing.T, mem *store.Memory, rec ledger.RegularizationRecord) {
	t.Helper()
	require.NoError(t, mem.AppendRegularization(context.Background(), rec))
}

// =============================================================================
// ACCUMULATION SCENARIOS
// =============================================================================

func TestStatement_OvershootThenRecovery(t *testing.T) {
	// GIVEN: 10 hours/month, January consumed 12, February consumed 8
	// WHEN: Computing the statement through February
	// THEN: January is -2, February is +2, lifetime accumulation is back to 0

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.January), "12")
	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.February), "8")

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.February))
	require.NoError(t, err)

	require.Len(t, stmt.Entries, 2)
	assert.Equal(t, "-2", stmt.Entries[0].Monthly.Value.String())
	assert.Equal(t, "2", stmt.Entries[1].Monthly.Value.String())
	assert.Equal(t, "0", stmt.Accumulated.Value.String())
	assert.False(t, stmt.Accumulated.IsDeficit())
	assert.False(t, stmt.Processed)
}

func TestStatement_Deficit(t *testing.T) {
	// GIVEN: January consumed 15 against a 10-hour quota
	// THEN: Both the month and the lifetime balance show -5

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.January), "15")

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.January))
	require.NoError(t, err)

	assert.Equal(t, "-5", stmt.Accumulated.Value.String())
	assert.Equal(t, "-5", stmt.TargetMonthly.Value.String())
	assert.True(t, stmt.Accumulated.IsDeficit())
	assert.Equal(t, "5", stmt.Accumulated.Deficit().Value.String())
}

func TestStatement_ReturnCreditsConsumption(t *testing.T) {
	// GIVEN: January consumed 15 raw, but 3 hours were returned
	// THEN: Effective consumption is 12, month balance -2

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.January), "15")
	addReg(t, mem, ledger.RegularizationRecord{
		ID: "r1", ContractID: c.ID,
		Date: time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeReturn, Quantity: ledger.MustParseDecimal("3"),
	})

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.January))
	require.NoError(t, err)

	entry := stmt.Entries[0]
	assert.Equal(t, "12", entry.Consumed.Value.String())
	assert.Equal(t, "3", entry.Returned.Value.String())
	assert.Equal(t, "-2", entry.Monthly.Value.String())
}

func TestStatement_OneOffTopUpRaisesContracted(t *testing.T) {
	// GIVEN: A 20-hour one-off purchase dated in February
	// THEN: February's contracted figure is 30 (10 quota + 20 top-up)

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	addReg(t, mem, ledger.RegularizationRecord{
		ID: "o1", ContractID: c.ID,
		Date: time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeOneOffPurchase, Quantity: ledger.MustParseDecimal("20"),
	})
	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.February), "25")

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.February))
	require.NoError(t, err)

	feb := stmt.Entries[1]
	assert.Equal(t, "30", feb.Contracted.Value.String())
	assert.Equal(t, "5", feb.Monthly.Value.String())
}

func TestStatement_OpeningBalanceSeedsTheWalk(t *testing.T) {
	// GIVEN: A billed 5-hour prior surplus dated before the first period
	// THEN: The walk starts from +5, so January's overshoot of 2 leaves +3

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	addReg(t, mem, ledger.RegularizationRecord{
		ID: "s1", ContractID: c.ID,
		Date: time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypePriorSurplus, Quantity: ledger.MustParseDecimal("5"), IsBilled: true,
	})
	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.January), "12")

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.January))
	require.NoError(t, err)

	assert.Equal(t, "5", stmt.Opening.Value.String())
	assert.Equal(t, "3", stmt.Accumulated.Value.String())
}

func TestStatement_BilledExcessSettlesTheMonth(t *testing.T) {
	// GIVEN: January overshot by 5 and a billed excess of 5 was committed
	// THEN: The month reads processed with 5 invoiced, and the credit brings
	//       the lifetime balance back to zero

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.January), "15")
	addReg(t, mem, ledger.RegularizationRecord{
		ID: "e1", ContractID: c.ID,
		Date: time.Date(2025, time.January, 28, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeExcess, Quantity: ledger.MustParseDecimal("5"), IsBilled: true,
	})

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.January))
	require.NoError(t, err)

	assert.True(t, stmt.Processed)
	assert.Equal(t, "5", stmt.Invoiced.Value.String())
	assert.Equal(t, "0", stmt.Accumulated.Value.String())
}

func TestStatement_AccumulationIsChronological(t *testing.T) {
	// The running balance at each row equals the sum of everything before it.
	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.January), "13")
	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.February), "9")
	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.March), "11")

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.March))
	require.NoError(t, err)

	running := stmt.Opening
	for _, e := range stmt.Entries {
		running = running.Add(e.Monthly)
		assert.True(t, running.Value.Equal(e.Accumulated.Value),
			"month %s: running %s vs accumulated %s", e.Month, running.Value, e.Accumulated.Value)
	}
	assert.Equal(t, "-3", stmt.Accumulated.Value.String())
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestStatement_NoPeriodsIsAContractError(t *testing.T) {
	calc, _ := newTestCalculator(t)
	c := &ledger.Contract{ID: "broken", Unit: ledger.UnitHours}

	_, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.January))
	require.Error(t, err)

	assert.ErrorIs(t, err, ledger.ErrNoValidityPeriods)
	var cerr *ledger.ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "broken", cerr.ContractID)
}

func TestStatement_TargetBeforeFirstPeriod(t *testing.T) {
	// A target predating the tracked periods yields an opening-only statement.
	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")

	addReg(t, mem, ledger.RegularizationRecord{
		ID: "s1", ContractID: c.ID,
		Date: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypePriorSurplus, Quantity: ledger.MustParseDecimal("4"), IsBilled: true,
	})

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2024, time.December))
	require.NoError(t, err)

	assert.Empty(t, stmt.Entries)
	assert.Equal(t, "4", stmt.Opening.Value.String())
	assert.Equal(t, "4", stmt.Accumulated.Value.String())
}

func TestStatement_GapMonthHasZeroQuota(t *testing.T) {
	// GIVEN: Two periods with a one-month gap between them
	// THEN: The gap month contributes consumption but no quota

	calc, mem := newTestCalculator(t)
	c := bagContract("acme-bag")
	c.Periods = []ledger.ValidityPeriod{
		{
			Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
			Total: ledger.NewQuantityFromInt(20, ledger.UnitHours),
		},
		{
			Start: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC),
			Total: ledger.NewQuantityFromInt(20, ledger.UnitHours),
		},
	}
	setConsumption(t, mem, c.ID, ledger.NewMonth(2025, time.March), "6")

	stmt, err := calc.Statement(context.Background(), c, ledger.NewMonth(2025, time.April))
	require.NoError(t, err)

	march := stmt.Entries[2]
	assert.True(t, march.Contracted.IsZero())
	assert.Equal(t, "-6", march.Monthly.Value.String())
}
