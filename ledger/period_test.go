package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/ledger"
)

func yearPeriod(total int) ledger.ValidityPeriod {
	return ledger.ValidityPeriod{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
		Total: ledger.NewQuantityFromInt(total, ledger.UnitHours),
	}
}

func TestPeriod_RecurringProration(t *testing.T) {
	// GIVEN: 120 hours valid January through December
	// WHEN: Computing each month's quota
	// THEN: Every covered month gets exactly 10; months outside get zero

	p := yearPeriod(120)

	for m := ledger.NewMonth(2025, time.January); !m.After(ledger.NewMonth(2025, time.December)); m = m.Next() {
		quota := p.MonthlyQuota(ledger.BillingRecurring, m)
		assert.True(t, quota.Value.Equal(decimal.NewFromInt(10)), "month %s got %s", m, quota.Value)
	}

	outside := p.MonthlyQuota(ledger.BillingRecurring, ledger.NewMonth(2026, time.January))
	assert.True(t, outside.IsZero())
}

func TestPeriod_ProrationSumsToTotal(t *testing.T) {
	// Proration over a divisible span reassembles the exact total.
	p := yearPeriod(120)

	sum := ledger.ZeroQuantity(ledger.UnitHours)
	for m := p.StartMonth(); !m.After(p.EndMonth()); m = m.Next() {
		sum = sum.Add(p.MonthlyQuota(ledger.BillingRecurring, m))
	}

	assert.True(t, sum.Value.Equal(decimal.NewFromInt(120)), "got %s", sum.Value)
}

func TestPeriod_OneOffAllInFirstMonth(t *testing.T) {
	// GIVEN: A one-off billed period
	// THEN: The whole total lands in the start month, nothing elsewhere

	p := yearPeriod(120)

	first := p.MonthlyQuota(ledger.BillingOneOff, ledger.NewMonth(2025, time.January))
	assert.True(t, first.Value.Equal(decimal.NewFromInt(120)))

	second := p.MonthlyQuota(ledger.BillingOneOff, ledger.NewMonth(2025, time.February))
	assert.True(t, second.IsZero())
}

func TestPeriod_CoversBoundaryMonths(t *testing.T) {
	p := ledger.ValidityPeriod{
		Start: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		Total: ledger.NewQuantityFromInt(40, ledger.UnitHours),
	}

	// The span is inclusive of both partial boundary months.
	assert.True(t, p.Covers(ledger.NewMonth(2025, time.March)))
	assert.True(t, p.Covers(ledger.NewMonth(2025, time.June)))
	assert.False(t, p.Covers(ledger.NewMonth(2025, time.February)))
	assert.False(t, p.Covers(ledger.NewMonth(2025, time.July)))
	assert.Equal(t, 4, p.MonthSpan())
}

func TestPeriod_ValidateRejectsInvertedDates(t *testing.T) {
	p := ledger.ValidityPeriod{
		Start: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Total: ledger.NewQuantityFromInt(10, ledger.UnitHours),
	}

	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)
}
