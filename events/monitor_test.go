package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/events"
	"github.com/warp/contract-ledger/ledger"
	"github.com/warp/contract-ledger/ledger/store"
)

// eventsContract is a 600-ticket/year events contract: 50 tickets/month.
func eventsContract() *ledger.Contract {
	return &ledger.Contract{
		ID:       "acme-events",
		ClientID: "acme",
		Name:     "ACME ticket plan",
		Unit:     ledger.UnitTickets,
		Family:   ledger.FamilyEvents,
		Billing:  ledger.BillingRecurring,
		Periods: []ledger.ValidityPeriod{{
			Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
			Total: ledger.NewQuantityFromInt(600, ledger.UnitTickets),
		}},
	}
}

func newTestMonitor(t *testing.T) (*events.Monitor, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return &events.Monitor{Consumption: mem, Regularizations: mem}, mem
}

func TestReport_MonthsJudgedIndependently(t *testing.T) {
	// GIVEN: 50 tickets/month; January consumed 62, February consumed 40
	// THEN: January is exceeded, February is not - January's overshoot does
	//       NOT reduce February's contracted figure

	mon, mem := newTestMonitor(t)
	c := eventsContract()
	ctx := context.Background()

	require.NoError(t, mem.UpsertMonthlyMetric(ctx, c.ID,
		ledger.NewMonth(2025, time.January), ledger.MustParseDecimal("62")))
	require.NoError(t, mem.UpsertMonthlyMetric(ctx, c.ID,
		ledger.NewMonth(2025, time.February), ledger.MustParseDecimal("40")))

	report, err := mon.Report(ctx, c, ledger.NewMonth(2025, time.February))
	require.NoError(t, err)

	require.Len(t, report.Months, 2)

	jan := report.Months[0]
	assert.True(t, jan.Exceeded)
	assert.Equal(t, "50", jan.Contracted.Value.String())
	assert.Equal(t, "62", jan.Consumed.Value.String())

	feb := report.Months[1]
	assert.False(t, feb.Exceeded)
	assert.Equal(t, "50", feb.Contracted.Value.String(), "no carry-over between months")

	// Totals are plain sums
	assert.Equal(t, "100", report.TotalContracted.Value.String())
	assert.Equal(t, "102", report.TotalConsumed.Value.String())
	assert.True(t, report.Exceeded)
}

func TestReport_ManualConsumptionIsAdded(t *testing.T) {
	// Unlike the hour ledger, ticket counts never include manual entries
	// upstream, so the monitor adds them itself.

	mon, mem := newTestMonitor(t)
	c := eventsContract()
	ctx := context.Background()

	require.NoError(t, mem.UpsertMonthlyMetric(ctx, c.ID,
		ledger.NewMonth(2025, time.January), ledger.MustParseDecimal("45")))
	require.NoError(t, mem.AppendRegularization(ctx, ledger.RegularizationRecord{
		ID: "m1", ContractID: c.ID,
		Date: time.Date(2025, time.January, 9, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeManualConsumption, Quantity: ledger.MustParseDecimal("10"),
	}))

	report, err := mon.Report(ctx, c, ledger.NewMonth(2025, time.January))
	require.NoError(t, err)

	jan := report.Months[0]
	assert.Equal(t, "55", jan.Consumed.Value.String())
	assert.True(t, jan.Exceeded)
}

func TestReport_OneOffRaisesContracted(t *testing.T) {
	mon, mem := newTestMonitor(t)
	c := eventsContract()
	ctx := context.Background()

	require.NoError(t, mem.AppendRegularization(ctx, ledger.RegularizationRecord{
		ID: "o1", ContractID: c.ID,
		Date: time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeOneOffPurchase, Quantity: ledger.MustParseDecimal("25")},
	))
	require.NoError(t, mem.UpsertMonthlyMetric(ctx, c.ID,
		ledger.NewMonth(2025, time.January), ledger.MustParseDecimal("60")))

	report, err := mon.Report(ctx, c, ledger.NewMonth(2025, time.January))
	require.NoError(t, err)

	jan := report.Months[0]
	assert.Equal(t, "75", jan.Contracted.Value.String())
	assert.False(t, jan.Exceeded)
}

func TestReport_NoPeriodsIsAContractError(t *testing.T) {
	mon, _ := newTestMonitor(t)
	c := &ledger.Contract{ID: "broken", Unit: ledger.UnitTickets, Family: ledger.FamilyEvents}

	_, err := mon.Report(context.Background(), c, ledger.NewMonth(2025, time.January))
	assert.ErrorIs(t, err, ledger.ErrNoValidityPeriods)
}
