package closure_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/ledger"
	"github.com/warp/contract-ledger/ledger/store"
)

func newTestDetector(t *testing.T) (*closure.Detector, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	det := &closure.Detector{Contracts: mem, Regularizations: mem, Worklogs: mem}
	return det, mem
}

func seedManualEntry(t *testing.T, mem *store.Memory, contractID, ticketID, hours string) {
	t.Helper()
	require.NoError(t, mem.AppendRegularization(context.Background(), ledger.RegularizationRecord{
		ID: "manual-1", ContractID: contractID,
		Date:     time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Type:     ledger.TypeManualConsumption,
		Quantity: ledger.MustParseDecimal(hours),
		TicketID: ticketID,
	}))
}

func TestDetect_FlagsSyncedHoursOnSiblingContract(t *testing.T) {
	// GIVEN: A manual 4h entry for ticket TCK-7, and the sync later landed
	//        4h for the same ticket on a SIBLING contract of the same client
	// WHEN: Running detection
	// THEN: The entry is flagged as an exact match and marked reviewed

	det, mem := newTestDetector(t)
	ctx := context.Background()

	c := bagContract("acme-bag")
	require.NoError(t, mem.SaveContract(ctx, c))
	seedManualEntry(t, mem, c.ID, "TCK-7", "4")

	mem.AddWorklog(ledger.WorklogRef{
		ID: "wl-1", ContractID: "acme-dedicated", ClientID: "acme",
		TicketID: "TCK-7",
		Date:     time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		Hours:    ledger.MustParseDecimal("4"),
		Category: ledger.CategoryTMAgainstBag,
	})

	flags, err := det.Detect(ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, flags, 1)
	flag := flags[0]
	assert.Equal(t, "manual-1", flag.RegularizationID)
	assert.Equal(t, "acme-dedicated", flag.SourceContract)
	assert.True(t, flag.ExactMatch)
	assert.Equal(t, "4", flag.QuantityManual.String())
	assert.Equal(t, "4", flag.QuantitySynced.String())

	// The entry is now reviewed: the next run is quiet.
	flags, err = det.Detect(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDetect_PlainTicketsNeverFlag(t *testing.T) {
	// Plain tickets are EXPECTED to carry manual entries; only bag-backed
	// categories indicate double counting.

	det, mem := newTestDetector(t)
	ctx := context.Background()

	c := bagContract("acme-bag")
	require.NoError(t, mem.SaveContract(ctx, c))
	seedManualEntry(t, mem, c.ID, "TCK-7", "4")

	mem.AddWorklog(ledger.WorklogRef{
		ID: "wl-1", ContractID: "acme-other", ClientID: "acme",
		TicketID: "TCK-7",
		Date:     time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		Hours:    ledger.MustParseDecimal("4"),
		Category: ledger.CategoryTicket,
	})

	flags, err := det.Detect(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDetect_ManualWorklogsExcludedFromSearch(t *testing.T) {
	// A synced entry tagged manual is the mirror of the entry being checked;
	// matching against it would flag every manual entry against itself.

	det, mem := newTestDetector(t)
	ctx := context.Background()

	c := bagContract("acme-bag")
	require.NoError(t, mem.SaveContract(ctx, c))
	seedManualEntry(t, mem, c.ID, "TCK-7", "4")

	mem.AddWorklog(ledger.WorklogRef{
		ID: "wl-1", ContractID: c.ID, ClientID: "acme",
		TicketID: "TCK-7",
		Date:     time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Hours:    ledger.MustParseDecimal("4"),
		Manual:   true,
		Category: ledger.CategoryTMAgainstBag,
	})

	flags, err := det.Detect(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDetect_NearMissIsFlaggedWithoutExactMatch(t *testing.T) {
	det, mem := newTestDetector(t)
	ctx := context.Background()

	c := bagContract("acme-bag")
	require.NoError(t, mem.SaveContract(ctx, c))
	seedManualEntry(t, mem, c.ID, "TCK-7", "4")

	mem.AddWorklog(ledger.WorklogRef{
		ID: "wl-1", ContractID: "acme-dedicated", ClientID: "acme",
		TicketID: "TCK-7",
		Date:     time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		Hours:    ledger.MustParseDecimal("6.5"),
		Category: ledger.CategoryEstimateBag,
	})

	flags, err := det.Detect(ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, flags, 1)
	assert.False(t, flags[0].ExactMatch)
	assert.Equal(t, "6.5", flags[0].QuantitySynced.String())
}

func TestDetect_EntriesWithoutTicketAreSkipped(t *testing.T) {
	det, mem := newTestDetector(t)
	ctx := context.Background()

	c := bagContract("acme-bag")
	require.NoError(t, mem.SaveContract(ctx, c))
	seedManualEntry(t, mem, c.ID, "", "4")

	flags, err := det.Detect(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, flags)
}
