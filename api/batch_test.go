package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-ledger/api"
	"github.com/warp/contract-ledger/ledger"
	"github.com/warp/contract-ledger/ledger/store"
)

// fakeSyncer plays the external tracker: fixed figures per contract, with
// optional per-contract failures.
type fakeSyncer struct {
	mu     sync.Mutex
	values map[string]string
	fail   map[string]error
	calls  []string
}

func (f *fakeSyncer) SyncContract(_ context.Context, c *ledger.Contract, _ ledger.Month) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, c.ID)
	if err := f.fail[c.ID]; err != nil {
		return decimal.Zero, err
	}
	return ledger.MustParseDecimal(f.values[c.ID]), nil
}

func newTestRunner(t *testing.T, syncer api.Syncer) (*api.BatchRunner, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewBatchRunner(mem, mem, mem, syncer, log), mem
}

func TestBatchRun_SyncsAllActiveContracts(t *testing.T) {
	// GIVEN: Two active contracts and a tracker with figures for both
	// WHEN: Running a bulk sync for January
	// THEN: Both metrics land in the store, sync timestamps move, and the
	//       progress key is cleared at the end

	syncer := &fakeSyncer{values: map[string]string{"bag-a": "12.5", "bag-b": "9"}}
	runner, mem := newTestRunner(t, syncer)
	ctx := context.Background()
	target := ledger.NewMonth(2025, time.January)

	a := seedBag(t, mem, "bag-a")
	seedBag(t, mem, "bag-b")
	staleMark := a.LastSyncedAt

	summary, err := runner.Run(ctx, target, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Synced)
	assert.False(t, summary.Aborted)
	assert.Empty(t, summary.Failures)

	consumed, err := mem.MonthlyConsumption(ctx, "bag-a", target)
	require.NoError(t, err)
	assert.Equal(t, "12.5", consumed.String())

	refreshed, err := mem.Contract(ctx, "bag-a")
	require.NoError(t, err)
	assert.False(t, refreshed.LastSyncedAt.Before(staleMark))

	progress, err := mem.GetStatus(ctx, ledger.StatusKeySyncProgress)
	require.NoError(t, err)
	assert.Empty(t, progress)
}

func TestBatchRun_OneFailureDoesNotStopTheRun(t *testing.T) {
	syncer := &fakeSyncer{
		values: map[string]string{"bag-a": "12.5", "bag-b": "9"},
		fail:   map[string]error{"bag-b": errors.New("tracker timeout")},
	}
	runner, mem := newTestRunner(t, syncer)
	ctx := context.Background()

	seedBag(t, mem, "bag-a")
	seedBag(t, mem, "bag-b")

	summary, err := runner.Run(ctx, ledger.NewMonth(2025, time.January), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Synced)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "bag-b", summary.Failures[0].ContractID)
	assert.Contains(t, summary.Failures[0].Err.Error(), "tracker timeout")
}

func TestBatchRun_KillSwitchAbortsBeforeDispatch(t *testing.T) {
	// GIVEN: The kill switch engaged before the run starts
	// THEN: No contract is synced, and the summary says so alongside the
	//       sentinel error

	syncer := &fakeSyncer{values: map[string]string{"bag-a": "12.5"}}
	runner, mem := newTestRunner(t, syncer)
	ctx := context.Background()

	seedBag(t, mem, "bag-a")
	require.NoError(t, mem.SetStatus(ctx, ledger.StatusKeyKillSwitch, "on"))

	summary, err := runner.Run(ctx, ledger.NewMonth(2025, time.January), nil)
	assert.ErrorIs(t, err, ledger.ErrSyncAborted)

	assert.True(t, summary.Aborted)
	assert.Zero(t, summary.Synced)
	assert.Empty(t, syncer.calls)
}

func TestBatchRun_ExplicitIDs(t *testing.T) {
	syncer := &fakeSyncer{values: map[string]string{"bag-a": "12.5", "bag-b": "9"}}
	runner, mem := newTestRunner(t, syncer)
	ctx := context.Background()
	target := ledger.NewMonth(2025, time.January)

	seedBag(t, mem, "bag-a")
	seedBag(t, mem, "bag-b")

	summary, err := runner.Run(ctx, target, []string{"bag-b"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, []string{"bag-b"}, syncer.calls)

	// An unknown ID fails the whole request up front: the caller named it,
	// so silently skipping would hide a typo.
	_, err = runner.Run(ctx, target, []string{"ghost"})
	assert.ErrorIs(t, err, ledger.ErrContractNotFound)
}

// flakyStatusStore fails every status write while leaving reads intact.
type flakyStatusStore struct {
	*store.Memory
}

func (f *flakyStatusStore) SetStatus(context.Context, string, string) error {
	return errors.New("status table locked")
}

func (f *flakyStatusStore) ClearStatus(context.Context, string) error {
	return errors.New("status table locked")
}

func TestBatchRun_BrokenStatusStoreIsLoggedNotFatal(t *testing.T) {
	// GIVEN: A status store that rejects every write
	// THEN: The run still syncs everything, and the failed progress writes
	//       show up in the log instead of vanishing

	syncer := &fakeSyncer{values: map[string]string{"bag-a": "12.5"}}
	mem := store.NewMemory()
	var logged bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logged, nil))
	runner := api.NewBatchRunner(mem, mem, &flakyStatusStore{Memory: mem}, syncer, log)

	seedBag(t, mem, "bag-a")

	summary, err := runner.Run(context.Background(), ledger.NewMonth(2025, time.January), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Synced)
	assert.Contains(t, logged.String(), "progress update failed")
	assert.Contains(t, logged.String(), "progress clear failed")
}

func TestBatchRun_NoSyncerConfigured(t *testing.T) {
	runner, mem := newTestRunner(t, nil)
	ctx := context.Background()

	seedBag(t, mem, "bag-a")

	summary, err := runner.Run(ctx, ledger.NewMonth(2025, time.January), nil)
	require.NoError(t, err)

	assert.Zero(t, summary.Synced)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Err.Error(), "no syncer configured")
}
