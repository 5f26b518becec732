/*
batch.go - Bulk sync runner and closure scheduler

PURPOSE:
  Two background orchestrations:

  BatchRunner pulls fresh consumption figures from the external tracker for
  every active contract, through a bounded worker pool. The shared kill
  switch (JobStatusStore) is polled before EACH contract is dispatched:
  engaging it aborts the remainder of the run but never an in-flight
  contract, so no contract is left with a half-written month.

  ClosureScheduler periodically runs the monthly closure for the month that
  just ended and logs the outcome. It commits nothing: committing is an
  operator decision behind POST /api/closures/commit.

FAILURE MODEL:
  One contract failing to sync is recorded with its ID and the run
  continues. Progress is written to the status store as "done/total" so an
  operator can watch a long run from another process.

USAGE:
  runner := NewBatchRunner(contracts, metrics, status, syncer, log)
  summary, err := runner.Run(ctx, month, nil)

  scheduler := NewClosureScheduler(selector, log)
  scheduler.Start()
  defer scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSync and kill-switch endpoints
  - ledger/store.go: JobStatusStore and its keys
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/ledger"
)

// Syncer pulls one contract's corrected consumption figure for a month from
// the external tracker.
type Syncer interface {
	SyncContract(ctx context.Context, c *ledger.Contract, m ledger.Month) (decimal.Decimal, error)
}

// =============================================================================
// BATCH RUNNER
// =============================================================================

// BatchSummary reports a bulk sync run.
type BatchSummary struct {
	Total    int
	Synced   int
	Aborted  bool
	Failures []*ledger.ContractError
}

// BatchRunner syncs contracts through a bounded worker pool.
type BatchRunner struct {
	Contracts ledger.ContractStore
	Metrics   ledger.MetricStore
	Status    ledger.JobStatusStore
	Syncer    Syncer
	Workers   int
	Log       *slog.Logger
}

// NewBatchRunner wires a runner with the default pool size.
func NewBatchRunner(contracts ledger.ContractStore, metrics ledger.MetricStore, status ledger.JobStatusStore, syncer Syncer, log *slog.Logger) *BatchRunner {
	return &BatchRunner{
		Contracts: contracts,
		Metrics:   metrics,
		Status:    status,
		Syncer:    syncer,
		Workers:   4,
		Log:       log,
	}
}

// Run syncs the given contracts (all active ones when ids is empty) for the
// target month. Returns ErrSyncAborted when the kill switch cut the run
// short; the summary is valid either way.
func (b *BatchRunner) Run(ctx context.Context, target ledger.Month, ids []string) (*BatchSummary, error) {
	contracts, err := b.resolve(ctx, target, ids)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Total: len(contracts)}
	if len(contracts) == 0 {
		return summary, nil
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int
	)
	jobs := make(chan *ledger.Contract)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				err := b.syncOne(ctx, c, target)

				mu.Lock()
				done++
				if err != nil {
					summary.Failures = append(summary.Failures,
						&ledger.ContractError{ContractID: c.ID, Err: err})
				} else {
					summary.Synced++
				}
				progress := fmt.Sprintf("%d/%d", done, summary.Total)
				mu.Unlock()

				if err := b.Status.SetStatus(ctx, ledger.StatusKeySyncProgress, progress); err != nil {
					b.Log.Error("progress update failed", "progress", progress, "error", err)
				}
			}
		}()
	}

	// The dispatcher, not the workers, honors the kill switch: an engaged
	// switch stops new contracts from starting but lets in-flight ones
	// finish cleanly.
	for _, c := range contracts {
		killed, err := b.killSwitchEngaged(ctx)
		if err != nil {
			b.Log.Error("kill switch check failed", "error", err)
		}
		if killed || ctx.Err() != nil {
			summary.Aborted = true
			break
		}
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	if err := b.Status.ClearStatus(ctx, ledger.StatusKeySyncProgress); err != nil {
		b.Log.Error("progress clear failed", "error", err)
	}

	b.Log.Info("bulk sync finished",
		"month", target,
		"total", summary.Total,
		"synced", summary.Synced,
		"failed", len(summary.Failures),
		"aborted", summary.Aborted)

	if summary.Aborted {
		return summary, ledger.ErrSyncAborted
	}
	return summary, nil
}

func (b *BatchRunner) resolve(ctx context.Context, target ledger.Month, ids []string) ([]*ledger.Contract, error) {
	if len(ids) == 0 {
		contracts, err := b.Contracts.ActiveContracts(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("list active contracts: %w", err)
		}
		return contracts, nil
	}

	contracts := make([]*ledger.Contract, 0, len(ids))
	for _, id := range ids {
		c, err := b.Contracts.Contract(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load contract %s: %w", id, err)
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func (b *BatchRunner) syncOne(ctx context.Context, c *ledger.Contract, target ledger.Month) error {
	if b.Syncer == nil {
		return fmt.Errorf("no syncer configured")
	}

	consumed, err := b.Syncer.SyncContract(ctx, c, target)
	if err != nil {
		return fmt.Errorf("sync %s: %w", c.ID, err)
	}

	if err := b.Metrics.UpsertMonthlyMetric(ctx, c.ID, target, consumed); err != nil {
		return fmt.Errorf("save metric for %s: %w", c.ID, err)
	}
	if err := b.Contracts.TouchSync(ctx, c.ID, time.Now()); err != nil {
		return fmt.Errorf("touch sync for %s: %w", c.ID, err)
	}
	return nil
}

func (b *BatchRunner) killSwitchEngaged(ctx context.Context) (bool, error) {
	value, err := b.Status.GetStatus(ctx, ledger.StatusKeyKillSwitch)
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// =============================================================================
// CLOSURE SCHEDULER
// =============================================================================

// ClosureScheduler periodically runs the closure for the month that just
// ended and logs the outcome for operators.
type ClosureScheduler struct {
	Selector      *closure.Selector
	CheckInterval time.Duration
	Enabled       bool
	Log           *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewClosureScheduler creates a scheduler with the default interval.
func NewClosureScheduler(selector *closure.Selector, log *slog.Logger) *ClosureScheduler {
	return &ClosureScheduler{
		Selector:      selector,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (cs *ClosureScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Log.Info("closure scheduler disabled, not starting")
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.wg.Add(1)

	go cs.run()

	cs.Log.Info("closure scheduler started", "interval", cs.CheckInterval)
}

// Stop stops the scheduler.
func (cs *ClosureScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.Log.Info("closure scheduler stopped")
	}
}

func (cs *ClosureScheduler) run() {
	defer cs.wg.Done()

	// Run immediately on start
	cs.checkAndRun()

	for {
		select {
		case <-cs.ticker.C:
			cs.checkAndRun()
		case <-cs.stop:
			return
		}
	}
}

// RunNow triggers an immediate run (for testing/admin).
func (cs *ClosureScheduler) RunNow() {
	cs.checkAndRun()
}

func (cs *ClosureScheduler) checkAndRun() {
	ctx := context.Background()
	now := time.Now()
	target := ledger.MonthOf(now).Add(-1)

	result, err := cs.Selector.Run(ctx, target, now)
	if err != nil {
		cs.Log.Error("scheduled closure run failed", "month", target, "error", err)
		return
	}

	cs.Log.Info("scheduled closure run",
		"month", target,
		"candidates", len(result.Candidates),
		"processed", len(result.Processed),
		"events", len(result.Events),
		"errors", len(result.Errors))

	for _, c := range result.Candidates {
		if c.NeedsPO {
			cs.Log.Warn("candidate needs purchase order",
				"contract", c.ContractID, "suggested", c.Suggested.Value)
		}
	}
	for _, e := range result.Errors {
		cs.Log.Error("contract failed in scheduled closure",
			"contract", e.ContractID, "error", e.Err)
	}
}
