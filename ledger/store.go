/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  Defines the narrow interfaces between the ledger and its collaborators:
  persisted monthly metrics, regularization records, contract configuration,
  synced worklogs, and the shared job-status flags. Fetching worklogs from
  the external tracker, persistence details, and notification delivery all
  live behind these seams.

DESIGN:
  - The balance computation is pure; everything it needs arrives through
    ConsumptionSource and RegularizationSource.
  - Job status (kill switch, bulk-sync progress) is an injected store with
    get/set/clear, NOT a process-wide mutable singleton, so the batch runner
    stays testable without shared process state.

IMPLEMENTATIONS:
  - ledger/store: in-memory, for tests and dev
  - store/sqlite: production persistence

SEE ALSO:
  - balance.go: Consumes the sources
  - api/batch.go: Polls JobStatusStore between contracts
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// READ SIDES - What the balance computation consumes
// =============================================================================

// ConsumptionSource yields the raw, corrected consumption total for one
// calendar month: one figure per (contract, month), upserted by the external
// sync. Months with no row yield zero.
type ConsumptionSource interface {
	MonthlyConsumption(ctx context.Context, contractID string, m Month) (decimal.Decimal, error)
}

// RegularizationSource yields a contract's full regularization history.
type RegularizationSource interface {
	Regularizations(ctx context.Context, contractID string) ([]Regularization, error)
}

// ContractSource yields contract configuration.
type ContractSource interface {
	Contract(ctx context.Context, id string) (*Contract, error)

	// ActiveContracts returns contracts with a validity period covering m,
	// plus contracts whose periods ended earlier but still carry history
	// (the selector decides what to do with them).
	ActiveContracts(ctx context.Context, m Month) ([]*Contract, error)
}

// WorklogSource searches synced worklogs across a client's whole contract
// family for a ticket in a month. Backed by the rows the external sync wrote.
type WorklogSource interface {
	FindWorklogs(ctx context.Context, clientID, ticketID string, m Month) ([]WorklogRef, error)
}

// =============================================================================
// WRITE SIDES
// =============================================================================

// RegularizationStore extends the read side with the two mutations the
// engine performs: appending a new event (closure commit, manual entry) and
// flagging a manual entry as reviewed by duplicate detection.
type RegularizationStore interface {
	RegularizationSource

	// AppendRegularization persists a new event. Fails with
	// ErrDuplicateRegularization if the ID already exists, which is what
	// makes a retried commit harmless.
	AppendRegularization(ctx context.Context, rec RegularizationRecord) error

	// MarkManualReviewed flags a MANUAL_CONSUMPTION entry as reviewed.
	// Advisory: the entry itself is never deleted by the engine.
	MarkManualReviewed(ctx context.Context, id string) error
}

// MetricStore extends ConsumptionSource with the sync collaborator's write
// path. One row per (contract, year, month), upserted.
type MetricStore interface {
	ConsumptionSource

	UpsertMonthlyMetric(ctx context.Context, contractID string, m Month, consumed decimal.Decimal) error
}

// ContractStore extends ContractSource with configuration writes.
type ContractStore interface {
	ContractSource

	SaveContract(ctx context.Context, c *Contract) error

	// TouchSync records when the external sync last completed for a contract.
	TouchSync(ctx context.Context, id string, at time.Time) error
}

// =============================================================================
// JOB STATUS - Shared flags for batch orchestration
// =============================================================================

// JobStatusStore holds process-crossing flags: the sync kill switch and bulk
// run progress. Polled, never pushed; an empty value means "not set".
type JobStatusStore interface {
	GetStatus(ctx context.Context, key string) (string, error)
	SetStatus(ctx context.Context, key, value string) error
	ClearStatus(ctx context.Context, key string) error
}

// Job status keys used by the batch runner.
const (
	StatusKeyKillSwitch   = "sync.kill_switch"
	StatusKeySyncProgress = "sync.progress"
)
