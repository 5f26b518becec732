/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. The taxonomy mirrors how failures behave in
  a closure batch:
  1. Configuration errors - fatal for ONE contract, reported and skipped
  2. Scheduling aborts - cooperative kill-switch stops, not exceptions
  3. Store/input errors - wrapped with %w at the boundary

  The ledger computation itself is pure and deterministic, so nothing here
  is retryable: retrying without new input data cannot change the result.
  Retries belong to the external sync collaborator.

USAGE:
  if errors.Is(err, ledger.ErrNoValidityPeriods) {
      // skip this contract, keep the batch going
  }

SEE ALSO:
  - api/batch.go: Collects per-contract errors into the batch summary
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoValidityPeriods is returned when a contract has no validity
	// periods. Configuration error: fatal for that contract only.
	ErrNoValidityPeriods = errors.New("contract has no validity periods")

	// ErrSyncAborted is returned when the kill switch stopped a contract's
	// external sync. Cooperative abort, not a failure.
	ErrSyncAborted = errors.New("sync aborted by kill switch")

	// ErrAlreadyProcessed is returned when committing a closure for a month
	// that already has a billed excess or an approval marker.
	ErrAlreadyProcessed = errors.New("month already processed")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrDuplicateRegularization is returned when a regularization with the
	// same ID already exists. Expected behavior for retried commits.
	ErrDuplicateRegularization = errors.New("duplicate regularization id")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidCorrectionModel is returned for malformed tier configurations.
	ErrInvalidCorrectionModel = errors.New("invalid correction model")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownTypeError is returned when a persisted regularization carries a type
// string outside the closed six-kind set.
type UnknownTypeError struct {
	Type string
	ID   string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown regularization type %q (id: %s)", e.Type, e.ID)
}

// ContractError ties a failure to the contract it belongs to. The batch
// runner collects these; one contract failing never stops the batch.
type ContractError struct {
	ContractID string
	Err        error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %s: %v", e.ContractID, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var unknownType *UnknownTypeError
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrDuplicateRegularization) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidCorrectionModel) ||
		errors.As(err, &unknownType)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound)
}
