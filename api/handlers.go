/*
handlers.go - HTTP API handlers for the contract ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                        List contracts active in a month
    POST   /api/contracts                        Create contract from JSON
    GET    /api/contracts/{id}                   Get contract details
    GET    /api/contracts/{id}/balance           Balance statement through a month
    GET    /api/contracts/{id}/regularizations   Adjustment history
    POST   /api/contracts/{id}/regularizations   Append an adjustment
    GET    /api/contracts/{id}/duplicates        Run duplicate detection

  Closures:
    GET    /api/closures                         Run the monthly closure
    POST   /api/closures/commit                  Settle one candidate

  Corrections:
    POST   /api/corrections/preview              Apply the active model to items

  Metrics:
    POST   /api/metrics                          Upsert a monthly consumption figure

  Admin:
    POST   /api/admin/sync                       Trigger a bulk sync run
    GET    /api/admin/sync/status                Bulk sync progress
    PUT    /api/admin/killswitch                 Engage the sync kill switch
    DELETE /api/admin/killswitch                 Release the kill switch

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Contract not found
  - 409: Conflict (month already processed, duplicate event)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - batch.go: Bulk sync runner behind the admin endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/factory"
	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the storage surface the API needs. Satisfied by both the
// in-memory store and the SQLite store.
type Backend interface {
	ledger.ContractStore
	ledger.RegularizationStore
	ledger.MetricStore
	ledger.WorklogSource
	ledger.JobStatusStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Backend
	Factory  *factory.ContractFactory
	Selector *closure.Selector
	Detector *closure.Detector
	Batch    *BatchRunner
	Log      *slog.Logger

	// Corrections is nil when the backend has no model storage.
	Corrections closure.CorrectionSource

	currentScenario string
}

// NewHandler wires a handler over the given backend. The syncer may be nil;
// the bulk sync endpoint then reports every contract as failed.
func NewHandler(store Backend, syncer Syncer, log *slog.Logger) *Handler {
	h := &Handler{
		Store:    store,
		Factory:  factory.NewContractFactory(),
		Selector: closure.NewSelector(store, store, store),
		Detector: &closure.Detector{
			Contracts:       store,
			Regularizations: store,
			Worklogs:        store,
		},
		Log: log,
	}
	h.Batch = NewBatchRunner(store, store, store, syncer, log)
	if cs, ok := any(store).(closure.CorrectionSource); ok {
		h.Corrections = cs
	}
	return h
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns contracts active in the requested month.
// GET /api/contracts?month=2025-03
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, "month", ledger.MonthOf(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	contracts, err := h.Store.ActiveContracts(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, 0, len(contracts))
	for _, c := range contracts {
		dtos = append(dtos, toContractDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract parses a JSON definition and persists it.
// POST /api/contracts
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var cfg factory.ContractJSON
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	contract, model, err := h.Factory.Build(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract definition", err)
		return
	}

	if err := h.Store.SaveContract(r.Context(), contract); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save contract", err)
		return
	}

	if model != nil {
		if err := h.saveEmbeddedModel(r.Context(), contract, model); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save correction model", err)
			return
		}
	}

	h.Log.Info("contract created", "contract", contract.ID, "family", contract.Family)
	writeJSON(w, http.StatusCreated, toContractDTO(contract))
}

// modelAdmin is the optional write side for correction models. The SQLite
// store implements it; a backend without it cannot persist models arriving
// embedded in contract definitions.
type modelAdmin interface {
	SaveCorrectionModel(ctx context.Context, model *closure.CorrectionModel, isDefault bool) error
	AssignCorrectionModel(ctx context.Context, contractID, modelID string, from time.Time) error
}

func (h *Handler) saveEmbeddedModel(ctx context.Context, contract *ledger.Contract, model *closure.CorrectionModel) error {
	admin, ok := any(h.Store).(modelAdmin)
	if !ok {
		h.Log.Warn("backend has no correction-model storage, embedded model dropped",
			"contract", contract.ID)
		return nil
	}

	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if err := admin.SaveCorrectionModel(ctx, model, false); err != nil {
		return err
	}

	from := time.Time{}
	if first, ok := contract.FirstPeriod(); ok {
		from = first.Start
	}
	return admin.AssignCorrectionModel(ctx, contract.ID, model.ID, from)
}

// GetContract returns a single contract.
// GET /api/contracts/{id}
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.Store.Contract(r.Context(), id)
	if errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contract", err)
		return
	}

	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// GetBalance returns the balance statement through the target month.
// GET /api/contracts/{id}/balance?month=2025-03
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	month, err := monthParam(r, "month", ledger.MonthOf(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	c, err := h.Store.Contract(r.Context(), id)
	if errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contract", err)
		return
	}

	stmt, err := h.Selector.Calc.Statement(r.Context(), c, month)
	if err != nil {
		status := http.StatusInternalServerError
		if ledger.IsClientError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatementDTO(stmt))
}

// =============================================================================
// REGULARIZATION HANDLERS
// =============================================================================

// ListRegularizations returns a contract's adjustment history.
// GET /api/contracts/{id}/regularizations
func (h *Handler) ListRegularizations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.Contract(r.Context(), id); errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contract", err)
		return
	}

	regs, err := h.Store.Regularizations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list regularizations", err)
		return
	}

	dtos := make([]RegularizationDTO, 0, len(regs))
	for _, reg := range regs {
		dtos = append(dtos, toRegularizationDTO(ledger.ToRecord(id, reg)))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRegularization appends an adjustment event.
// POST /api/contracts/{id}/regularizations
func (h *Handler) CreateRegularization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CreateRegularizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if _, err := h.Store.Contract(r.Context(), id); errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contract", err)
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}

	rec := ledger.RegularizationRecord{
		ID:          uuid.NewString(),
		ContractID:  id,
		Date:        date,
		Type:        ledger.RegularizationType(req.Type),
		Quantity:    quantity,
		IsBilled:    req.IsBilled,
		TicketID:    req.TicketID,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}

	// Reject unknown types before they reach the store.
	if _, err := ledger.FromRecord(rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid regularization type", err)
		return
	}

	if err := h.Store.AppendRegularization(r.Context(), rec); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ledger.ErrDuplicateRegularization) {
			status = http.StatusConflict
		}
		writeError(w, status, "Failed to append regularization", err)
		return
	}

	h.Log.Info("regularization appended",
		"contract", id, "type", rec.Type, "quantity", rec.Quantity)
	writeJSON(w, http.StatusCreated, toRegularizationDTO(rec))
}

// DetectDuplicates runs the duplicate-consumption detector for a contract.
// GET /api/contracts/{id}/duplicates
func (h *Handler) DetectDuplicates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flags, err := h.Detector.Detect(r.Context(), id)
	if errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Duplicate detection failed", err)
		return
	}

	dtos := make([]DuplicateFlagDTO, 0, len(flags))
	for _, f := range flags {
		dtos = append(dtos, toDuplicateFlagDTO(f))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CLOSURE HANDLERS
// =============================================================================

// RunClosure computes the closure result for a month.
// GET /api/closures?month=2025-03
func (h *Handler) RunClosure(w http.ResponseWriter, r *http.Request) {
	// Default: the month that just ended.
	month, err := monthParam(r, "month", ledger.MonthOf(time.Now()).Add(-1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	result, err := h.Selector.Run(r.Context(), month, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Closure run failed", err)
		return
	}

	h.Log.Info("closure run",
		"month", month,
		"candidates", len(result.Candidates),
		"processed", len(result.Processed),
		"errors", len(result.Errors))
	writeJSON(w, http.StatusOK, toClosureResultDTO(result))
}

// CommitClosure settles one candidate for the month.
// POST /api/closures/commit
func (h *Handler) CommitClosure(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	month, err := parseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	if amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must not be negative", nil)
		return
	}

	rec, err := h.Selector.Commit(r.Context(), req.ContractID, month, amount, req.Note, req.Actor)
	if errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	}
	if errors.Is(err, ledger.ErrAlreadyProcessed) {
		writeError(w, http.StatusConflict, "Month already processed", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Commit failed", err)
		return
	}

	h.Log.Info("closure committed",
		"contract", req.ContractID, "month", month, "amount", amount)
	writeJSON(w, http.StatusCreated, toRegularizationDTO(rec))
}

// =============================================================================
// CORRECTION HANDLERS
// =============================================================================

// PreviewCorrection applies a contract's active correction model to raw
// per-item values without persisting anything.
// POST /api/corrections/preview
func (h *Handler) PreviewCorrection(w http.ResponseWriter, r *http.Request) {
	var req CorrectionPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	asOf := time.Now()
	if req.AsOf != "" {
		var err error
		asOf, err = time.ParseInLocation("2006-01-02", req.AsOf, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
			return
		}
	}

	var model *closure.CorrectionModel
	if h.Corrections != nil {
		var err error
		model, err = h.Corrections.ActiveModel(r.Context(), req.ContractID, asOf)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to resolve correction model", err)
			return
		}
	}

	resp := CorrectionPreviewResponse{
		ContractID: req.ContractID,
		Items:      req.Items,
		Corrected:  make([]string, 0, len(req.Items)),
	}
	if model != nil {
		resp.Model = model.Name
	}

	total := decimal.Zero
	for _, item := range req.Items {
		raw, err := decimal.NewFromString(item)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid item value", err)
			return
		}
		corrected := model.Apply(raw)
		resp.Corrected = append(resp.Corrected, corrected.String())
		total = total.Add(corrected)
	}
	resp.Total = total.String()

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// METRIC HANDLERS
// =============================================================================

// UpsertMetric writes one month's corrected consumption figure. This is the
// write path the external sync uses.
// POST /api/metrics
func (h *Handler) UpsertMetric(w http.ResponseWriter, r *http.Request) {
	var req UpsertMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	month, err := parseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	consumed, err := decimal.NewFromString(req.Consumed)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consumed value", err)
		return
	}

	if _, err := h.Store.Contract(r.Context(), req.ContractID); errors.Is(err, ledger.ErrContractNotFound) {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contract", err)
		return
	}

	if err := h.Store.UpsertMonthlyMetric(r.Context(), req.ContractID, month, consumed); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save metric", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSync runs a bulk sync for the month, synchronously.
// POST /api/admin/sync
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	month, err := parseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	summary, err := h.Batch.Run(r.Context(), month, req.ContractIDs)
	if err != nil && !errors.Is(err, ledger.ErrSyncAborted) {
		writeError(w, http.StatusInternalServerError, "Sync run failed", err)
		return
	}

	dto := BatchSummaryDTO{
		Month:    month.String(),
		Total:    summary.Total,
		Synced:   summary.Synced,
		Aborted:  summary.Aborted,
		Failures: make([]ContractErrorDTO, 0, len(summary.Failures)),
	}
	for _, f := range summary.Failures {
		dto.Failures = append(dto.Failures, ContractErrorDTO{
			ContractID: f.ContractID,
			Error:      f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// SyncStatus reports bulk sync progress.
// GET /api/admin/sync/status
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Store.GetStatus(r.Context(), ledger.StatusKeySyncProgress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read sync status", err)
		return
	}
	kill, err := h.Store.GetStatus(r.Context(), ledger.StatusKeyKillSwitch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read kill switch", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"progress":    progress,
		"kill_switch": kill,
	})
}

// EngageKillSwitch stops in-flight and future bulk syncs.
// PUT /api/admin/killswitch
func (h *Handler) EngageKillSwitch(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.SetStatus(r.Context(), ledger.StatusKeyKillSwitch, "on"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to engage kill switch", err)
		return
	}
	h.Log.Warn("sync kill switch engaged")
	w.WriteHeader(http.StatusNoContent)
}

// ReleaseKillSwitch re-enables bulk syncs.
// DELETE /api/admin/killswitch
func (h *Handler) ReleaseKillSwitch(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ClearStatus(r.Context(), ledger.StatusKeyKillSwitch); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to release kill switch", err)
		return
	}
	h.Log.Info("sync kill switch released")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// parseMonth parses "YYYY-MM".
func parseMonth(s string) (ledger.Month, error) {
	t, err := time.ParseInLocation("2006-01", s, time.UTC)
	if err != nil {
		return ledger.Month{}, err
	}
	return ledger.NewMonth(t.Year(), t.Month()), nil
}

// monthParam reads an optional month query parameter.
func monthParam(r *http.Request, name string, fallback ledger.Month) (ledger.Month, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return parseMonth(raw)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
