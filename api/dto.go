/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Data Transfer Objects decouple the HTTP wire format from internal domain
  types. Quantities cross the wire as decimal strings ("12.50"), never JSON
  numbers: a float round-trip is exactly the corruption the decimal types
  exist to prevent. Months cross as "YYYY-MM".

SEE ALSO:
  - handlers.go: Uses these DTOs
  - ledger/: Domain types these map to
*/
package api

import (
	"time"

	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/events"
	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// CONTRACT DTOs
// =============================================================================

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID           string      `json:"id"`
	ClientID     string      `json:"client_id"`
	Name         string      `json:"name"`
	Unit         string      `json:"unit"`
	Family       string      `json:"family"`
	BillingMode  string      `json:"billing_mode"`
	Periods      []PeriodDTO `json:"periods"`
	LastSyncedAt string      `json:"last_synced_at,omitempty"`
}

// PeriodDTO represents one validity period.
type PeriodDTO struct {
	Start         string `json:"start"`
	End           string `json:"end"`
	TotalQuantity string `json:"total_quantity"`
	Frequency     string `json:"frequency,omitempty"`
	Rate          string `json:"rate"`
}

func toContractDTO(c *ledger.Contract) ContractDTO {
	dto := ContractDTO{
		ID:          c.ID,
		ClientID:    c.ClientID,
		Name:        c.Name,
		Unit:        string(c.Unit),
		Family:      string(c.Family),
		BillingMode: string(c.Billing),
		Periods:     make([]PeriodDTO, 0, len(c.Periods)),
	}
	if !c.LastSyncedAt.IsZero() {
		dto.LastSyncedAt = c.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	for _, p := range c.Periods {
		dto.Periods = append(dto.Periods, PeriodDTO{
			Start:         p.Start.Format("2006-01-02"),
			End:           p.End.Format("2006-01-02"),
			TotalQuantity: p.Total.Value.String(),
			Frequency:     string(p.Frequency),
			Rate:          p.Rate.String(),
		})
	}
	return dto
}

// =============================================================================
// BALANCE DTOs
// =============================================================================

// MonthEntryDTO is one month's row of a balance statement.
type MonthEntryDTO struct {
	Month       string `json:"month"`
	Contracted  string `json:"contracted"`
	Consumed    string `json:"consumed"`
	Returned    string `json:"returned"`
	Manual      string `json:"manual"`
	Monthly     string `json:"monthly"`
	Accumulated string `json:"accumulated"`
}

// StatementDTO is a contract's full balance statement through a target month.
type StatementDTO struct {
	ContractID    string          `json:"contract_id"`
	Target        string          `json:"target"`
	Unit          string          `json:"unit"`
	Opening       string          `json:"opening"`
	Entries       []MonthEntryDTO `json:"entries"`
	Accumulated   string          `json:"accumulated"`
	TargetMonthly string          `json:"target_monthly"`
	Processed     bool            `json:"processed"`
	Invoiced      string          `json:"invoiced"`
}

func toStatementDTO(stmt *ledger.Statement) StatementDTO {
	dto := StatementDTO{
		ContractID:    stmt.ContractID,
		Target:        stmt.Target.String(),
		Unit:          string(stmt.Accumulated.Unit),
		Opening:       stmt.Opening.Value.String(),
		Entries:       make([]MonthEntryDTO, 0, len(stmt.Entries)),
		Accumulated:   stmt.Accumulated.Value.String(),
		TargetMonthly: stmt.TargetMonthly.Value.String(),
		Processed:     stmt.Processed,
		Invoiced:      stmt.Invoiced.Value.String(),
	}
	for _, e := range stmt.Entries {
		dto.Entries = append(dto.Entries, MonthEntryDTO{
			Month:       e.Month.String(),
			Contracted:  e.Contracted.Value.String(),
			Consumed:    e.Consumed.Value.String(),
			Returned:    e.Returned.Value.String(),
			Manual:      e.Manual.Value.String(),
			Monthly:     e.Monthly.Value.String(),
			Accumulated: e.Accumulated.Value.String(),
		})
	}
	return dto
}

// =============================================================================
// CLOSURE DTOs
// =============================================================================

// CandidateDTO is one contract due for billing in the closure run.
type CandidateDTO struct {
	ContractID    string `json:"contract_id"`
	ContractName  string `json:"contract_name"`
	Month         string `json:"month"`
	Suggested     string `json:"suggested"`
	SuggestedCash string `json:"suggested_cash"`
	Due           bool   `json:"due"`
	NeedsPO       bool   `json:"needs_po"`
	NeedsSync     bool   `json:"needs_sync"`
	Accumulated   string `json:"accumulated"`
	TargetMonthly string `json:"target_monthly"`
}

// ProcessedDTO is one contract whose target month is already settled.
type ProcessedDTO struct {
	ContractID   string `json:"contract_id"`
	ContractName string `json:"contract_name"`
	Month        string `json:"month"`
	Invoiced     string `json:"invoiced"`
}

// ContractErrorDTO reports one contract that failed during a run.
type ContractErrorDTO struct {
	ContractID string `json:"contract_id"`
	Error      string `json:"error"`
}

// ClosureResultDTO is the full output of a closure run.
type ClosureResultDTO struct {
	Month      string             `json:"month"`
	Candidates []CandidateDTO     `json:"candidates"`
	Processed  []ProcessedDTO     `json:"processed"`
	Events     []EventsReportDTO  `json:"events"`
	Errors     []ContractErrorDTO `json:"errors"`
}

func toClosureResultDTO(res *closure.Result) ClosureResultDTO {
	dto := ClosureResultDTO{
		Month:      res.Month.String(),
		Candidates: make([]CandidateDTO, 0, len(res.Candidates)),
		Processed:  make([]ProcessedDTO, 0, len(res.Processed)),
		Events:     make([]EventsReportDTO, 0, len(res.Events)),
		Errors:     make([]ContractErrorDTO, 0, len(res.Errors)),
	}
	for _, c := range res.Candidates {
		dto.Candidates = append(dto.Candidates, CandidateDTO{
			ContractID:    c.ContractID,
			ContractName:  c.ContractName,
			Month:         c.Month.String(),
			Suggested:     c.Suggested.Value.String(),
			SuggestedCash: c.SuggestedCash.String(),
			Due:           c.Due,
			NeedsPO:       c.NeedsPO,
			NeedsSync:     c.NeedsSync,
			Accumulated:   c.Accumulated.Value.String(),
			TargetMonthly: c.TargetMonthly.Value.String(),
		})
	}
	for _, p := range res.Processed {
		dto.Processed = append(dto.Processed, ProcessedDTO{
			ContractID:   p.ContractID,
			ContractName: p.ContractName,
			Month:        p.Month.String(),
			Invoiced:     p.Invoiced.Value.String(),
		})
	}
	for _, e := range res.Events {
		dto.Events = append(dto.Events, toEventsReportDTO(e))
	}
	for _, e := range res.Errors {
		dto.Errors = append(dto.Errors, ContractErrorDTO{
			ContractID: e.ContractID,
			Error:      e.Err.Error(),
		})
	}
	return dto
}

// CommitRequest settles one candidate.
type CommitRequest struct {
	ContractID string `json:"contract_id"`
	Month      string `json:"month"`
	Amount     string `json:"amount"`
	Note       string `json:"note,omitempty"`
	Actor      string `json:"actor,omitempty"`
}

// =============================================================================
// EVENTS DTOs
// =============================================================================

// MonthStatusDTO is one month of an events report.
type MonthStatusDTO struct {
	Month      string `json:"month"`
	Contracted string `json:"contracted"`
	Consumed   string `json:"consumed"`
	Exceeded   bool   `json:"exceeded"`
}

// EventsReportDTO is the monitoring report for a ticket-count contract.
type EventsReportDTO struct {
	ContractID      string           `json:"contract_id"`
	ContractName    string           `json:"contract_name"`
	Target          string           `json:"target"`
	Months          []MonthStatusDTO `json:"months"`
	TotalContracted string           `json:"total_contracted"`
	TotalConsumed   string           `json:"total_consumed"`
	Exceeded        bool             `json:"exceeded"`
}

func toEventsReportDTO(r *events.Report) EventsReportDTO {
	dto := EventsReportDTO{
		ContractID:      r.ContractID,
		ContractName:    r.ContractName,
		Target:          r.Target.String(),
		Months:          make([]MonthStatusDTO, 0, len(r.Months)),
		TotalContracted: r.TotalContracted.Value.String(),
		TotalConsumed:   r.TotalConsumed.Value.String(),
		Exceeded:        r.Exceeded,
	}
	for _, m := range r.Months {
		dto.Months = append(dto.Months, MonthStatusDTO{
			Month:      m.Month.String(),
			Contracted: m.Contracted.Value.String(),
			Consumed:   m.Consumed.Value.String(),
			Exceeded:   m.Exceeded,
		})
	}
	return dto
}

// =============================================================================
// REGULARIZATION DTOs
// =============================================================================

// RegularizationDTO is one adjustment event.
type RegularizationDTO struct {
	ID                  string `json:"id"`
	ContractID          string `json:"contract_id"`
	Date                string `json:"date"`
	Type                string `json:"type"`
	Quantity            string `json:"quantity"`
	IsBilled            bool   `json:"is_billed"`
	IsRevenueRecognized bool   `json:"is_revenue_recognized"`
	TicketID            string `json:"ticket_id,omitempty"`
	Reviewed            bool   `json:"reviewed,omitempty"`
	Description         string `json:"description,omitempty"`
	CreatedBy           string `json:"created_by,omitempty"`
}

func toRegularizationDTO(rec ledger.RegularizationRecord) RegularizationDTO {
	return RegularizationDTO{
		ID:                  rec.ID,
		ContractID:          rec.ContractID,
		Date:                rec.Date.Format("2006-01-02"),
		Type:                string(rec.Type),
		Quantity:            rec.Quantity.String(),
		IsBilled:            rec.IsBilled,
		IsRevenueRecognized: rec.IsRevenueRecognized,
		TicketID:            rec.TicketID,
		Reviewed:            rec.Reviewed,
		Description:         rec.Description,
		CreatedBy:           rec.CreatedBy,
	}
}

// CreateRegularizationRequest appends a new adjustment event.
type CreateRegularizationRequest struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Type        string `json:"type"`
	Quantity    string `json:"quantity"`
	IsBilled    bool   `json:"is_billed"`
	TicketID    string `json:"ticket_id,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// DuplicateFlagDTO marks a probable double entry.
type DuplicateFlagDTO struct {
	ContractID       string `json:"contract_id"`
	RegularizationID string `json:"regularization_id"`
	TicketID         string `json:"ticket_id"`
	Month            string `json:"month"`
	QuantityManual   string `json:"quantity_manual"`
	QuantitySynced   string `json:"quantity_synced"`
	ExactMatch       bool   `json:"exact_match"`
	SourceContract   string `json:"source_contract"`
}

func toDuplicateFlagDTO(f closure.DuplicateFlag) DuplicateFlagDTO {
	return DuplicateFlagDTO{
		ContractID:       f.ContractID,
		RegularizationID: f.RegularizationID,
		TicketID:         f.TicketID,
		Month:            f.Month.String(),
		QuantityManual:   f.QuantityManual.String(),
		QuantitySynced:   f.QuantitySynced.String(),
		ExactMatch:       f.ExactMatch,
		SourceContract:   f.SourceContract,
	}
}

// =============================================================================
// METRIC AND CORRECTION DTOs
// =============================================================================

// UpsertMetricRequest writes one month's corrected consumption figure.
type UpsertMetricRequest struct {
	ContractID string `json:"contract_id"`
	Month      string `json:"month"` // YYYY-MM
	Consumed   string `json:"consumed"`
}

// CorrectionPreviewRequest applies a contract's active model to raw values.
type CorrectionPreviewRequest struct {
	ContractID string   `json:"contract_id"`
	AsOf       string   `json:"as_of,omitempty"` // YYYY-MM-DD, default today
	Items      []string `json:"items"`
}

// CorrectionPreviewResponse shows per-item corrections and the total.
type CorrectionPreviewResponse struct {
	ContractID string   `json:"contract_id"`
	Model      string   `json:"model,omitempty"`
	Items      []string `json:"items"`
	Corrected  []string `json:"corrected"`
	Total      string   `json:"total"`
}

// =============================================================================
// ADMIN DTOs
// =============================================================================

// SyncRequest triggers a bulk sync run.
type SyncRequest struct {
	Month       string   `json:"month"` // YYYY-MM
	ContractIDs []string `json:"contract_ids,omitempty"`
}

// BatchSummaryDTO reports a bulk sync run.
type BatchSummaryDTO struct {
	Month    string             `json:"month"`
	Total    int                `json:"total"`
	Synced   int                `json:"synced"`
	Aborted  bool               `json:"aborted"`
	Failures []ContractErrorDTO `json:"failures"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
