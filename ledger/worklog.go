package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKLOG - Synced time entry from the external tracker
// =============================================================================

// TicketCategory classifies the external work item a worklog hangs off.
// Duplicate detection only fires for the two bag-backed categories; plain
// tickets are expected to carry manual entries.
type TicketCategory string

const (
	CategoryEstimateBag  TicketCategory = "ESTIMATE_BAG"
	CategoryTMAgainstBag TicketCategory = "TM_AGAINST_BAG"
	CategoryTicket       TicketCategory = "TICKET"
)

// BagBacked reports whether manual entries for this category compete with
// synced worklogs for the same hours.
func (c TicketCategory) BagBacked() bool {
	return c == CategoryEstimateBag || c == CategoryTMAgainstBag
}

// WorklogRef is a synced worklog entry, already corrected and attributed to a
// contract. The sync process that writes these is an external collaborator;
// the engine only reads them for duplicate detection.
type WorklogRef struct {
	ID         string
	ContractID string
	ClientID   string
	TicketID   string
	Date       time.Time
	Hours      decimal.Decimal

	// Manual marks entries that originated from a manual regularization
	// rather than the tracker. Excluded when searching for duplicates of a
	// manual entry, or every manual entry would match itself.
	Manual bool

	Category TicketCategory
}
