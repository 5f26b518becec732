/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates contracts, metrics,
	regularizations and worklogs that demonstrate one feature end to end.

AVAILABLE SCENARIOS:

	recurring-bag:   Quarterly hour bag with a carried-in surplus and a return
	one-off-bag:     Front-loaded audit bag with a one-off top-up
	events-plan:     Ticket-count plan with an exceeded month
	duplicate-entry: Manual hours later synced on a sibling contract

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create contracts via the JSON factory
 3. Seed monthly metrics (the sync write path)
 4. Seed regularizations and worklogs per feature

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "recurring-bag"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The endpoints scenarios feed
  - factory/contract.go: Contract JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "recurring-bag",
		Name:        "Recurring Bag",
		Description: "120h/year quarterly bag with a carried-in surplus, a return, and a March overshoot",
		Category:    "bag",
	},
	{
		ID:          "one-off-bag",
		Name:        "One-Off Bag",
		Description: "Front-loaded 40h audit bag on demand, overshot and topped up mid-period",
		Category:    "bag",
	},
	{
		ID:          "events-plan",
		Name:        "Events Plan",
		Description: "600-ticket plan with an exceeded January and a manual ticket entry",
		Category:    "events",
	},
	{
		ID:          "duplicate-entry",
		Name:        "Duplicate Entry",
		Description: "Manual hours that the sync later landed on a sibling contract",
		Category:    "detection",
	},
}

// scenarioStore is the extra surface scenario loading needs beyond Backend:
// a full wipe and the sync's worklog write path.
type scenarioStore interface {
	Reset(ctx context.Context) error
	SaveWorklog(ctx context.Context, wl ledger.WorklogRef) error
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario wipes the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	demo, ok := any(h.Store).(scenarioStore)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Backend does not support scenarios", nil)
		return
	}

	// Reset first
	if err := demo.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "recurring-bag":
		err = h.loadRecurringBagScenario(ctx)
	case "one-off-bag":
		err = h.loadOneOffBagScenario(ctx)
	case "events-plan":
		err = h.loadEventsPlanScenario(ctx)
	case "duplicate-entry":
		err = h.loadDuplicateEntryScenario(ctx, demo)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// scenarioYear anchors all demo data so closures and balances land in the
// year the operator is looking at.
func scenarioYear() int { return time.Now().UTC().Year() }

func (h *Handler) loadContract(ctx context.Context, definition string) error {
	contract, model, err := h.Factory.ParseContract(definition)
	if err != nil {
		return err
	}
	if err := h.Store.SaveContract(ctx, contract); err != nil {
		return err
	}
	if model != nil {
		return h.saveEmbeddedModel(ctx, contract, model)
	}
	return nil
}

func (h *Handler) seedMetric(ctx context.Context, contractID string, m ledger.Month, consumed string) error {
	return h.Store.UpsertMonthlyMetric(ctx, contractID, m, ledger.MustParseDecimal(consumed))
}

// loadRecurringBagScenario: the bread-and-butter contract. 10h/month quota,
// a 3h surplus carried in from the previous engagement, January overshoot,
// a February return, and a March overshoot that makes the quarterly closure
// interesting.
func (h *Handler) loadRecurringBagScenario(ctx context.Context) error {
	year := scenarioYear()

	definition := fmt.Sprintf(`{
		"id": "demo-acme-bag",
		"client_id": "acme",
		"name": "ACME support bag %d",
		"unit": "HOURS",
		"family": "BAG",
		"billing_mode": "RECURRING",
		"periods": [{
			"start": "%d-01-01",
			"end": "%d-12-31",
			"total_quantity": "120",
			"frequency": "QUARTERLY",
			"rate": "85.00"
		}],
		"correction_model": {
			"name": "standard",
			"tiers": [
				{"max": "10", "mode": "PASSTHROUGH"},
				{"max": "20", "mode": "ADD", "value": "2"},
				{"mode": "FIXED", "value": "15"}
			]
		}
	}`, year, year, year)
	if err := h.loadContract(ctx, definition); err != nil {
		return err
	}

	// Surplus settled with the previous engagement, carried into January.
	if err := h.Store.AppendRegularization(ctx, ledger.RegularizationRecord{
		ID: "demo-bag-surplus", ContractID: "demo-acme-bag",
		Date:        time.Date(year-1, time.December, 20, 0, 0, 0, 0, time.UTC),
		Type:        ledger.TypePriorSurplus,
		Quantity:    ledger.MustParseDecimal("3"),
		IsBilled:    true,
		Description: "surplus carried over from the previous engagement",
		CreatedBy:   "demo",
	}); err != nil {
		return err
	}

	// A cancelled onsite gives two hours back in February.
	if err := h.Store.AppendRegularization(ctx, ledger.RegularizationRecord{
		ID: "demo-bag-return", ContractID: "demo-acme-bag",
		Date:        time.Date(year, time.February, 14, 0, 0, 0, 0, time.UTC),
		Type:        ledger.TypeReturn,
		Quantity:    ledger.MustParseDecimal("2"),
		Description: "onsite visit cancelled by client",
		CreatedBy:   "demo",
	}); err != nil {
		return err
	}

	for m, consumed := range map[time.Month]string{
		time.January:  "12",
		time.February: "8",
		time.March:    "14",
	} {
		if err := h.seedMetric(ctx, "demo-acme-bag", ledger.NewMonth(year, m), consumed); err != nil {
			return err
		}
	}
	return nil
}

// loadOneOffBagScenario: a front-loaded audit engagement. The whole 40h
// quota lands in March; overshooting it forces a one-off top-up and, being
// ON_DEMAND, any billing needs a purchase order first.
func (h *Handler) loadOneOffBagScenario(ctx context.Context) error {
	year := scenarioYear()

	definition := fmt.Sprintf(`{
		"id": "demo-acme-audit",
		"client_id": "acme",
		"name": "ACME security audit",
		"unit": "HOURS",
		"family": "BAG",
		"billing_mode": "ONE_OFF",
		"periods": [{
			"start": "%d-03-01",
			"end": "%d-06-30",
			"total_quantity": "40",
			"frequency": "ON_DEMAND",
			"rate": "95.00"
		}]
	}`, year, year)
	if err := h.loadContract(ctx, definition); err != nil {
		return err
	}

	// Scope grew mid-engagement: ten extra hours bought in April.
	if err := h.Store.AppendRegularization(ctx, ledger.RegularizationRecord{
		ID: "demo-audit-topup", ContractID: "demo-acme-audit",
		Date:        time.Date(year, time.April, 5, 0, 0, 0, 0, time.UTC),
		Type:        ledger.TypeOneOffPurchase,
		Quantity:    ledger.MustParseDecimal("10"),
		Description: "extra scope approved by client",
		CreatedBy:   "demo",
	}); err != nil {
		return err
	}

	for m, consumed := range map[time.Month]string{
		time.March: "45",
		time.April: "8",
	} {
		if err := h.seedMetric(ctx, "demo-acme-audit", ledger.NewMonth(year, m), consumed); err != nil {
			return err
		}
	}
	return nil
}

// loadEventsPlanScenario: ticket counts, judged month by month with no
// carry-over. January blows through its 50, February behaves, and one batch
// of tickets arrives as a manual entry.
func (h *Handler) loadEventsPlanScenario(ctx context.Context) error {
	year := scenarioYear()

	definition := fmt.Sprintf(`{
		"id": "demo-acme-events",
		"client_id": "acme",
		"name": "ACME ticket plan",
		"unit": "TICKETS",
		"family": "EVENTS",
		"periods": [{
			"start": "%d-01-01",
			"end": "%d-12-31",
			"total_quantity": "600"
		}]
	}`, year, year)
	if err := h.loadContract(ctx, definition); err != nil {
		return err
	}

	// Tickets filed by phone, counted by hand.
	if err := h.Store.AppendRegularization(ctx, ledger.RegularizationRecord{
		ID: "demo-events-manual", ContractID: "demo-acme-events",
		Date:        time.Date(year, time.February, 9, 0, 0, 0, 0, time.UTC),
		Type:        ledger.TypeManualConsumption,
		Quantity:    ledger.MustParseDecimal("15"),
		Description: "phone tickets logged manually",
		CreatedBy:   "demo",
	}); err != nil {
		return err
	}

	for m, consumed := range map[time.Month]string{
		time.January:  "62",
		time.February: "30",
	} {
		if err := h.seedMetric(ctx, "demo-acme-events", ledger.NewMonth(year, m), consumed); err != nil {
			return err
		}
	}
	return nil
}

// loadDuplicateEntryScenario: the double-counting trap. Hours were entered
// manually against the bag, then the sync landed the same ticket's hours on
// the client's dedicated contract - an exact match and a near miss.
func (h *Handler) loadDuplicateEntryScenario(ctx context.Context, demo scenarioStore) error {
	year := scenarioYear()

	definition := fmt.Sprintf(`{
		"id": "demo-acme-bag",
		"client_id": "acme",
		"name": "ACME support bag %d",
		"unit": "HOURS",
		"family": "BAG",
		"billing_mode": "RECURRING",
		"periods": [{
			"start": "%d-01-01",
			"end": "%d-12-31",
			"total_quantity": "120",
			"frequency": "QUARTERLY",
			"rate": "85.00"
		}]
	}`, year, year, year)
	if err := h.loadContract(ctx, definition); err != nil {
		return err
	}

	manual := []ledger.RegularizationRecord{
		{
			ID: "demo-dup-exact", ContractID: "demo-acme-bag",
			Date:        time.Date(year, time.January, 20, 0, 0, 0, 0, time.UTC),
			Type:        ledger.TypeManualConsumption,
			Quantity:    ledger.MustParseDecimal("4"),
			TicketID:    "TCK-1042",
			Description: "incident handled before the sync ran",
			CreatedBy:   "demo",
		},
		{
			ID: "demo-dup-near", ContractID: "demo-acme-bag",
			Date:        time.Date(year, time.January, 24, 0, 0, 0, 0, time.UTC),
			Type:        ledger.TypeManualConsumption,
			Quantity:    ledger.MustParseDecimal("3"),
			TicketID:    "TCK-1043",
			Description: "estimate entered by hand",
			CreatedBy:   "demo",
		},
	}
	for _, rec := range manual {
		if err := h.Store.AppendRegularization(ctx, rec); err != nil {
			return err
		}
	}

	synced := []ledger.WorklogRef{
		{
			ID: "demo-wl-exact", ContractID: "demo-acme-dedicated", ClientID: "acme",
			TicketID: "TCK-1042",
			Date:     time.Date(year, time.January, 22, 0, 0, 0, 0, time.UTC),
			Hours:    ledger.MustParseDecimal("4"),
			Category: ledger.CategoryTMAgainstBag,
		},
		{
			ID: "demo-wl-near", ContractID: "demo-acme-dedicated", ClientID: "acme",
			TicketID: "TCK-1043",
			Date:     time.Date(year, time.January, 27, 0, 0, 0, 0, time.UTC),
			Hours:    ledger.MustParseDecimal("5.5"),
			Category: ledger.CategoryEstimateBag,
		},
	}
	for _, wl := range synced {
		if err := demo.SaveWorklog(ctx, wl); err != nil {
			return err
		}
	}
	return nil
}
