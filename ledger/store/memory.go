// Package store provides in-memory implementations of the ledger's
// collaborator interfaces, for testing and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ContractStore, RegularizationStore, MetricStore,
// WorklogSource and JobStatusStore over plain maps.
type Memory struct {
	mu sync.RWMutex

	contracts       map[string]*ledger.Contract
	regularizations map[string][]ledger.RegularizationRecord // by contract ID
	regIDs          map[string]bool
	metrics         map[metricKey]decimal.Decimal
	worklogs        []ledger.WorklogRef
	status          map[string]string
}

type metricKey struct {
	ContractID string
	Month      ledger.Month
}

func NewMemory() *Memory {
	return &Memory{
		contracts:       make(map[string]*ledger.Contract),
		regularizations: make(map[string][]ledger.RegularizationRecord),
		regIDs:          make(map[string]bool),
		metrics:         make(map[metricKey]decimal.Decimal),
		status:          make(map[string]string),
	}
}

// -----------------------------------------------------------------------------
// ContractStore
// -----------------------------------------------------------------------------

func (m *Memory) Contract(_ context.Context, id string) (*ledger.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, ledger.ErrContractNotFound
	}
	cp := *c
	cp.Periods = append([]ledger.ValidityPeriod(nil), c.Periods...)
	return &cp, nil
}

func (m *Memory) ActiveContracts(_ context.Context, month ledger.Month) ([]*ledger.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*ledger.Contract
	for _, c := range m.contracts {
		if c.ActiveIn(month) {
			cp := *c
			cp.Periods = append([]ledger.ValidityPeriod(nil), c.Periods...)
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveContract(_ context.Context, c *ledger.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	cp.Periods = append([]ledger.ValidityPeriod(nil), c.Periods...)
	m.contracts[c.ID] = &cp
	return nil
}

func (m *Memory) TouchSync(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return ledger.ErrContractNotFound
	}
	c.LastSyncedAt = at
	return nil
}

// -----------------------------------------------------------------------------
// RegularizationStore
// -----------------------------------------------------------------------------

func (m *Memory) Regularizations(_ context.Context, contractID string) ([]ledger.Regularization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.regularizations[contractID]
	regs := make([]ledger.Regularization, 0, len(recs))
	for _, rec := range recs {
		reg, err := ledger.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func (m *Memory) AppendRegularization(_ context.Context, rec ledger.RegularizationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID != "" && m.regIDs[rec.ID] {
		return ledger.ErrDuplicateRegularization
	}

	// Keep each contract's events sorted by date so reads are chronological.
	recs := m.regularizations[rec.ContractID]
	i := sort.Search(len(recs), func(i int) bool {
		return recs[i].Date.After(rec.Date)
	})
	recs = append(recs, ledger.RegularizationRecord{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	m.regularizations[rec.ContractID] = recs

	if rec.ID != "" {
		m.regIDs[rec.ID] = true
	}
	return nil
}

func (m *Memory) MarkManualReviewed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for contractID, recs := range m.regularizations {
		for i, rec := range recs {
			if rec.ID == id && rec.Type == ledger.TypeManualConsumption {
				recs[i].Reviewed = true
				m.regularizations[contractID] = recs
				return nil
			}
		}
	}
	return ledger.ErrContractNotFound
}

// -----------------------------------------------------------------------------
// MetricStore
// -----------------------------------------------------------------------------

func (m *Memory) MonthlyConsumption(_ context.Context, contractID string, month ledger.Month) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.metrics[metricKey{ContractID: contractID, Month: month}]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (m *Memory) UpsertMonthlyMetric(_ context.Context, contractID string, month ledger.Month, consumed decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics[metricKey{ContractID: contractID, Month: month}] = consumed
	return nil
}

// -----------------------------------------------------------------------------
// WorklogSource
// -----------------------------------------------------------------------------

func (m *Memory) AddWorklog(wl ledger.WorklogRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.worklogs = append(m.worklogs, wl)
}

func (m *Memory) SaveWorklog(_ context.Context, wl ledger.WorklogRef) error {
	m.AddWorklog(wl)
	return nil
}

func (m *Memory) FindWorklogs(_ context.Context, clientID, ticketID string, month ledger.Month) ([]ledger.WorklogRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.WorklogRef
	for _, wl := range m.worklogs {
		if wl.ClientID == clientID && wl.TicketID == ticketID && month.Contains(wl.Date) {
			result = append(result, wl)
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// JobStatusStore
// -----------------------------------------------------------------------------

func (m *Memory) GetStatus(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status[key], nil
}

func (m *Memory) SetStatus(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[key] = value
	return nil
}

func (m *Memory) ClearStatus(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.status, key)
	return nil
}

// -----------------------------------------------------------------------------
// Scenario support
// -----------------------------------------------------------------------------

// Reset drops all stored data. Demo scenario loading only.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contracts = make(map[string]*ledger.Contract)
	m.regularizations = make(map[string][]ledger.RegularizationRecord)
	m.regIDs = make(map[string]bool)
	m.metrics = make(map[metricKey]decimal.Decimal)
	m.worklogs = nil
	m.status = make(map[string]string)
	return nil
}
