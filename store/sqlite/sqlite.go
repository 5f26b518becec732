/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (ContractStore, RegularizationStore,
  MetricStore, WorklogSource, JobStatusStore, closure.CorrectionSource)
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  contracts:              Contract configuration
  validity_periods:       Dated intervals with totals, frequency, rate
  regularizations:        Typed adjustment events (append + sanctioned flips)
  monthly_metrics:        One corrected consumption figure per contract-month
  correction_models:      Tiered correction models (tiers as JSON)
  correction_assignments: Per-contract model assignments, dated
  worklogs:               Synced tracker entries (read side of dup detection)
  job_status:             Kill switch and bulk-sync progress flags

DECIMALS:
  All quantities, rates and tiers are stored as TEXT and parsed with
  shopspring/decimal. Never REAL: a balance that drifts by binary float
  noise produces wrong invoices.

MUTATION DISCIPLINE:
  Regularizations are append-only except for two sanctioned updates: the
  revenue-recognition billed flip and the duplicate detector's reviewed
  flag. Monthly metrics are upserts keyed by (contract, year, month).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/contracts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-ledger/closure"
	"github.com/warp/contract-ledger/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; the pool must not open a
	// second one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		family TEXT NOT NULL,
		billing_mode TEXT NOT NULL,
		last_synced_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_client
		ON contracts(client_id);

	CREATE TABLE IF NOT EXISTS validity_periods (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_quantity TEXT NOT NULL,
		frequency TEXT NOT NULL DEFAULT '',
		rate TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_periods_contract
		ON validity_periods(contract_id, start_date);

	CREATE TABLE IF NOT EXISTS regularizations (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		is_billed INTEGER NOT NULL DEFAULT 0,
		is_revenue_recognized INTEGER NOT NULL DEFAULT 0,
		ticket_id TEXT NOT NULL DEFAULT '',
		reviewed INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Balance walk hot path: one contract's events in date order
	CREATE INDEX IF NOT EXISTS idx_regularizations_contract_date
		ON regularizations(contract_id, date);
	CREATE INDEX IF NOT EXISTS idx_regularizations_type
		ON regularizations(type);

	CREATE TABLE IF NOT EXISTS monthly_metrics (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		consumed TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (contract_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS correction_models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tiers_json TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS correction_assignments (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		model_id TEXT NOT NULL REFERENCES correction_models(id),
		effective_from TEXT NOT NULL,
		PRIMARY KEY (contract_id, effective_from)
	);

	CREATE TABLE IF NOT EXISTS worklogs (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		ticket_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		manual INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT 'TICKET'
	);

	-- Duplicate detection search path: client family + ticket + month
	CREATE INDEX IF NOT EXISTS idx_worklogs_client_ticket_date
		ON worklogs(client_id, ticket_id, date);

	CREATE TABLE IF NOT EXISTS job_status (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTRACT STORE (ledger.ContractStore interface)
// =============================================================================

// SaveContract upserts a contract and replaces its validity periods.
func (s *Store) SaveContract(ctx context.Context, c *ledger.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lastSynced := ""
	if !c.LastSyncedAt.IsZero() {
		lastSynced = c.LastSyncedAt.UTC().Format(time.RFC3339)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contracts (id, client_id, name, unit, family, billing_mode, last_synced_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			unit = excluded.unit,
			family = excluded.family,
			billing_mode = excluded.billing_mode
	`, c.ID, c.ClientID, c.Name, string(c.Unit), string(c.Family), string(c.Billing),
		nullString(lastSynced), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save contract %s: %w", c.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM validity_periods WHERE contract_id = ?`, c.ID); err != nil {
		return err
	}

	for i, p := range c.Periods {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO validity_periods (id, contract_id, start_date, end_date, total_quantity, frequency, rate)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, fmt.Sprintf("%s-p%d", c.ID, i), c.ID,
			p.Start.UTC().Format(time.RFC3339), p.End.UTC().Format(time.RFC3339),
			p.Total.Value.String(), string(p.Frequency), p.Rate.String())
		if err != nil {
			return fmt.Errorf("save period %d of %s: %w", i, c.ID, err)
		}
	}

	return tx.Commit()
}

// Contract loads one contract with its ordered periods.
func (s *Store) Contract(ctx context.Context, id string) (*ledger.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, name, unit, family, billing_mode, last_synced_at
		FROM contracts WHERE id = ?
	`, id)

	c, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadPeriods(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ActiveContracts returns contracts with a validity period covering the month.
func (s *Store) ActiveContracts(ctx context.Context, m ledger.Month) ([]*ledger.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, name, unit, family, billing_mode, last_synced_at
		FROM contracts ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*ledger.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var active []*ledger.Contract
	for _, c := range all {
		if err := s.loadPeriods(ctx, c); err != nil {
			return nil, err
		}
		if c.ActiveIn(m) {
			active = append(active, c)
		}
	}
	return active, nil
}

// TouchSync records a completed external sync.
func (s *Store) TouchSync(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET last_synced_at = ? WHERE id = ?
	`, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrContractNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*ledger.Contract, error) {
	var c ledger.Contract
	var unit, family, billing string
	var lastSynced sql.NullString

	if err := row.Scan(&c.ID, &c.ClientID, &c.Name, &unit, &family, &billing, &lastSynced); err != nil {
		return nil, err
	}

	c.Unit = ledger.Unit(unit)
	c.Family = ledger.ContractFamily(family)
	c.Billing = ledger.BillingMode(billing)
	if lastSynced.Valid && lastSynced.String != "" {
		t, err := time.Parse(time.RFC3339, lastSynced.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_synced_at for %s: %w", c.ID, err)
		}
		c.LastSyncedAt = t
	}
	return &c, nil
}

func (s *Store) loadPeriods(ctx context.Context, c *ledger.Contract) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_date, end_date, total_quantity, frequency, rate
		FROM validity_periods WHERE contract_id = ? ORDER BY start_date
	`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	c.Periods = nil
	for rows.Next() {
		var startStr, endStr, totalStr, freq, rateStr string
		if err := rows.Scan(&startStr, &endStr, &totalStr, &freq, &rateStr); err != nil {
			return err
		}

		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return fmt.Errorf("bad period start for %s: %w", c.ID, err)
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return fmt.Errorf("bad period end for %s: %w", c.ID, err)
		}
		total, err := decimal.NewFromString(totalStr)
		if err != nil {
			return fmt.Errorf("bad period total for %s: %w", c.ID, err)
		}
		rate, err := decimal.NewFromString(rateStr)
		if err != nil {
			return fmt.Errorf("bad period rate for %s: %w", c.ID, err)
		}

		c.Periods = append(c.Periods, ledger.ValidityPeriod{
			Start:     start,
			End:       end,
			Total:     ledger.Quantity{Value: total, Unit: c.Unit},
			Frequency: ledger.Frequency(freq),
			Rate:      rate,
		})
	}
	return rows.Err()
}

// =============================================================================
// REGULARIZATION STORE (ledger.RegularizationStore interface)
// =============================================================================

// AppendRegularization persists a new event. Fails on duplicate ID.
func (s *Store) AppendRegularization(ctx context.Context, rec ledger.RegularizationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM regularizations WHERE id = ?`, rec.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ledger.ErrDuplicateRegularization
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO regularizations
		(id, contract_id, date, type, quantity, is_billed, is_revenue_recognized,
		 ticket_id, reviewed, description, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ContractID,
		rec.Date.UTC().Format(time.RFC3339),
		string(rec.Type),
		rec.Quantity.String(),
		boolInt(rec.IsBilled), boolInt(rec.IsRevenueRecognized),
		rec.TicketID, boolInt(rec.Reviewed),
		rec.Description, rec.CreatedBy,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append regularization %s: %w", rec.ID, err)
	}
	return nil
}

// Regularizations returns a contract's events in date order, typed.
func (s *Store) Regularizations(ctx context.Context, contractID string) ([]ledger.Regularization, error) {
	recs, err := s.RegularizationRecords(ctx, contractID)
	if err != nil {
		return nil, err
	}

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

// RegularizationRecords returns the flat persisted rows (for the API).
func (s *Store) RegularizationRecords(ctx context.Context, contractID string) ([]ledger.RegularizationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, date, type, quantity, is_billed, is_revenue_recognized,
		       ticket_id, reviewed, description, created_by
		FROM regularizations WHERE contract_id = ? ORDER BY date
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ledger.RegularizationRecord
	for rows.Next() {
		var rec ledger.RegularizationRecord
		var dateStr, typeStr, qtyStr string
		var billed, recognized, reviewed int

		if err := rows.Scan(&rec.ID, &rec.ContractID, &dateStr, &typeStr, &qtyStr,
			&billed, &recognized, &rec.TicketID, &reviewed, &rec.Description, &rec.CreatedBy); err != nil {
			return nil, err
		}

		rec.Date, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad regularization date %s: %w", rec.ID, err)
		}
		rec.Quantity, err = decimal.NewFromString(qtyStr)
		if err != nil {
			return nil, fmt.Errorf("bad regularization quantity %s: %w", rec.ID, err)
		}
		rec.Type = ledger.RegularizationType(typeStr)
		rec.IsBilled = billed != 0
		rec.IsRevenueRecognized = recognized != 0
		rec.Reviewed = reviewed != 0

		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// MarkManualReviewed flags a manual entry as seen by duplicate detection.
func (s *Store) MarkManualReviewed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE regularizations SET reviewed = 1 WHERE id = ? AND type = ?
	`, id, string(ledger.TypeManualConsumption))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrContractNotFound
	}
	return nil
}

// MarkBilled flips an event's billed flag during revenue-recognition
// reconciliation. The only other sanctioned regularization update.
func (s *Store) MarkBilled(ctx context.Context, id string, billed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE regularizations SET is_billed = ? WHERE id = ?
	`, boolInt(billed), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrContractNotFound
	}
	return nil
}

// =============================================================================
// METRIC STORE (ledger.MetricStore interface)
// =============================================================================

// UpsertMonthlyMetric writes the corrected consumption figure for one month.
func (s *Store) UpsertMonthlyMetric(ctx context.Context, contractID string, m ledger.Month, consumed decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_metrics (contract_id, year, month, consumed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(contract_id, year, month) DO UPDATE SET
			consumed = excluded.consumed,
			updated_at = excluded.updated_at
	`, contractID, m.Year, int(m.Month), consumed.String(), time.Now().UTC().Format(time.RFC3339))
	return err
}

// MonthlyConsumption reads one month's figure; missing rows are zero.
func (s *Store) MonthlyConsumption(ctx context.Context, contractID string, m ledger.Month) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var consumedStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT consumed FROM monthly_metrics WHERE contract_id = ? AND year = ? AND month = ?
	`, contractID, m.Year, int(m.Month)).Scan(&consumedStr)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(consumedStr)
}

// =============================================================================
// CORRECTION MODELS (closure.CorrectionSource interface)
// =============================================================================

type tierJSON struct {
	Max   string `json:"max,omitempty"`
	Mode  string `json:"mode"`
	Value string `json:"value,omitempty"`
}

// SaveCorrectionModel persists a model; isDefault marks the global fallback.
func (s *Store) SaveCorrectionModel(ctx context.Context, model *closure.CorrectionModel, isDefault bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tiers := make([]tierJSON, 0, len(model.Tiers))
	for _, t := range model.Tiers {
		tj := tierJSON{Mode: string(t.Mode), Value: t.Value.String()}
		if t.Max != nil {
			tj.Max = t.Max.String()
		}
		tiers = append(tiers, tj)
	}
	tiersRaw, err := json.Marshal(tiers)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO correction_models (id, name, tiers_json, is_default, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tiers_json = excluded.tiers_json,
			is_default = excluded.is_default
	`, model.ID, model.Name, string(tiersRaw), boolInt(isDefault), time.Now().UTC().Format(time.RFC3339))
	return err
}

// AssignCorrectionModel links a contract to a model from a date onward.
func (s *Store) AssignCorrectionModel(ctx context.Context, contractID, modelID string, from time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_assignments (contract_id, model_id, effective_from)
		VALUES (?, ?, ?)
		ON CONFLICT(contract_id, effective_from) DO UPDATE SET model_id = excluded.model_id
	`, contractID, modelID, from.UTC().Format(time.RFC3339))
	return err
}

// ActiveModel resolves the model for a contract at a point in time: the
// latest assignment effective by then, else the global default, else nil.
func (s *Store) ActiveModel(ctx context.Context, contractID string, asOf time.Time) (*closure.CorrectionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var modelID string
	err := s.db.QueryRowContext(ctx, `
		SELECT model_id FROM correction_assignments
		WHERE contract_id = ? AND effective_from <= ?
		ORDER BY effective_from DESC LIMIT 1
	`, contractID, asOf.UTC().Format(time.RFC3339)).Scan(&modelID)

	if err == sql.ErrNoRows {
		err = s.db.QueryRowContext(ctx, `
			SELECT id FROM correction_models WHERE is_default = 1 LIMIT 1
		`).Scan(&modelID)
		if err == sql.ErrNoRows {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	return s.loadModel(ctx, modelID)
}

func (s *Store) loadModel(ctx context.Context, id string) (*closure.CorrectionModel, error) {
	var name, tiersRaw string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, tiers_json FROM correction_models WHERE id = ?
	`, id).Scan(&name, &tiersRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tiers []tierJSON
	if err := json.Unmarshal([]byte(tiersRaw), &tiers); err != nil {
		return nil, fmt.Errorf("bad tiers for model %s: %w", id, err)
	}

	model := &closure.CorrectionModel{ID: id, Name: name}
	for _, tj := range tiers {
		tier := closure.CorrectionTier{Mode: closure.TierMode(tj.Mode)}
		if tj.Max != "" {
			max, err := decimal.NewFromString(tj.Max)
			if err != nil {
				return nil, fmt.Errorf("bad tier max for model %s: %w", id, err)
			}
			tier.Max = &max
		}
		if tj.Value != "" {
			value, err := decimal.NewFromString(tj.Value)
			if err != nil {
				return nil, fmt.Errorf("bad tier value for model %s: %w", id, err)
			}
			tier.Value = value
		}
		model.Tiers = append(model.Tiers, tier)
	}
	return model, nil
}

// =============================================================================
// WORKLOGS (ledger.WorklogSource interface)
// =============================================================================

// SaveWorklog persists a synced tracker entry (the write path of the
// external sync collaborator).
func (s *Store) SaveWorklog(ctx context.Context, wl ledger.WorklogRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worklogs (id, contract_id, client_id, ticket_id, date, hours, manual, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hours = excluded.hours,
			manual = excluded.manual,
			category = excluded.category
	`, wl.ID, wl.ContractID, wl.ClientID, wl.TicketID,
		wl.Date.UTC().Format(time.RFC3339), wl.Hours.String(),
		boolInt(wl.Manual), string(wl.Category))
	return err
}

// FindWorklogs searches a client's family for a ticket's entries in a month.
func (s *Store) FindWorklogs(ctx context.Context, clientID, ticketID string, m ledger.Month) ([]ledger.WorklogRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := m.FirstDay()
	to := m.Add(1).FirstDay()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, client_id, ticket_id, date, hours, manual, category
		FROM worklogs
		WHERE client_id = ? AND ticket_id = ? AND date >= ? AND date < ?
		ORDER BY date
	`, clientID, ticketID, from.Format(time.RFC3339), to.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.WorklogRef
	for rows.Next() {
		var wl ledger.WorklogRef
		var dateStr, hoursStr, category string
		var manual int

		if err := rows.Scan(&wl.ID, &wl.ContractID, &wl.ClientID, &wl.TicketID,
			&dateStr, &hoursStr, &manual, &category); err != nil {
			return nil, err
		}

		wl.Date, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad worklog date %s: %w", wl.ID, err)
		}
		wl.Hours, err = decimal.NewFromString(hoursStr)
		if err != nil {
			return nil, fmt.Errorf("bad worklog hours %s: %w", wl.ID, err)
		}
		wl.Manual = manual != 0
		wl.Category = ledger.TicketCategory(category)

		result = append(result, wl)
	}
	return result, rows.Err()
}

// =============================================================================
// JOB STATUS (ledger.JobStatusStore interface)
// =============================================================================

func (s *Store) GetStatus(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM job_status WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) SetStatus(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_status (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) ClearStatus(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM job_status WHERE key = ?`, key)
	return err
}

// =============================================================================
// SCENARIO SUPPORT
// =============================================================================

// Reset drops all rows from every table. Demo scenario loading only; never
// reachable from production data paths.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Children before parents, foreign keys are on.
	tables := []string{
		"correction_assignments",
		"correction_models",
		"regularizations",
		"monthly_metrics",
		"validity_periods",
		"worklogs",
		"job_status",
		"contracts",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
