/*
Package sqlite provides the SQLite-backed implementation of the bidding
storage interfaces.

PURPOSE:
  Implements bidding.Store and bidding.TxStore over SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  bids:              Bid headers with lifecycle status
  bid_po_numbers:    At most one purchase order record per bid
  target_audiences:  Named segments under a bid
  country_targets:   (audience x country) with required sample size
  partner_responses: (bid x partner x LOI) commercial offers
  allocation_cells:  The atomic leaves, (response x audience x country)
  partners:          Fulfillment partner directory

UNIQUENESS:
  The hierarchy invariants are enforced by unique indexes:
  - idx_country_targets_key: one target per (audience, country)
  - idx_responses_key:       one response per (bid, partner, loi)
  - idx_cells_key:           one cell per (bid, response, audience, country)
  Violations surface as bidding.ErrConflict so the reconciler can retry.

CASCADES:
  Deleting a bid or audience cascades through foreign keys. Country
  removal deletes cells explicitly, since cells reference the audience
  rather than the country target row.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL for
  better read concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/bids.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - bidding/store.go: interface definitions and the transaction contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/csi/bid-engine/bidding"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements bidding.TxStore using SQLite.
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
	-- Bid headers
	CREATE TABLE IF NOT EXISTS bids (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_number TEXT NOT NULL UNIQUE,
		bid_date TEXT,
		study_name TEXT NOT NULL,
		methodology TEXT NOT NULL DEFAULT '',
		client_id INTEGER NOT NULL DEFAULT 0,
		sales_contact_id INTEGER NOT NULL DEFAULT 0,
		vm_contact_id INTEGER NOT NULL DEFAULT 0,
		project_requirement TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bids_status ON bids(status);

	-- At most one PO record per bid
	CREATE TABLE IF NOT EXISTS bid_po_numbers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_id INTEGER NOT NULL UNIQUE REFERENCES bids(id) ON DELETE CASCADE,
		po_number TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Audiences
	CREATE TABLE IF NOT EXISTS target_audiences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_id INTEGER NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		ta_category TEXT NOT NULL DEFAULT '',
		broader_category TEXT NOT NULL DEFAULT '',
		exact_definition TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT '',
		sample_required INTEGER NOT NULL DEFAULT 0,
		ir TEXT NOT NULL DEFAULT '0',
		comments TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audiences_bid ON target_audiences(bid_id);

	-- Country targets
	CREATE TABLE IF NOT EXISTS country_targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_id INTEGER NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
		audience_id INTEGER NOT NULL REFERENCES target_audiences(id) ON DELETE CASCADE,
		country TEXT NOT NULL,
		sample_size INTEGER NOT NULL DEFAULT 0
	);

	-- CRITICAL: one target per (audience, country); the reconciler's
	-- upsert path depends on this key.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_country_targets_key
		ON country_targets(audience_id, country);
	CREATE INDEX IF NOT EXISTS idx_country_targets_bid
		ON country_targets(bid_id);

	-- Partner directory
	CREATE TABLE IF NOT EXISTS partners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		partner_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		contact_person TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Partner responses
	CREATE TABLE IF NOT EXISTS partner_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_id INTEGER NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
		partner_id INTEGER NOT NULL REFERENCES partners(id),
		loi INTEGER NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		pmf TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'draft',
		invoice_date TEXT,
		invoice_sent TEXT,
		invoice_serial TEXT NOT NULL DEFAULT '',
		invoice_number TEXT NOT NULL DEFAULT '',
		invoice_amount TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one response per (bid, partner, loi)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_responses_key
		ON partner_responses(bid_id, partner_id, loi);

	-- Allocation cells
	CREATE TABLE IF NOT EXISTS allocation_cells (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_id INTEGER NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
		response_id INTEGER NOT NULL REFERENCES partner_responses(id) ON DELETE CASCADE,
		audience_id INTEGER NOT NULL REFERENCES target_audiences(id) ON DELETE CASCADE,
		country TEXT NOT NULL,
		commitment INTEGER NOT NULL DEFAULT 0,
		cpi TEXT NOT NULL DEFAULT '0',
		timeline_days INTEGER NOT NULL DEFAULT 0,
		comments TEXT NOT NULL DEFAULT '',
		allocation INTEGER NOT NULL DEFAULT 0,
		n_delivered INTEGER,
		final_loi INTEGER,
		final_ir TEXT,
		final_timeline INTEGER,
		quality_rejects INTEGER,
		communication INTEGER,
		engagement INTEGER,
		problem_solving INTEGER,
		feedback TEXT NOT NULL DEFAULT '',
		field_close_date TEXT,
		final_cpi TEXT,
		initial_cost TEXT,
		final_cost TEXT,
		savings TEXT
	);

	-- CRITICAL: one cell per (bid, response, audience, country)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cells_key
		ON allocation_cells(bid_id, response_id, audience_id, country);
	CREATE INDEX IF NOT EXISTS idx_cells_bid ON allocation_cells(bid_id);
	CREATE INDEX IF NOT EXISTS idx_cells_response ON allocation_cells(response_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (bidding.TxStore)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store bidding.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every Store call through the open transaction.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) CreateBid(ctx context.Context, b *bidding.Bid) error {
	return ts.parent.createBid(ctx, ts.tx, b)
}
func (ts *txStore) GetBid(ctx context.Context, id bidding.BidID) (*bidding.Bid, error) {
	return ts.parent.getBid(ctx, ts.tx, id)
}
func (ts *txStore) GetBidByNumber(ctx context.Context, number string) (*bidding.Bid, error) {
	return ts.parent.getBidByNumber(ctx, ts.tx, number)
}
func (ts *txStore) ListBids(ctx context.Context) ([]bidding.Bid, error) {
	return ts.parent.listBids(ctx, ts.tx)
}
func (ts *txStore) UpdateBid(ctx context.Context, b *bidding.Bid) error {
	return ts.parent.updateBid(ctx, ts.tx, b)
}
func (ts *txStore) SetBidStatus(ctx context.Context, id bidding.BidID, status bidding.Status) error {
	return ts.parent.setBidStatus(ctx, ts.tx, id, status)
}
func (ts *txStore) NextBidNumber(ctx context.Context) (string, error) {
	return ts.parent.nextBidNumber(ctx, ts.tx)
}
func (ts *txStore) UpsertPONumber(ctx context.Context, id bidding.BidID, poNumber string) error {
	return ts.parent.upsertPONumber(ctx, ts.tx, id, poNumber)
}
func (ts *txStore) GetPONumber(ctx context.Context, id bidding.BidID) (string, error) {
	return ts.parent.getPONumber(ctx, ts.tx, id)
}
func (ts *txStore) ListAudiences(ctx context.Context, id bidding.BidID) ([]bidding.TargetAudience, error) {
	return ts.parent.listAudiences(ctx, ts.tx, id)
}
func (ts *txStore) InsertAudience(ctx context.Context, a *bidding.TargetAudience) error {
	return ts.parent.insertAudience(ctx, ts.tx, a)
}
func (ts *txStore) UpdateAudience(ctx context.Context, a *bidding.TargetAudience) error {
	return ts.parent.updateAudience(ctx, ts.tx, a)
}
func (ts *txStore) DeleteAudience(ctx context.Context, id bidding.AudienceID) error {
	return ts.parent.deleteAudience(ctx, ts.tx, id)
}
func (ts *txStore) ListCountryTargets(ctx context.Context, id bidding.BidID) ([]bidding.CountryTarget, error) {
	return ts.parent.listCountryTargets(ctx, ts.tx, id)
}
func (ts *txStore) UpsertCountryTarget(ctx context.Context, t *bidding.CountryTarget) error {
	return ts.parent.upsertCountryTarget(ctx, ts.tx, t)
}
func (ts *txStore) DeleteCountry(ctx context.Context, id bidding.BidID, country string) error {
	return ts.parent.deleteCountry(ctx, ts.tx, id, country)
}
func (ts *txStore) DeleteCountryTarget(ctx context.Context, audience bidding.AudienceID, country string) error {
	return ts.parent.deleteCountryTarget(ctx, ts.tx, audience, country)
}
func (ts *txStore) ListResponses(ctx context.Context, id bidding.BidID) ([]bidding.PartnerResponse, error) {
	return ts.parent.listResponses(ctx, ts.tx, id)
}
func (ts *txStore) GetResponse(ctx context.Context, id bidding.BidID, partner bidding.PartnerID, loi int) (*bidding.PartnerResponse, error) {
	return ts.parent.getResponse(ctx, ts.tx, id, partner, loi)
}
func (ts *txStore) UpsertResponse(ctx context.Context, r *bidding.PartnerResponse) error {
	return ts.parent.upsertResponse(ctx, ts.tx, r)
}
func (ts *txStore) UpdateResponseInvoice(ctx context.Context, r *bidding.PartnerResponse) error {
	return ts.parent.updateResponseInvoice(ctx, ts.tx, r)
}
func (ts *txStore) CountResponses(ctx context.Context, id bidding.BidID) (int, error) {
	return ts.parent.countResponses(ctx, ts.tx, id)
}
func (ts *txStore) ListCells(ctx context.Context, id bidding.BidID) ([]bidding.AllocationCell, error) {
	return ts.parent.listCells(ctx, ts.tx, id)
}
func (ts *txStore) ListCellsByResponse(ctx context.Context, id bidding.ResponseID) ([]bidding.AllocationCell, error) {
	return ts.parent.listCellsByResponse(ctx, ts.tx, id)
}
func (ts *txStore) ListAllCells(ctx context.Context) ([]bidding.AllocationCell, error) {
	return ts.parent.listAllCells(ctx, ts.tx)
}
func (ts *txStore) UpsertCell(ctx context.Context, c *bidding.AllocationCell) error {
	return ts.parent.upsertCell(ctx, ts.tx, c)
}
func (ts *txStore) InsertCellIfAbsent(ctx context.Context, c *bidding.AllocationCell) error {
	return ts.parent.insertCellIfAbsent(ctx, ts.tx, c)
}
func (ts *txStore) SetCellAllocation(ctx context.Context, id bidding.CellID, allocation int) error {
	return ts.parent.setCellAllocation(ctx, ts.tx, id, allocation)
}
func (ts *txStore) UpdateCellClosure(ctx context.Context, c *bidding.AllocationCell) error {
	return ts.parent.updateCellClosure(ctx, ts.tx, c)
}
func (ts *txStore) UpdateCellInvoice(ctx context.Context, c *bidding.AllocationCell) error {
	return ts.parent.updateCellInvoice(ctx, ts.tx, c)
}
func (ts *txStore) CreatePartner(ctx context.Context, p *bidding.Partner) error {
	return ts.parent.createPartner(ctx, ts.tx, p)
}
func (ts *txStore) GetPartner(ctx context.Context, id bidding.PartnerID) (*bidding.Partner, error) {
	return ts.parent.getPartner(ctx, ts.tx, id)
}
func (ts *txStore) ListPartners(ctx context.Context) ([]bidding.Partner, error) {
	return ts.parent.listPartners(ctx, ts.tx)
}

// =============================================================================
// BIDS
// =============================================================================

func (s *Store) CreateBid(ctx context.Context, b *bidding.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createBid(ctx, s.db, b)
}

func (s *Store) createBid(ctx context.Context, db dbtx, b *bidding.Bid) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO bids
		(bid_number, bid_date, study_name, methodology, client_id,
		 sales_contact_id, vm_contact_id, project_requirement, status,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BidNumber,
		formatTime(b.BidDate),
		b.StudyName,
		b.Methodology,
		b.ClientID,
		b.SalesContactID,
		b.VMContactID,
		b.ProjectRequirement,
		string(b.Status),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("bid number %s: %w", b.BidNumber, bidding.ErrConflict)
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = bidding.BidID(id)
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (s *Store) GetBid(ctx context.Context, id bidding.BidID) (*bidding.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBid(ctx, s.db, id)
}

const bidColumns = `id, bid_number, bid_date, study_name, methodology, client_id,
	sales_contact_id, vm_contact_id, project_requirement, status, created_at, updated_at`

func (s *Store) getBid(ctx context.Context, db dbtx, id bidding.BidID) (*bidding.Bid, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE id = ?`, id)
	b, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bid %d: %w", id, bidding.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) GetBidByNumber(ctx context.Context, number string) (*bidding.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBidByNumber(ctx, s.db, number)
}

func (s *Store) getBidByNumber(ctx context.Context, db dbtx, number string) (*bidding.Bid, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE bid_number = ?`, number)
	b, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bid number %s: %w", number, bidding.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBids(ctx context.Context) ([]bidding.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBids(ctx, s.db)
}

func (s *Store) listBids(ctx context.Context, db dbtx) ([]bidding.Bid, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []bidding.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

func (s *Store) UpdateBid(ctx context.Context, b *bidding.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBid(ctx, s.db, b)
}

func (s *Store) updateBid(ctx context.Context, db dbtx, b *bidding.Bid) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		UPDATE bids SET
			bid_date = ?, study_name = ?, methodology = ?, client_id = ?,
			sales_contact_id = ?, vm_contact_id = ?, project_requirement = ?,
			updated_at = ?
		WHERE id = ?`,
		formatTime(b.BidDate),
		b.StudyName,
		b.Methodology,
		b.ClientID,
		b.SalesContactID,
		b.VMContactID,
		b.ProjectRequirement,
		now.Format(time.RFC3339),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("bid %d: %w", b.ID, bidding.ErrNotFound)
	}
	b.UpdatedAt = now
	return nil
}

func (s *Store) SetBidStatus(ctx context.Context, id bidding.BidID, status bidding.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setBidStatus(ctx, s.db, id, status)
}

func (s *Store) setBidStatus(ctx context.Context, db dbtx, id bidding.BidID, status bidding.Status) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bids SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to set bid status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("bid %d: %w", id, bidding.ErrNotFound)
	}
	return nil
}

func (s *Store) NextBidNumber(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextBidNumber(ctx, s.db)
}

// nextBidNumber suggests max(existing)+1 with a 40000 floor, so numbers
// stay monotonic even when the table is empty.
func (s *Store) nextBidNumber(ctx context.Context, db dbtx) (string, error) {
	var next int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(bid_number AS INTEGER)), 39999) + 1 FROM bids`,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("failed to compute next bid number: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}

// =============================================================================
// PO NUMBERS
// =============================================================================

func (s *Store) UpsertPONumber(ctx context.Context, id bidding.BidID, poNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertPONumber(ctx, s.db, id, poNumber)
}

func (s *Store) upsertPONumber(ctx context.Context, db dbtx, id bidding.BidID, poNumber string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO bid_po_numbers (bid_id, po_number, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bid_id) DO UPDATE SET
			po_number = excluded.po_number,
			updated_at = excluded.updated_at`,
		id, poNumber, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert PO number: %w", err)
	}
	return nil
}

func (s *Store) GetPONumber(ctx context.Context, id bidding.BidID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPONumber(ctx, s.db, id)
}

func (s *Store) getPONumber(ctx context.Context, db dbtx, id bidding.BidID) (string, error) {
	var po string
	err := db.QueryRowContext(ctx,
		`SELECT po_number FROM bid_po_numbers WHERE bid_id = ?`, id).Scan(&po)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("po number for bid %d: %w", id, bidding.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return po, nil
}

// =============================================================================
// TARGET AUDIENCES
// =============================================================================

func (s *Store) ListAudiences(ctx context.Context, id bidding.BidID) ([]bidding.TargetAudience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAudiences(ctx, s.db, id)
}

// listAudiences hydrates each audience's CountrySamples map from the
// stored country targets, so callers see the same shape they write.
func (s *Store) listAudiences(ctx context.Context, db dbtx, id bidding.BidID) ([]bidding.TargetAudience, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, bid_id, name, ta_category, broader_category, exact_definition,
		       mode, sample_required, ir, comments
		FROM target_audiences WHERE bid_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audiences: %w", err)
	}
	defer rows.Close()

	var audiences []bidding.TargetAudience
	for rows.Next() {
		var a bidding.TargetAudience
		var ir string
		if err := rows.Scan(&a.ID, &a.BidID, &a.Name, &a.TACategory, &a.BroaderCategory,
			&a.ExactDefinition, &a.Mode, &a.SampleRequired, &ir, &a.Comments); err != nil {
			return nil, fmt.Errorf("failed to scan audience: %w", err)
		}
		a.IR = parseDecimal(ir)
		audiences = append(audiences, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	targets, err := s.listCountryTargets(ctx, db, id)
	if err != nil {
		return nil, err
	}
	samples := make(map[bidding.AudienceID]map[string]int)
	for _, t := range targets {
		if samples[t.AudienceID] == nil {
			samples[t.AudienceID] = make(map[string]int)
		}
		samples[t.AudienceID][t.Country] = t.SampleSize
	}
	for i := range audiences {
		audiences[i].CountrySamples = samples[audiences[i].ID]
	}
	return audiences, nil
}

func (s *Store) InsertAudience(ctx context.Context, a *bidding.TargetAudience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAudience(ctx, s.db, a)
}

func (s *Store) insertAudience(ctx context.Context, db dbtx, a *bidding.TargetAudience) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO target_audiences
		(bid_id, name, ta_category, broader_category, exact_definition, mode,
		 sample_required, ir, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.BidID, a.Name, a.TACategory, a.BroaderCategory, a.ExactDefinition,
		a.Mode, a.SampleRequired, a.IR.String(), a.Comments)
	if err != nil {
		return fmt.Errorf("failed to insert audience: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = bidding.AudienceID(id)
	return nil
}

func (s *Store) UpdateAudience(ctx context.Context, a *bidding.TargetAudience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAudience(ctx, s.db, a)
}

func (s *Store) updateAudience(ctx context.Context, db dbtx, a *bidding.TargetAudience) error {
	res, err := db.ExecContext(ctx, `
		UPDATE target_audiences SET
			name = ?, ta_category = ?, broader_category = ?, exact_definition = ?,
			mode = ?, sample_required = ?, ir = ?, comments = ?
		WHERE id = ?`,
		a.Name, a.TACategory, a.BroaderCategory, a.ExactDefinition,
		a.Mode, a.SampleRequired, a.IR.String(), a.Comments, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update audience: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("audience %d: %w", a.ID, bidding.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAudience(ctx context.Context, id bidding.AudienceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAudience(ctx, s.db, id)
}

func (s *Store) deleteAudience(ctx context.Context, db dbtx, id bidding.AudienceID) error {
	// Country targets and allocation cells cascade via foreign keys.
	_, err := db.ExecContext(ctx, `DELETE FROM target_audiences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete audience: %w", err)
	}
	return nil
}

// =============================================================================
// COUNTRY TARGETS
// =============================================================================

func (s *Store) ListCountryTargets(ctx context.Context, id bidding.BidID) ([]bidding.CountryTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCountryTargets(ctx, s.db, id)
}

func (s *Store) listCountryTargets(ctx context.Context, db dbtx, id bidding.BidID) ([]bidding.CountryTarget, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, bid_id, audience_id, country, sample_size
		FROM country_targets WHERE bid_id = ? ORDER BY audience_id, country`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query country targets: %w", err)
	}
	defer rows.Close()

	var targets []bidding.CountryTarget
	for rows.Next() {
		var t bidding.CountryTarget
		if err := rows.Scan(&t.ID, &t.BidID, &t.AudienceID, &t.Country, &t.SampleSize); err != nil {
			return nil, fmt.Errorf("failed to scan country target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Store) UpsertCountryTarget(ctx context.Context, t *bidding.CountryTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCountryTarget(ctx, s.db, t)
}

func (s *Store) upsertCountryTarget(ctx context.Context, db dbtx, t *bidding.CountryTarget) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO country_targets (bid_id, audience_id, country, sample_size)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(audience_id, country) DO UPDATE SET
			sample_size = excluded.sample_size`,
		t.BidID, t.AudienceID, t.Country, t.SampleSize)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("country target (%d, %s): %w", t.AudienceID, t.Country, bidding.ErrConflict)
		}
		return fmt.Errorf("failed to upsert country target: %w", err)
	}
	var id int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM country_targets WHERE audience_id = ? AND country = ?`,
		t.AudienceID, t.Country).Scan(&id)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (s *Store) DeleteCountry(ctx context.Context, id bidding.BidID, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCountry(ctx, s.db, id, country)
}

func (s *Store) deleteCountry(ctx context.Context, db dbtx, id bidding.BidID, country string) error {
	// Cells reference the audience, not the target row, so they are
	// removed explicitly.
	if _, err := db.ExecContext(ctx,
		`DELETE FROM allocation_cells WHERE bid_id = ? AND country = ?`, id, country); err != nil {
		return fmt.Errorf("failed to delete cells for country: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM country_targets WHERE bid_id = ? AND country = ?`, id, country); err != nil {
		return fmt.Errorf("failed to delete country targets: %w", err)
	}
	return nil
}

func (s *Store) DeleteCountryTarget(ctx context.Context, audience bidding.AudienceID, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCountryTarget(ctx, s.db, audience, country)
}

func (s *Store) deleteCountryTarget(ctx context.Context, db dbtx, audience bidding.AudienceID, country string) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM allocation_cells WHERE audience_id = ? AND country = ?`, audience, country); err != nil {
		return fmt.Errorf("failed to delete cells for country target: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM country_targets WHERE audience_id = ? AND country = ?`, audience, country); err != nil {
		return fmt.Errorf("failed to delete country target: %w", err)
	}
	return nil
}

// =============================================================================
// PARTNER RESPONSES
// =============================================================================

const responseColumns = `id, bid_id, partner_id, loi, currency, pmf, status,
	invoice_date, invoice_sent, invoice_serial, invoice_number, invoice_amount,
	created_at, updated_at`

func (s *Store) ListResponses(ctx context.Context, id bidding.BidID) ([]bidding.PartnerResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listResponses(ctx, s.db, id)
}

func (s *Store) listResponses(ctx context.Context, db dbtx, id bidding.BidID) ([]bidding.PartnerResponse, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM partner_responses WHERE bid_id = ? ORDER BY partner_id, loi`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []bidding.PartnerResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

func (s *Store) GetResponse(ctx context.Context, id bidding.BidID, partner bidding.PartnerID, loi int) (*bidding.PartnerResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getResponse(ctx, s.db, id, partner, loi)
}

func (s *Store) getResponse(ctx context.Context, db dbtx, id bidding.BidID, partner bidding.PartnerID, loi int) (*bidding.PartnerResponse, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM partner_responses WHERE bid_id = ? AND partner_id = ? AND loi = ?`,
		id, partner, loi)
	r, err := scanResponse(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("response (bid %d, partner %d, loi %d): %w", id, partner, loi, bidding.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) UpsertResponse(ctx context.Context, r *bidding.PartnerResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertResponse(ctx, s.db, r)
}

// upsertResponse updates only the commercial fields on conflict; invoice
// fields on an existing row are never overwritten by a roster edit.
func (s *Store) upsertResponse(ctx context.Context, db dbtx, r *bidding.PartnerResponse) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO partner_responses
		(bid_id, partner_id, loi, currency, pmf, status,
		 invoice_date, invoice_sent, invoice_serial, invoice_number, invoice_amount,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bid_id, partner_id, loi) DO UPDATE SET
			currency = excluded.currency,
			pmf = excluded.pmf,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.BidID, r.Partner, r.LOI, r.Currency, r.PMF.String(), string(r.Status),
		nullTime(r.InvoiceDate), nullTime(r.InvoiceSent),
		r.InvoiceSerial, r.InvoiceNumber, nullDecimal(r.InvoiceAmount),
		now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("response (bid %d, partner %d, loi %d): %w", r.BidID, r.Partner, r.LOI, bidding.ErrConflict)
		}
		return fmt.Errorf("failed to upsert response: %w", err)
	}

	var id int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM partner_responses WHERE bid_id = ? AND partner_id = ? AND loi = ?`,
		r.BidID, r.Partner, r.LOI).Scan(&id)
	if err != nil {
		return err
	}
	r.ID = bidding.ResponseID(id)
	return nil
}

func (s *Store) UpdateResponseInvoice(ctx context.Context, r *bidding.PartnerResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateResponseInvoice(ctx, s.db, r)
}

func (s *Store) updateResponseInvoice(ctx context.Context, db dbtx, r *bidding.PartnerResponse) error {
	res, err := db.ExecContext(ctx, `
		UPDATE partner_responses SET
			invoice_date = ?, invoice_sent = ?, invoice_serial = ?,
			invoice_number = ?, invoice_amount = ?, updated_at = ?
		WHERE id = ?`,
		nullTime(r.InvoiceDate), nullTime(r.InvoiceSent), r.InvoiceSerial,
		r.InvoiceNumber, nullDecimal(r.InvoiceAmount),
		time.Now().UTC().Format(time.RFC3339), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update response invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("response %d: %w", r.ID, bidding.ErrNotFound)
	}
	return nil
}

func (s *Store) CountResponses(ctx context.Context, id bidding.BidID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countResponses(ctx, s.db, id)
}

func (s *Store) countResponses(ctx context.Context, db dbtx, id bidding.BidID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM partner_responses WHERE bid_id = ?`, id).Scan(&count)
	return count, err
}

// =============================================================================
// ALLOCATION CELLS
// =============================================================================

const cellColumns = `id, bid_id, response_id, audience_id, country,
	commitment, cpi, timeline_days, comments, allocation,
	n_delivered, final_loi, final_ir, final_timeline, quality_rejects,
	communication, engagement, problem_solving, feedback, field_close_date,
	final_cpi, initial_cost, final_cost, savings`

func (s *Store) ListCells(ctx context.Context, id bidding.BidID) ([]bidding.AllocationCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCells(ctx, s.db, id)
}

func (s *Store) listCells(ctx context.Context, db dbtx, id bidding.BidID) ([]bidding.AllocationCell, error) {
	return s.queryCells(ctx, db,
		`SELECT `+cellColumns+` FROM allocation_cells WHERE bid_id = ? ORDER BY id`, id)
}

func (s *Store) ListCellsByResponse(ctx context.Context, id bidding.ResponseID) ([]bidding.AllocationCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCellsByResponse(ctx, s.db, id)
}

func (s *Store) listCellsByResponse(ctx context.Context, db dbtx, id bidding.ResponseID) ([]bidding.AllocationCell, error) {
	return s.queryCells(ctx, db,
		`SELECT `+cellColumns+` FROM allocation_cells WHERE response_id = ? ORDER BY id`, id)
}

func (s *Store) ListAllCells(ctx context.Context) ([]bidding.AllocationCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllCells(ctx, s.db)
}

func (s *Store) listAllCells(ctx context.Context, db dbtx) ([]bidding.AllocationCell, error) {
	return s.queryCells(ctx, db, `SELECT `+cellColumns+` FROM allocation_cells ORDER BY id`)
}

func (s *Store) queryCells(ctx context.Context, db dbtx, query string, args ...any) ([]bidding.AllocationCell, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var cells []bidding.AllocationCell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	return cells, rows.Err()
}

func (s *Store) UpsertCell(ctx context.Context, c *bidding.AllocationCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCell(ctx, s.db, c)
}

// upsertCell overwrites only the bid-stage fields on conflict. Allocation,
// closure metrics and invoice costs on the stored row survive roster edits.
func (s *Store) upsertCell(ctx context.Context, db dbtx, c *bidding.AllocationCell) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO allocation_cells
		(bid_id, response_id, audience_id, country, commitment, cpi, timeline_days, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bid_id, response_id, audience_id, country) DO UPDATE SET
			commitment = excluded.commitment,
			cpi = excluded.cpi,
			timeline_days = excluded.timeline_days,
			comments = excluded.comments`,
		c.BidID, c.ResponseID, c.AudienceID, c.Country,
		c.Commitment, c.CPI.String(), c.TimelineDays, c.Comments)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("cell (bid %d, response %d, audience %d, %s): %w",
				c.BidID, c.ResponseID, c.AudienceID, c.Country, bidding.ErrConflict)
		}
		return fmt.Errorf("failed to upsert cell: %w", err)
	}
	return s.fillCellID(ctx, db, c)
}

func (s *Store) InsertCellIfAbsent(ctx context.Context, c *bidding.AllocationCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCellIfAbsent(ctx, s.db, c)
}

func (s *Store) insertCellIfAbsent(ctx context.Context, db dbtx, c *bidding.AllocationCell) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO allocation_cells
		(bid_id, response_id, audience_id, country, commitment, cpi, timeline_days, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bid_id, response_id, audience_id, country) DO NOTHING`,
		c.BidID, c.ResponseID, c.AudienceID, c.Country,
		c.Commitment, c.CPI.String(), c.TimelineDays, c.Comments)
	if err != nil {
		return fmt.Errorf("failed to insert cell: %w", err)
	}
	return s.fillCellID(ctx, db, c)
}

func (s *Store) fillCellID(ctx context.Context, db dbtx, c *bidding.AllocationCell) error {
	var id int64
	err := db.QueryRowContext(ctx, `
		SELECT id FROM allocation_cells
		WHERE bid_id = ? AND response_id = ? AND audience_id = ? AND country = ?`,
		c.BidID, c.ResponseID, c.AudienceID, c.Country).Scan(&id)
	if err != nil {
		return err
	}
	c.ID = bidding.CellID(id)
	return nil
}

func (s *Store) SetCellAllocation(ctx context.Context, id bidding.CellID, allocation int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCellAllocation(ctx, s.db, id, allocation)
}

func (s *Store) setCellAllocation(ctx context.Context, db dbtx, id bidding.CellID, allocation int) error {
	res, err := db.ExecContext(ctx,
		`UPDATE allocation_cells SET allocation = ? WHERE id = ?`, allocation, id)
	if err != nil {
		return fmt.Errorf("failed to set allocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("cell %d: %w", id, bidding.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateCellClosure(ctx context.Context, c *bidding.AllocationCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCellClosure(ctx, s.db, c)
}

func (s *Store) updateCellClosure(ctx context.Context, db dbtx, c *bidding.AllocationCell) error {
	res, err := db.ExecContext(ctx, `
		UPDATE allocation_cells SET
			n_delivered = ?, final_loi = ?, final_ir = ?, final_timeline = ?,
			quality_rejects = ?, communication = ?, engagement = ?,
			problem_solving = ?, feedback = ?, field_close_date = ?
		WHERE id = ?`,
		nullInt(c.Delivered), nullInt(c.FinalLOI), nullDecimal(c.FinalIR),
		nullInt(c.FinalTimeline), nullInt(c.QualityRejects),
		nullInt(c.Communication), nullInt(c.Engagement), nullInt(c.ProblemSolving),
		c.Feedback, nullTime(c.FieldCloseDate), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update cell closure data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("cell %d: %w", c.ID, bidding.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateCellInvoice(ctx context.Context, c *bidding.AllocationCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCellInvoice(ctx, s.db, c)
}

func (s *Store) updateCellInvoice(ctx context.Context, db dbtx, c *bidding.AllocationCell) error {
	res, err := db.ExecContext(ctx, `
		UPDATE allocation_cells SET
			final_cpi = ?, initial_cost = ?, final_cost = ?, savings = ?
		WHERE id = ?`,
		nullDecimal(c.FinalCPI), nullDecimal(c.InitialCost),
		nullDecimal(c.FinalCost), nullDecimal(c.Savings), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update cell invoice data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("cell %d: %w", c.ID, bidding.ErrNotFound)
	}
	return nil
}

// =============================================================================
// PARTNERS
// =============================================================================

func (s *Store) CreatePartner(ctx context.Context, p *bidding.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPartner(ctx, s.db, p)
}

func (s *Store) createPartner(ctx context.Context, db dbtx, p *bidding.Partner) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO partners (partner_code, name, contact_person, contact_email, contact_phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.PartnerCode, p.Name, p.ContactPerson, p.ContactEmail, p.ContactPhone,
		now.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("partner code %s: %w", p.PartnerCode, bidding.ErrConflict)
		}
		return fmt.Errorf("failed to insert partner: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = bidding.PartnerID(id)
	p.CreatedAt = now
	return nil
}

func (s *Store) GetPartner(ctx context.Context, id bidding.PartnerID) (*bidding.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPartner(ctx, s.db, id)
}

func (s *Store) getPartner(ctx context.Context, db dbtx, id bidding.PartnerID) (*bidding.Partner, error) {
	var p bidding.Partner
	var createdAt string
	err := db.QueryRowContext(ctx, `
		SELECT id, partner_code, name, contact_person, contact_email, contact_phone, created_at
		FROM partners WHERE id = ?`, id).
		Scan(&p.ID, &p.PartnerCode, &p.Name, &p.ContactPerson, &p.ContactEmail, &p.ContactPhone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("partner %d: %w", id, bidding.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) ListPartners(ctx context.Context) ([]bidding.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPartners(ctx, s.db)
}

func (s *Store) listPartners(ctx context.Context, db dbtx) ([]bidding.Partner, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, partner_code, name, contact_person, contact_email, contact_phone, created_at
		FROM partners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	var partners []bidding.Partner
	for rows.Next() {
		var p bidding.Partner
		var createdAt string
		if err := rows.Scan(&p.ID, &p.PartnerCode, &p.Name, &p.ContactPerson,
			&p.ContactEmail, &p.ContactPhone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBid(row scanner) (*bidding.Bid, error) {
	var b bidding.Bid
	var bidDate, status, createdAt, updatedAt sql.NullString
	err := row.Scan(&b.ID, &b.BidNumber, &bidDate, &b.StudyName, &b.Methodology,
		&b.ClientID, &b.SalesContactID, &b.VMContactID, &b.ProjectRequirement,
		&status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	b.BidDate = parseTime(bidDate.String)
	b.Status = bidding.Status(status.String)
	b.CreatedAt = parseTime(createdAt.String)
	b.UpdatedAt = parseTime(updatedAt.String)
	return &b, nil
}

func scanResponse(row scanner) (*bidding.PartnerResponse, error) {
	var r bidding.PartnerResponse
	var pmf, status string
	var invoiceDate, invoiceSent, invoiceAmount sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.BidID, &r.Partner, &r.LOI, &r.Currency, &pmf, &status,
		&invoiceDate, &invoiceSent, &r.InvoiceSerial, &r.InvoiceNumber, &invoiceAmount,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.PMF = parseDecimal(pmf)
	r.Status = bidding.ResponseStatus(status)
	r.InvoiceDate = parseTimePtr(invoiceDate)
	r.InvoiceSent = parseTimePtr(invoiceSent)
	r.InvoiceAmount = parseDecimalPtr(invoiceAmount)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanCell(row scanner) (*bidding.AllocationCell, error) {
	var c bidding.AllocationCell
	var cpi string
	var delivered, finalLOI, finalTimeline, rejects sql.NullInt64
	var communication, engagement, problemSolving sql.NullInt64
	var finalIR, fieldCloseDate, finalCPI, initialCost, finalCost, savings sql.NullString
	err := row.Scan(&c.ID, &c.BidID, &c.ResponseID, &c.AudienceID, &c.Country,
		&c.Commitment, &cpi, &c.TimelineDays, &c.Comments, &c.Allocation,
		&delivered, &finalLOI, &finalIR, &finalTimeline, &rejects,
		&communication, &engagement, &problemSolving, &c.Feedback, &fieldCloseDate,
		&finalCPI, &initialCost, &finalCost, &savings)
	if err != nil {
		return nil, err
	}
	c.CPI = parseDecimal(cpi)
	c.Delivered = parseIntPtr(delivered)
	c.FinalLOI = parseIntPtr(finalLOI)
	c.FinalIR = parseDecimalPtr(finalIR)
	c.FinalTimeline = parseIntPtr(finalTimeline)
	c.QualityRejects = parseIntPtr(rejects)
	c.Communication = parseIntPtr(communication)
	c.Engagement = parseIntPtr(engagement)
	c.ProblemSolving = parseIntPtr(problemSolving)
	c.FieldCloseDate = parseTimePtr(fieldCloseDate)
	c.FinalCPI = parseDecimalPtr(finalCPI)
	c.InitialCost = parseDecimalPtr(initialCost)
	c.FinalCost = parseDecimalPtr(finalCost)
	c.Savings = parseDecimalPtr(savings)
	return &c, nil
}

// Helper functions

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func parseIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDecimalPtr(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := parseDecimal(s.String)
	return &d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
