// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists completed reports and resolved taxa in SQLite.
// The pipeline itself keeps no durable state; the store lets the CLI list
// past runs and warm the taxonomy cache across processes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// ErrNotFound is returned when a run ID is not in the store.
var ErrNotFound = errors.New("run not found")

const defaultHistoryLimit = 20

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			orcid TEXT NOT NULL,
			display_name TEXT,
			started_at TEXT NOT NULL,
			stage TEXT NOT NULL,
			fetched INTEGER,
			deduplicated INTEGER,
			verified INTEGER,
			selected INTEGER,
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_orcid ON runs(orcid)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			publication TEXT NOT NULL,
			name TEXT NOT NULL,
			searchable_name TEXT,
			method TEXT,
			work_type TEXT,
			watchlisted INTEGER NOT NULL DEFAULT 0,
			taxon_id INTEGER,
			confidence REAL,
			evidence TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_run_id ON mentions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_taxon_id ON mentions(taxon_id)`,
		`CREATE TABLE IF NOT EXISTS taxa (
			key TEXT PRIMARY KEY,
			name TEXT,
			taxon_id INTEGER NOT NULL,
			scientific_name TEXT,
			rank TEXT,
			confidence REAL,
			ambiguous INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveReport stores a completed report, its organism mentions and its
// resolved taxa. Saving the same run again replaces it.
func (s *Store) SaveReport(ctx context.Context, rep *types.Report) error {
	if rep == nil || rep.RunID == "" {
		return errors.New("report has no run ID")
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mentions WHERE run_id = ?`, rep.RunID); err != nil {
		return fmt.Errorf("deleting old mentions: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, orcid, display_name, started_at, stage, fetched, deduplicated, verified, selected, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			orcid=excluded.orcid, display_name=excluded.display_name, started_at=excluded.started_at,
			stage=excluded.stage, fetched=excluded.fetched, deduplicated=excluded.deduplicated,
			verified=excluded.verified, selected=excluded.selected, report=excluded.report`,
		rep.RunID, rep.Researcher.ORCID, rep.Researcher.DisplayName,
		rep.StartedAt.UTC().Format(timeLayout), string(rep.Stage),
		rep.Fetched, rep.Deduplicated, rep.Verified, rep.Selected, string(data),
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mentions (run_id, publication, name, searchable_name, method, work_type, watchlisted, taxon_id, confidence, evidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range rep.Lists {
		for _, m := range l.Mentions {
			var taxonID sql.NullInt64
			if m.Taxon != nil && m.Taxon.Resolved() {
				taxonID = sql.NullInt64{Int64: int64(m.Taxon.TaxonID), Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				rep.RunID, l.Publication, m.Name, m.SearchableName,
				string(m.Method), string(m.WorkType), m.Watchlisted,
				taxonID, m.Confidence, m.Evidence,
			)
			if err != nil {
				return fmt.Errorf("inserting mention %s: %w", m.Name, err)
			}
		}
	}

	if err := saveTaxa(ctx, tx, rep.Taxa()); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadReport returns the stored report for runID.
func (s *Store) LoadReport(ctx context.Context, runID string) (*types.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	var rep types.Report
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, fmt.Errorf("parsing stored report %s: %w", runID, err)
	}
	return &rep, nil
}

// HistoryOptions filters History.
type HistoryOptions struct {
	// ORCID restricts runs to one researcher.
	ORCID string

	// Organism restricts runs to those mentioning a matching organism
	// (case-insensitive substring of the searchable name).
	Organism string

	// Limit caps the number of runs returned (default 20).
	Limit int
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	ORCID        string    `json:"orcid" yaml:"orcid"`
	DisplayName  string    `json:"display_name" yaml:"display_name"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	Stage        string    `json:"stage" yaml:"stage"`
	Publications int       `json:"publications" yaml:"publications"`
	Organisms    int       `json:"organisms" yaml:"organisms"`
	Watchlisted  int       `json:"watchlisted" yaml:"watchlisted"`
}

// History lists stored runs, most recent first.
func (s *Store) History(ctx context.Context, opts HistoryOptions) ([]RunSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT r.run_id, r.orcid, r.display_name, r.started_at, r.stage, r.selected,
			(SELECT count(DISTINCT lower(coalesce(m.searchable_name, m.name))) FROM mentions m WHERE m.run_id = r.run_id),
			(SELECT count(DISTINCT lower(coalesce(m.searchable_name, m.name))) FROM mentions m WHERE m.run_id = r.run_id AND m.watchlisted = 1)
		FROM runs r
		WHERE 1=1`)

	if opts.ORCID != "" {
		qb.WriteString(` AND r.orcid = ?`)
		args = append(args, types.NormalizeORCID(opts.ORCID))
	}
	if opts.Organism != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM mentions m WHERE m.run_id = r.run_id AND lower(m.searchable_name) LIKE ?)`)
		args = append(args, "%"+strings.ToLower(opts.Organism)+"%")
	}
	qb.WriteString(` ORDER BY r.started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs          RunSummary
			displayName sql.NullString
			startedAt   string
		)
		if err := rows.Scan(&rs.RunID, &rs.ORCID, &displayName, &startedAt, &rs.Stage,
			&rs.Publications, &rs.Organisms, &rs.Watchlisted); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		rs.DisplayName = displayName.String
		rs.StartedAt, _ = time.Parse(timeLayout, startedAt)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// SaveTaxa upserts resolved taxa. Unresolved entries are skipped.
func (s *Store) SaveTaxa(ctx context.Context, taxa []types.TaxonResolution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveTaxa(ctx, tx, taxa); err != nil {
		return err
	}
	return tx.Commit()
}

func saveTaxa(ctx context.Context, tx *sql.Tx, taxa []types.TaxonResolution) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO taxa (key, name, taxon_id, scientific_name, rank, confidence, ambiguous, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			name=excluded.name, taxon_id=excluded.taxon_id, scientific_name=excluded.scientific_name,
			rank=excluded.rank, confidence=excluded.confidence, ambiguous=excluded.ambiguous,
			updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing taxon upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range taxa {
		if t.Key == "" || !t.Resolved() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, t.Key, t.Name, t.TaxonID, t.ScientificName, t.Rank, t.Confidence, t.Ambiguous, now); err != nil {
			return fmt.Errorf("upserting taxon %s: %w", t.Key, err)
		}
	}
	return nil
}

// LoadTaxa returns every stored taxon ordered by key.
func (s *Store) LoadTaxa(ctx context.Context) ([]types.TaxonResolution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, name, taxon_id, scientific_name, rank, confidence, ambiguous FROM taxa ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("querying taxa: %w", err)
	}
	defer rows.Close()

	var out []types.TaxonResolution
	for rows.Next() {
		var (
			t                   types.TaxonResolution
			name, sciName, rank sql.NullString
		)
		if err := rows.Scan(&t.Key, &name, &t.TaxonID, &sciName, &rank, &t.Confidence, &t.Ambiguous); err != nil {
			return nil, fmt.Errorf("scanning taxon row: %w", err)
		}
		t.Name = name.String
		t.ScientificName = sciName.String
		t.Rank = rank.String
		t.Status = types.ResolutionResolved
		out = append(out, t)
	}
	return out, rows.Err()
}
