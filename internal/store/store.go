// Package store persists the layered transaction data: immutable facts,
// parsed and enriched derivations, correction overrides, the merchant
// directory, and the read-time effective view that merges them.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"spendsense/pipeline/internal/logging"

	_ "modernc.org/sqlite"
)

// dateLayout is how transaction dates are stored; timestamps use RFC3339.
const dateLayout = "2006-01-02"

// Store wraps the SQLite database holding all pipeline state.
type Store struct {
	db     *sql.DB
	logger logging.Logger

	// dirMu serializes merchant-directory appends; reads need no locking
	// because entries are never mutated in place.
	dirMu sync.Mutex
}

// Open opens (or creates) the SQLite database at path and ensures the schema
// exists.
func Open(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc/sqlite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY under concurrent batch jobs.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS statements (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			file_name   TEXT NOT NULL,
			file_type   TEXT NOT NULL,
			uploaded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS raw_transaction_facts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         TEXT NOT NULL,
			statement_id    TEXT NOT NULL,
			batch_id        TEXT NOT NULL,
			txn_date        TEXT NOT NULL,
			raw_description TEXT NOT NULL,
			amount_minor    INTEGER NOT NULL,
			raw_direction   TEXT NOT NULL DEFAULT '',
			content_hash    TEXT NOT NULL,
			row_ordinal     INTEGER NOT NULL,
			ingested_at     TEXT NOT NULL,
			UNIQUE (user_id, content_hash, row_ordinal)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_batch ON raw_transaction_facts (batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_user_date ON raw_transaction_facts (user_id, txn_date)`,
		`CREATE TABLE IF NOT EXISTS parsed_transactions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			fact_id      INTEGER NOT NULL UNIQUE REFERENCES raw_transaction_facts (id),
			merchant     TEXT NOT NULL,
			channel      TEXT NOT NULL,
			amount_minor INTEGER NOT NULL,
			direction    TEXT NOT NULL,
			txn_date     TEXT NOT NULL,
			needs_review INTEGER NOT NULL DEFAULT 0,
			parsed_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS enriched_transactions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			parsed_id        INTEGER NOT NULL REFERENCES parsed_transactions (id),
			category_code    TEXT NOT NULL,
			subcategory_code TEXT NOT NULL DEFAULT '',
			confidence       REAL NOT NULL DEFAULT 0,
			match_source     TEXT NOT NULL,
			bucket           TEXT NOT NULL DEFAULT '',
			enriched_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_parsed ON enriched_transactions (parsed_id)`,
		`CREATE TABLE IF NOT EXISTS correction_overrides (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			fact_id          INTEGER NOT NULL REFERENCES raw_transaction_facts (id),
			user_id          TEXT NOT NULL,
			category_code    TEXT NOT NULL,
			subcategory_code TEXT NOT NULL DEFAULT '',
			corrected_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_fact ON correction_overrides (fact_id)`,
		`CREATE TABLE IF NOT EXISTS merchant_directory (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern          TEXT NOT NULL,
			kind             TEXT NOT NULL,
			category_code    TEXT NOT NULL,
			subcategory_code TEXT NOT NULL DEFAULT '',
			priority         INTEGER NOT NULL,
			source           TEXT NOT NULL,
			created_at       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS category_buckets (
			category_code TEXT PRIMARY KEY,
			bucket        TEXT NOT NULL
		)`,
		// The effective view is the single "current" representation of each
		// transaction: override wins over enrichment, enrichment over the
		// uncategorized default. Latest-row subqueries resolve by indexed
		// key, not by scanning history.
		`CREATE VIEW IF NOT EXISTS effective_transactions AS
		SELECT
			f.id AS fact_id,
			f.user_id,
			f.statement_id,
			f.txn_date,
			f.raw_description,
			p.merchant,
			p.channel,
			p.amount_minor,
			p.direction,
			p.needs_review,
			COALESCE(o.category_code, e.category_code, 'uncategorized') AS category_code,
			COALESCE(o.subcategory_code, e.subcategory_code, '') AS subcategory_code,
			COALESCE(b.bucket, '') AS bucket,
			CASE WHEN o.id IS NOT NULL THEN 1.0 ELSE COALESCE(e.confidence, 0) END AS confidence,
			CASE
				WHEN o.id IS NOT NULL THEN 'override'
				WHEN e.id IS NOT NULL THEN 'enrichment'
				ELSE 'none'
			END AS category_source
		FROM raw_transaction_facts f
		JOIN parsed_transactions p ON p.fact_id = f.id
		LEFT JOIN enriched_transactions e
			ON e.id = (SELECT MAX(id) FROM enriched_transactions WHERE parsed_id = p.id)
		LEFT JOIN correction_overrides o
			ON o.id = (SELECT MAX(id) FROM correction_overrides WHERE fact_id = f.id)
		LEFT JOIN category_buckets b
			ON b.category_code = COALESCE(o.category_code, e.category_code, 'uncategorized')`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
