package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spendsense/pipeline/internal/models"
)

// InsertParsed writes parsed rows for a batch. The fact_id unique constraint
// enforces at most one parsed row per fact; replays are no-ops.
func (s *Store) InsertParsed(ctx context.Context, rows []models.ParsedTransaction) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin parsed insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parsed_transactions
		 (fact_id, merchant, channel, amount_minor, direction, txn_date, needs_review, parsed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fact_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare parsed insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, p := range rows {
		res, err := stmt.ExecContext(ctx,
			p.FactID, p.Merchant, string(p.Channel), p.AmountMinor,
			string(p.Direction), p.TxnDate.Format(dateLayout),
			boolToInt(p.NeedsReview), p.ParsedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("insert parsed for fact %d: %w", p.FactID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("parsed rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit parsed insert: %w", err)
	}
	return inserted, nil
}

// UnenrichedParsed returns the parsed rows of a batch that have no enrichment
// row yet.
func (s *Store) UnenrichedParsed(ctx context.Context, batchID string) ([]models.ParsedTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.fact_id, p.merchant, p.channel, p.amount_minor,
		        p.direction, p.txn_date, p.needs_review, p.parsed_at
		 FROM parsed_transactions p
		 JOIN raw_transaction_facts f ON f.id = p.fact_id
		 LEFT JOIN enriched_transactions e ON e.parsed_id = p.id
		 WHERE f.batch_id = ? AND e.id IS NULL
		 ORDER BY p.id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query unenriched parsed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var parsed []models.ParsedTransaction
	for rows.Next() {
		p, err := scanParsed(rows)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}
	return parsed, rows.Err()
}

// ParsedForBatch returns every parsed row of a batch in row order.
func (s *Store) ParsedForBatch(ctx context.Context, batchID string) ([]models.ParsedTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.fact_id, p.merchant, p.channel, p.amount_minor,
		        p.direction, p.txn_date, p.needs_review, p.parsed_at
		 FROM parsed_transactions p
		 JOIN raw_transaction_facts f ON f.id = p.fact_id
		 WHERE f.batch_id = ?
		 ORDER BY p.id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query parsed for batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var parsed []models.ParsedTransaction
	for rows.Next() {
		p, err := scanParsed(rows)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}
	return parsed, rows.Err()
}

// MerchantForFact returns the normalized merchant of a fact's parsed row.
func (s *Store) MerchantForFact(ctx context.Context, factID int64) (string, error) {
	var merchant string
	err := s.db.QueryRowContext(ctx,
		`SELECT merchant FROM parsed_transactions WHERE fact_id = ?`, factID).Scan(&merchant)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query merchant for fact: %w", err)
	}
	return merchant, nil
}

func scanParsed(rows *sql.Rows) (models.ParsedTransaction, error) {
	var p models.ParsedTransaction
	var channel, direction, txnDate, parsedAt string
	var needsReview int
	if err := rows.Scan(&p.ID, &p.FactID, &p.Merchant, &channel, &p.AmountMinor,
		&direction, &txnDate, &needsReview, &parsedAt); err != nil {
		return p, fmt.Errorf("scan parsed: %w", err)
	}
	p.Channel = models.Channel(channel)
	p.Direction = models.Direction(direction)
	p.NeedsReview = needsReview != 0
	var err error
	if p.TxnDate, err = time.Parse(dateLayout, txnDate); err != nil {
		return p, fmt.Errorf("parse parsed date: %w", err)
	}
	if p.ParsedAt, err = time.Parse(time.RFC3339, parsedAt); err != nil {
		return p, fmt.Errorf("parse parsed timestamp: %w", err)
	}
	return p, nil
}

// InsertEnriched appends enrichment rows. Existing rows for the same parsed
// id are never updated; the newest row supersedes, keeping the audit trail.
func (s *Store) InsertEnriched(ctx context.Context, rows []models.EnrichedTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enriched insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO enriched_transactions
		 (parsed_id, category_code, subcategory_code, confidence, match_source, bucket, enriched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare enriched insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range rows {
		if _, err := stmt.ExecContext(ctx,
			e.ParsedID, e.CategoryCode, e.SubcategoryCode, e.Confidence,
			e.MatchSource, string(e.Bucket),
			e.EnrichedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert enriched for parsed %d: %w", e.ParsedID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enriched insert: %w", err)
	}
	return nil
}

// LatestEnrichmentsForBatch returns the current enrichment row per parsed id
// of a batch, keyed by parsed id. Used by the determinism tests.
func (s *Store) LatestEnrichmentsForBatch(ctx context.Context, batchID string) (map[int64]models.EnrichedTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.parsed_id, e.category_code, e.subcategory_code,
		        e.confidence, e.match_source, e.bucket, e.enriched_at
		 FROM enriched_transactions e
		 JOIN parsed_transactions p ON p.id = e.parsed_id
		 JOIN raw_transaction_facts f ON f.id = p.fact_id
		 WHERE f.batch_id = ?
		   AND e.id = (SELECT MAX(id) FROM enriched_transactions WHERE parsed_id = e.parsed_id)`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("query latest enrichments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]models.EnrichedTransaction)
	for rows.Next() {
		var e models.EnrichedTransaction
		var bucket, enrichedAt string
		if err := rows.Scan(&e.ID, &e.ParsedID, &e.CategoryCode, &e.SubcategoryCode,
			&e.Confidence, &e.MatchSource, &bucket, &enrichedAt); err != nil {
			return nil, fmt.Errorf("scan enrichment: %w", err)
		}
		e.Bucket = models.Bucket(bucket)
		if e.EnrichedAt, err = time.Parse(time.RFC3339, enrichedAt); err != nil {
			return nil, fmt.Errorf("parse enrichment timestamp: %w", err)
		}
		out[e.ParsedID] = e
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
