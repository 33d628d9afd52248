package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
)

// InsertStatementFacts records the statement registry row together with its
// facts in one transaction. A fact-insert failure or a cancelled context rolls
// the statement row back too, so the registry never lists an upload that wrote
// nothing.
func (s *Store) InsertStatementFacts(ctx context.Context, st models.Statement, facts []models.RawTransactionFact) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin statement insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO statements (id, user_id, file_name, file_type, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		st.ID, st.UserID, st.FileName, string(st.FileType), st.UploadedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert statement: %w", err)
	}

	inserted, err := insertFactsTx(ctx, tx, facts)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit statement insert: %w", err)
	}
	return inserted, nil
}

// StatementsForUser lists the uploaded statements of one user, newest first.
func (s *Store) StatementsForUser(ctx context.Context, userID string) ([]models.Statement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, file_name, file_type, uploaded_at
		 FROM statements WHERE user_id = ? ORDER BY uploaded_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	statements := []models.Statement{}
	for rows.Next() {
		var st models.Statement
		var fileType, uploadedAt string
		if err := rows.Scan(&st.ID, &st.UserID, &st.FileName, &fileType, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		st.FileType = models.FileType(fileType)
		if st.UploadedAt, err = time.Parse(time.RFC3339, uploadedAt); err != nil {
			return nil, fmt.Errorf("parse statement timestamp: %w", err)
		}
		statements = append(statements, st)
	}
	return statements, rows.Err()
}

// InsertFacts writes a batch of facts inside one transaction and returns how
// many rows were actually inserted. Re-ingestion of byte-identical content is
// a no-op thanks to the (user_id, content_hash, row_ordinal) unique key, and
// a cancelled context rolls the whole batch back.
func (s *Store) InsertFacts(ctx context.Context, facts []models.RawTransactionFact) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin fact insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := insertFactsTx(ctx, tx, facts)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit fact insert: %w", err)
	}
	return inserted, nil
}

func insertFactsTx(ctx context.Context, tx *sql.Tx, facts []models.RawTransactionFact) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_transaction_facts
		 (user_id, statement_id, batch_id, txn_date, raw_description,
		  amount_minor, raw_direction, content_hash, row_ordinal, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, content_hash, row_ordinal) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare fact insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, f := range facts {
		res, err := stmt.ExecContext(ctx,
			f.UserID, f.StatementID, f.BatchID,
			f.TxnDate.Format(dateLayout), f.RawDescription,
			f.AmountMinor, f.RawDirection, f.ContentHash, f.RowOrdinal,
			f.IngestedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("insert fact %d: %w", f.RowOrdinal, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("fact rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// UnparsedFacts returns the facts of a batch that have no parsed row yet.
func (s *Store) UnparsedFacts(ctx context.Context, batchID string) ([]models.RawTransactionFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.user_id, f.statement_id, f.batch_id, f.txn_date,
		        f.raw_description, f.amount_minor, f.raw_direction,
		        f.content_hash, f.row_ordinal, f.ingested_at
		 FROM raw_transaction_facts f
		 LEFT JOIN parsed_transactions p ON p.fact_id = f.id
		 WHERE f.batch_id = ? AND p.id IS NULL
		 ORDER BY f.row_ordinal`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query unparsed facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []models.RawTransactionFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func scanFact(rows *sql.Rows) (models.RawTransactionFact, error) {
	var f models.RawTransactionFact
	var txnDate, ingestedAt string
	if err := rows.Scan(&f.ID, &f.UserID, &f.StatementID, &f.BatchID, &txnDate,
		&f.RawDescription, &f.AmountMinor, &f.RawDirection,
		&f.ContentHash, &f.RowOrdinal, &ingestedAt); err != nil {
		return f, fmt.Errorf("scan fact: %w", err)
	}
	var err error
	if f.TxnDate, err = time.Parse(dateLayout, txnDate); err != nil {
		return f, fmt.Errorf("parse fact date: %w", err)
	}
	if f.IngestedAt, err = time.Parse(time.RFC3339, ingestedAt); err != nil {
		return f, fmt.Errorf("parse fact timestamp: %w", err)
	}
	return f, nil
}

// FactOwner returns the owning user of a fact.
func (s *Store) FactOwner(ctx context.Context, factID int64) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM raw_transaction_facts WHERE id = ?`, factID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &pipelineerror.NotFoundError{Entity: "transaction", ID: factID}
	}
	if err != nil {
		return "", fmt.Errorf("query fact owner: %w", err)
	}
	return userID, nil
}

// SumFactsByStatement sums the raw amounts of one statement. Together with
// SumEffectiveByStatement it verifies conservation: the pipeline must not
// create or lose money.
func (s *Store) SumFactsByStatement(ctx context.Context, statementID string) (int64, error) {
	var sum sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount_minor) FROM raw_transaction_facts WHERE statement_id = ?`,
		statementID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum facts: %w", err)
	}
	return sum.Int64, nil
}

// BatchProgress reports the per-stage row counts of one batch.
func (s *Store) BatchProgress(ctx context.Context, batchID string) (models.BatchProgress, error) {
	p := models.BatchProgress{BatchID: batchID}
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(f.id),
			COUNT(p.id),
			COUNT(e.parsed_id)
		 FROM raw_transaction_facts f
		 LEFT JOIN parsed_transactions p ON p.fact_id = f.id
		 LEFT JOIN (SELECT DISTINCT parsed_id FROM enriched_transactions) e
			ON e.parsed_id = p.id
		 WHERE f.batch_id = ?`, batchID).
		Scan(&p.FactCount, &p.ParsedCount, &p.EnrichedCount)
	if err != nil {
		return p, fmt.Errorf("query batch progress: %w", err)
	}
	return p, nil
}
