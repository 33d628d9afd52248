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

const effectiveColumns = `fact_id, user_id, statement_id, txn_date, raw_description,
	merchant, channel, amount_minor, direction, needs_review,
	category_code, subcategory_code, bucket, confidence, category_source`

// EffectiveByFactID resolves the current view of one transaction.
func (s *Store) EffectiveByFactID(ctx context.Context, factID int64) (*models.EffectiveTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+effectiveColumns+` FROM effective_transactions WHERE fact_id = ?`, factID)
	et, err := scanEffectiveRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &pipelineerror.NotFoundError{Entity: "transaction", ID: factID}
	}
	if err != nil {
		return nil, err
	}
	return &et, nil
}

// EffectiveList returns a page of a user's effective transactions, newest
// first.
func (s *Store) EffectiveList(ctx context.Context, userID string, limit, offset int) ([]models.EffectiveTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+effectiveColumns+`
		 FROM effective_transactions
		 WHERE user_id = ?
		 ORDER BY txn_date DESC, fact_id DESC
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query effective list: %w", err)
	}
	return collectEffective(rows)
}

// EffectiveRange returns a user's effective transactions within [from, to],
// inclusive, in date order.
func (s *Store) EffectiveRange(ctx context.Context, userID string, from, to time.Time) ([]models.EffectiveTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+effectiveColumns+`
		 FROM effective_transactions
		 WHERE user_id = ? AND txn_date >= ? AND txn_date <= ?
		 ORDER BY txn_date, fact_id`,
		userID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query effective range: %w", err)
	}
	return collectEffective(rows)
}

// AvailableMonths lists the distinct YYYY-MM months with data for a user,
// newest first.
func (s *Store) AvailableMonths(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT substr(txn_date, 1, 7) AS month
		 FROM raw_transaction_facts
		 WHERE user_id = ?
		 ORDER BY month DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query available months: %w", err)
	}
	defer func() { _ = rows.Close() }()

	months := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// SumEffectiveByStatement sums the resolved amounts of one statement.
func (s *Store) SumEffectiveByStatement(ctx context.Context, statementID string) (int64, error) {
	var sum sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount_minor) FROM effective_transactions WHERE statement_id = ?`,
		statementID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum effective: %w", err)
	}
	return sum.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEffectiveRow(r rowScanner) (models.EffectiveTransaction, error) {
	var et models.EffectiveTransaction
	var txnDate, channel, direction string
	var needsReview int
	if err := r.Scan(&et.FactID, &et.UserID, &et.StatementID, &txnDate,
		&et.RawDescription, &et.Merchant, &channel, &et.AmountMinor,
		&direction, &needsReview, &et.CategoryCode, &et.SubcategoryCode,
		(*string)(&et.Bucket), &et.Confidence, &et.CategorySource); err != nil {
		return et, err
	}
	et.Channel = models.Channel(channel)
	et.Direction = models.Direction(direction)
	et.NeedsReview = needsReview != 0
	var err error
	if et.TxnDate, err = time.Parse(dateLayout, txnDate); err != nil {
		return et, fmt.Errorf("parse effective date: %w", err)
	}
	return et, nil
}

func collectEffective(rows *sql.Rows) ([]models.EffectiveTransaction, error) {
	defer func() { _ = rows.Close() }()

	var out []models.EffectiveTransaction
	for rows.Next() {
		et, err := scanEffectiveRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan effective: %w", err)
		}
		out = append(out, et)
	}
	return out, rows.Err()
}
