package store

import (
	"context"
	"fmt"
	"time"

	"spendsense/pipeline/internal/models"
)

// InsertOverride appends a correction override. The previous enrichment rows
// stay untouched; the effective view picks the override up on the next read.
func (s *Store) InsertOverride(ctx context.Context, o models.CorrectionOverride) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO correction_overrides
		 (fact_id, user_id, category_code, subcategory_code, corrected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		o.FactID, o.UserID, o.CategoryCode, o.SubcategoryCode,
		o.CorrectedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert override: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("override id: %w", err)
	}
	return id, nil
}

// CountMatchingCorrections counts the distinct transactions of one user whose
// latest override assigns the given category to the given normalized
// merchant. Drives directory promotion.
func (s *Store) CountMatchingCorrections(ctx context.Context, userID, merchant, categoryCode string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT o.fact_id)
		 FROM correction_overrides o
		 JOIN parsed_transactions p ON p.fact_id = o.fact_id
		 WHERE o.user_id = ?
		   AND p.merchant = ?
		   AND o.category_code = ?
		   AND o.id = (SELECT MAX(id) FROM correction_overrides WHERE fact_id = o.fact_id)`,
		userID, merchant, categoryCode).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matching corrections: %w", err)
	}
	return n, nil
}
