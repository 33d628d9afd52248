package store

import (
	"context"
	"fmt"
	"time"

	"spendsense/pipeline/internal/models"
)

// ListRules returns every merchant directory entry, highest priority first.
func (s *Store) ListRules(ctx context.Context) ([]models.MerchantDirectoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, kind, category_code, subcategory_code, priority, source, created_at
		 FROM merchant_directory
		 ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query directory rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []models.MerchantDirectoryEntry
	for rows.Next() {
		var r models.MerchantDirectoryEntry
		var kind, createdAt string
		if err := rows.Scan(&r.ID, &r.Pattern, &kind, &r.CategoryCode,
			&r.SubcategoryCode, &r.Priority, &r.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan directory rule: %w", err)
		}
		r.Kind = models.PatternKind(kind)
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse rule timestamp: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// AppendRule adds a directory entry. Entries are never deleted or updated;
// writes are serialized so concurrent promotions cannot interleave.
func (s *Store) AppendRule(ctx context.Context, r models.MerchantDirectoryEntry) (int64, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO merchant_directory
		 (pattern, kind, category_code, subcategory_code, priority, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Pattern, string(r.Kind), r.CategoryCode, r.SubcategoryCode,
		r.Priority, r.Source, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("append directory rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("directory rule id: %w", err)
	}
	return id, nil
}

// HasRuleForPattern reports whether any entry already carries this exact
// pattern text.
func (s *Store) HasRuleForPattern(ctx context.Context, pattern string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM merchant_directory WHERE pattern = ?`, pattern).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query rule for pattern: %w", err)
	}
	return n > 0, nil
}

// ReplaceBuckets reloads the category to bucket table from a seed.
func (s *Store) ReplaceBuckets(ctx context.Context, buckets map[string]models.Bucket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bucket replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for category, bucket := range buckets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category_buckets (category_code, bucket) VALUES (?, ?)
			 ON CONFLICT (category_code) DO UPDATE SET bucket = excluded.bucket`,
			category, string(bucket)); err != nil {
			return fmt.Errorf("upsert bucket for %s: %w", category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bucket replace: %w", err)
	}
	return nil
}

// Buckets returns the category to bucket table.
func (s *Store) Buckets(ctx context.Context) (map[string]models.Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category_code, bucket FROM category_buckets`)
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]models.Bucket)
	for rows.Next() {
		var category, bucket string
		if err := rows.Scan(&category, &bucket); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out[category] = models.Bucket(bucket)
	}
	return out, rows.Err()
}
