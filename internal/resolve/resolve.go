// Package resolve serves the effective view of transactions: the merge of
// immutable facts, parsed fields, the latest enrichment and any user
// override. The merge happens at read time, so a correction or a directory
// rerun is visible on the next read without rewriting history.
package resolve

import (
	"context"
	"fmt"
	"time"

	"spendsense/pipeline/internal/dateutils"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/store"
)

// Resolver reads effective transactions.
type Resolver struct {
	store  *store.Store
	logger logging.Logger
}

// New creates a Resolver.
func New(st *store.Store, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Resolver{store: st, logger: logger}
}

// ByFactID returns the effective view of one transaction.
func (r *Resolver) ByFactID(ctx context.Context, factID int64) (*models.EffectiveTransaction, error) {
	return r.store.EffectiveByFactID(ctx, factID)
}

// List returns a user's effective transactions, newest first.
func (r *Resolver) List(ctx context.Context, userID string, limit, offset int) ([]models.EffectiveTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return r.store.EffectiveList(ctx, userID, limit, offset)
}

// Range returns a user's effective transactions between two dates inclusive.
func (r *Resolver) Range(ctx context.Context, userID string, from, to time.Time) ([]models.EffectiveTransaction, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: end %s before start %s",
			to.Format(dateutils.DateLayoutISO), from.Format(dateutils.DateLayoutISO))
	}
	return r.store.EffectiveRange(ctx, userID, from, to)
}

// Month returns a user's effective transactions for one YYYY-MM month.
func (r *Resolver) Month(ctx context.Context, userID, month string) ([]models.EffectiveTransaction, error) {
	start, end, err := dateutils.MonthRange(month)
	if err != nil {
		return nil, err
	}
	return r.store.EffectiveRange(ctx, userID, start, end)
}

// AvailableMonths returns the months a user has data for, newest first.
func (r *Resolver) AvailableMonths(ctx context.Context, userID string) ([]string, error) {
	return r.store.AvailableMonths(ctx, userID)
}

// BatchStatus reports how far a batch has progressed through the pipeline.
func (r *Resolver) BatchStatus(ctx context.Context, batchID string) (models.BatchProgress, error) {
	return r.store.BatchProgress(ctx, batchID)
}
