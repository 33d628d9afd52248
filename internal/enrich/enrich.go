// Package enrich assigns category, confidence and bucket to parsed
// transactions by consulting the merchant directory. Enrichment rows are
// append-only; rerunning enrichment after a directory change writes new rows
// that supersede the old ones without erasing them.
package enrich

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"spendsense/pipeline/internal/directory"
	"spendsense/pipeline/internal/fanout"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/store"
)

// ConfidenceChannelFallback is the confidence of channel-based guesses made
// when no directory rule matches.
const ConfidenceChannelFallback = 0.3

// Enricher categorizes parsed transactions against a directory snapshot.
type Enricher struct {
	store              *store.Store
	dir                *directory.Directory
	logger             logging.Logger
	selfTransferTokens []string
	workers            int
}

// New creates an Enricher. workers <= 0 uses NumCPU.
func New(st *store.Store, dir *directory.Directory, logger logging.Logger, selfTransferTokens []string, workers int) *Enricher {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Enricher{
		store:              st,
		dir:                dir,
		logger:             logger,
		selfTransferTokens: selfTransferTokens,
		workers:            workers,
	}
}

// Enrich categorizes one parsed transaction against the current directory
// snapshot. Pure given a fixed snapshot, so a batch can be replayed and must
// produce identical rows.
func (e *Enricher) Enrich(p models.ParsedTransaction) models.EnrichedTransaction {
	if match, ok := e.dir.Match(p.Merchant); ok {
		return models.EnrichedTransaction{
			ParsedID:        p.ID,
			CategoryCode:    match.Rule.CategoryCode,
			SubcategoryCode: match.Rule.SubcategoryCode,
			Confidence:      match.Confidence,
			MatchSource:     strconv.FormatInt(match.Rule.ID, 10),
			Bucket:          e.dir.BucketFor(match.Rule.CategoryCode),
		}
	}

	if p.Channel == models.ChannelUPI && e.looksLikeSelfTransfer(p.Merchant) {
		return models.EnrichedTransaction{
			ParsedID:     p.ID,
			CategoryCode: models.CategoryTransfer,
			Confidence:   ConfidenceChannelFallback,
			MatchSource:  models.MatchSourceChannelFallback,
			Bucket:       e.dir.BucketFor(models.CategoryTransfer),
		}
	}

	return models.EnrichedTransaction{
		ParsedID:     p.ID,
		CategoryCode: models.CategoryUncategorized,
		Confidence:   0,
		MatchSource:  models.MatchSourceUnmatched,
		Bucket:       models.BucketNone,
	}
}

func (e *Enricher) looksLikeSelfTransfer(merchant string) bool {
	for _, token := range e.selfTransferTokens {
		if strings.Contains(merchant, token) {
			return true
		}
	}
	return false
}

// EnrichBatch enriches every parsed row of a batch that has no enrichment
// yet and returns how many rows were written.
func (e *Enricher) EnrichBatch(ctx context.Context, batchID string) (int, error) {
	parsed, err := e.store.UnenrichedParsed(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("load unenriched rows: %w", err)
	}
	if len(parsed) == 0 {
		return 0, nil
	}

	start := time.Now()
	enriched := fanout.Map(ctx, e.workers, parsed, e.Enrich)

	now := time.Now()
	unmatched := 0
	for i := range enriched {
		enriched[i].EnrichedAt = now
		if enriched[i].MatchSource == models.MatchSourceUnmatched {
			unmatched++
		}
	}

	if err := e.store.InsertEnriched(ctx, enriched); err != nil {
		return 0, fmt.Errorf("insert enriched rows: %w", err)
	}

	e.logger.Info("Batch enriched",
		logging.Field{Key: logging.FieldBatch, Value: batchID},
		logging.Field{Key: logging.FieldCount, Value: len(enriched)},
		logging.Field{Key: "unmatched", Value: unmatched},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	return len(enriched), nil
}

// ReEnrichBatch writes a fresh enrichment row for every parsed row of the
// batch, superseding earlier rows. Used after directory changes.
func (e *Enricher) ReEnrichBatch(ctx context.Context, batchID string) (int, error) {
	parsed, err := e.store.ParsedForBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("load parsed rows: %w", err)
	}
	if len(parsed) == 0 {
		return 0, nil
	}

	enriched := fanout.Map(ctx, e.workers, parsed, e.Enrich)
	now := time.Now()
	for i := range enriched {
		enriched[i].EnrichedAt = now
	}
	if err := e.store.InsertEnriched(ctx, enriched); err != nil {
		return 0, fmt.Errorf("insert enriched rows: %w", err)
	}

	e.logger.Info("Batch re-enriched",
		logging.Field{Key: logging.FieldBatch, Value: batchID},
		logging.Field{Key: logging.FieldCount, Value: len(enriched)})
	return len(enriched), nil
}
