package parser

import (
	"context"
	"fmt"
	"time"

	"spendsense/pipeline/internal/fanout"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/store"
)

// Parser turns raw facts of a batch into parsed transactions.
type Parser struct {
	store   *store.Store
	logger  logging.Logger
	workers int
}

// New creates a Parser. workers <= 0 uses NumCPU.
func New(st *store.Store, logger logging.Logger, workers int) *Parser {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Parser{store: st, logger: logger, workers: workers}
}

// ParseFact is the pure fact-to-parsed transform.
func ParseFact(f models.RawTransactionFact) models.ParsedTransaction {
	direction, needsReview := inferDirection(f.AmountMinor, f.RawDirection)
	return models.ParsedTransaction{
		FactID:      f.ID,
		Merchant:    NormalizeMerchant(f.RawDescription),
		Channel:     InferChannel(f.RawDescription),
		AmountMinor: f.AmountMinor,
		Direction:   direction,
		TxnDate:     f.TxnDate,
		NeedsReview: needsReview,
	}
}

// ParseBatch parses every not-yet-parsed fact of a batch and returns how many
// rows were written. Rows flagged needs_review are logged and kept, never
// dropped; an ambiguous row must stay visible so the review workflow can pick
// it up.
func (p *Parser) ParseBatch(ctx context.Context, batchID string) (int, error) {
	facts, err := p.store.UnparsedFacts(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("load unparsed facts: %w", err)
	}
	if len(facts) == 0 {
		return 0, nil
	}

	start := time.Now()
	parsed := fanout.Map(ctx, p.workers, facts, ParseFact)

	now := time.Now()
	flagged := 0
	for i := range parsed {
		parsed[i].ParsedAt = now
		if parsed[i].NeedsReview {
			flagged++
			p.logger.Warn("Conflicting direction signals, keeping best-effort guess",
				logging.Field{Key: logging.FieldFact, Value: parsed[i].FactID},
				logging.Field{Key: logging.FieldBatch, Value: batchID})
		}
	}

	count, err := p.store.InsertParsed(ctx, parsed)
	if err != nil {
		return 0, fmt.Errorf("insert parsed rows: %w", err)
	}

	p.logger.Info("Batch parsed",
		logging.Field{Key: logging.FieldBatch, Value: batchID},
		logging.Field{Key: logging.FieldCount, Value: count},
		logging.Field{Key: "needs_review", Value: flagged},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	return count, nil
}
