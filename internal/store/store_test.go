package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testFact(user, statement, batch, hash string, ordinal int, amount int64) models.RawTransactionFact {
	return models.RawTransactionFact{
		UserID:         user,
		StatementID:    statement,
		BatchID:        batch,
		TxnDate:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		RawDescription: "UPI/zomato/1234567/pay",
		AmountMinor:    amount,
		RawDirection:   "debit",
		ContentHash:    hash,
		RowOrdinal:     ordinal,
		IngestedAt:     time.Now(),
	}
}

func TestInsertFactsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	facts := []models.RawTransactionFact{
		testFact("u1", "st1", "b1", "hash-a", 0, -45000),
		testFact("u1", "st1", "b1", "hash-a", 1, -120000),
	}

	inserted, err := s.InsertFacts(ctx, facts)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Byte-identical re-upload lands on the same (user, hash, ordinal) keys.
	replay := []models.RawTransactionFact{
		testFact("u1", "st2", "b2", "hash-a", 0, -45000),
		testFact("u1", "st2", "b2", "hash-a", 1, -120000),
	}
	inserted, err = s.InsertFacts(ctx, replay)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	// A different user uploading the same content is not a duplicate.
	other := []models.RawTransactionFact{
		testFact("u2", "st3", "b3", "hash-a", 0, -45000),
	}
	inserted, err = s.InsertFacts(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestInsertStatementFactsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	statement := models.Statement{
		ID:         "st1",
		UserID:     "u1",
		FileName:   "march.csv",
		FileType:   models.FileTypeCSV,
		UploadedAt: time.Now(),
	}
	facts := []models.RawTransactionFact{testFact("u1", "st1", "b1", "hash-a", 0, -45000)}

	inserted, err := s.InsertStatementFacts(ctx, statement, facts)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	statements, err := s.StatementsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "march.csv", statements[0].FileName)
}

func TestInsertStatementFactsRollsBackTogether(t *testing.T) {
	s := openTestStore(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	statement := models.Statement{
		ID:         "st1",
		UserID:     "u1",
		FileName:   "march.csv",
		FileType:   models.FileTypeCSV,
		UploadedAt: time.Now(),
	}
	facts := []models.RawTransactionFact{testFact("u1", "st1", "b1", "hash-a", 0, -45000)}

	_, err := s.InsertStatementFacts(cancelled, statement, facts)
	require.Error(t, err)

	// The registry must not list an upload whose facts never landed.
	statements, err := s.StatementsForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, statements)

	sum, err := s.SumFactsByStatement(context.Background(), "st1")
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestFactOwnerNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.FactOwner(context.Background(), 999)
	var notFound *pipelineerror.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// seedEffectiveRow pushes one fact through parsed (and optionally enriched)
// rows so the effective view has something to resolve.
func seedEffectiveRow(t *testing.T, s *Store, user string, amount int64, category string) int64 {
	t.Helper()
	ctx := context.Background()

	inserted, err := s.InsertFacts(ctx, []models.RawTransactionFact{
		testFact(user, "st-"+category, "b-"+category, "hash-"+category, 0, amount),
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	facts, err := s.UnparsedFacts(ctx, "b-"+category)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	factID := facts[0].ID

	_, err = s.InsertParsed(ctx, []models.ParsedTransaction{{
		FactID:      factID,
		Merchant:    "zomato",
		Channel:     models.ChannelUPI,
		AmountMinor: amount,
		Direction:   models.DirectionDebit,
		TxnDate:     facts[0].TxnDate,
		ParsedAt:    time.Now(),
	}})
	require.NoError(t, err)

	if category != "" {
		parsed, err := s.ParsedForBatch(ctx, "b-"+category)
		require.NoError(t, err)
		require.NoError(t, s.InsertEnriched(ctx, []models.EnrichedTransaction{{
			ParsedID:     parsed[0].ID,
			CategoryCode: category,
			Confidence:   0.8,
			MatchSource:  "1",
			EnrichedAt:   time.Now(),
		}}))
	}
	return factID
}

func TestEffectiveViewOverridePrecedence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	factID := seedEffectiveRow(t, s, "u1", -45000, "food_delivery")

	eff, err := s.EffectiveByFactID(ctx, factID)
	require.NoError(t, err)
	assert.Equal(t, "food_delivery", eff.CategoryCode)
	assert.Equal(t, models.CategorySourceEnrichment, eff.CategorySource)
	assert.InDelta(t, 0.8, eff.Confidence, 0.0001)

	_, err = s.InsertOverride(ctx, models.CorrectionOverride{
		FactID:       factID,
		UserID:       "u1",
		CategoryCode: "groceries",
		CorrectedAt:  time.Now(),
	})
	require.NoError(t, err)

	eff, err = s.EffectiveByFactID(ctx, factID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", eff.CategoryCode)
	assert.Equal(t, models.CategorySourceOverride, eff.CategorySource)
	assert.InDelta(t, 1.0, eff.Confidence, 0.0001)

	// The enrichment row is still there underneath; nothing was rewritten.
	enriched, err := s.LatestEnrichmentsForBatch(ctx, "b-food_delivery")
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	for _, e := range enriched {
		assert.Equal(t, "food_delivery", e.CategoryCode)
	}
}

func TestEffectiveViewUncategorizedDefault(t *testing.T) {
	s := openTestStore(t)

	factID := seedEffectiveRow(t, s, "u1", -45000, "")

	eff, err := s.EffectiveByFactID(context.Background(), factID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryUncategorized, eff.CategoryCode)
	assert.Equal(t, models.CategorySourceNone, eff.CategorySource)
	assert.Zero(t, eff.Confidence)
}

func TestConservationAcrossLayers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedEffectiveRow(t, s, "u1", -45000, "food_delivery")

	rawSum, err := s.SumFactsByStatement(ctx, "st-food_delivery")
	require.NoError(t, err)
	effSum, err := s.SumEffectiveByStatement(ctx, "st-food_delivery")
	require.NoError(t, err)
	assert.Equal(t, rawSum, effSum)
	assert.Equal(t, int64(-45000), rawSum)
}

func TestBatchProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedEffectiveRow(t, s, "u1", -45000, "food_delivery")

	progress, err := s.BatchProgress(ctx, "b-food_delivery")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.FactCount)
	assert.Equal(t, 1, progress.ParsedCount)
	assert.Equal(t, 1, progress.EnrichedCount)
	assert.Equal(t, models.BatchStatusReady, progress.Status())
}

func TestAvailableMonths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedEffectiveRow(t, s, "u1", -45000, "food_delivery")

	months, err := s.AvailableMonths(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03"}, months)

	months, err = s.AvailableMonths(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, months)
	assert.NotNil(t, months)
}
