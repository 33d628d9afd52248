package enrich

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsense/pipeline/internal/directory"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/parser"
	"spendsense/pipeline/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logging.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDirectory(t *testing.T, st *store.Store) *directory.Directory {
	t.Helper()
	ctx := context.Background()

	_, err := st.AppendRule(ctx, models.MerchantDirectoryEntry{
		Pattern: "zomato", Kind: models.PatternPrefix,
		CategoryCode: "food_delivery", Priority: 100,
		Source: models.RuleSourceSeed, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceBuckets(ctx, map[string]models.Bucket{
		"food_delivery": models.BucketWants,
	}))

	dir, err := directory.Open(ctx, st, logging.NewMockLogger())
	require.NoError(t, err)
	return dir
}

// ingestAndParse pushes raw descriptions through fact insertion and parsing
// so enrichment has real parsed rows to work on.
func ingestAndParse(t *testing.T, st *store.Store, batchID string, descriptions ...string) {
	t.Helper()
	ctx := context.Background()

	facts := make([]models.RawTransactionFact, 0, len(descriptions))
	for i, desc := range descriptions {
		facts = append(facts, models.RawTransactionFact{
			UserID:         "u1",
			StatementID:    "st-" + batchID,
			BatchID:        batchID,
			TxnDate:        time.Date(2025, 3, 1+i, 0, 0, 0, 0, time.UTC),
			RawDescription: desc,
			AmountMinor:    -45000,
			RawDirection:   "debit",
			ContentHash:    "hash-" + batchID,
			RowOrdinal:     i,
			IngestedAt:     time.Now(),
		})
	}
	_, err := st.InsertFacts(ctx, facts)
	require.NoError(t, err)

	p := parser.New(st, logging.NewMockLogger(), 1)
	_, err = p.ParseBatch(ctx, batchID)
	require.NoError(t, err)
}

func TestEnrichBatchRuleMatch(t *testing.T) {
	st := openTestStore(t)
	dir := seedDirectory(t, st)
	ctx := context.Background()

	ingestAndParse(t, st, "b1", "UPI/zomato/4521/pay")

	e := New(st, dir, logging.NewMockLogger(), nil, 1)
	count, err := e.EnrichBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	enriched, err := st.LatestEnrichmentsForBatch(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	for _, row := range enriched {
		assert.Equal(t, "food_delivery", row.CategoryCode)
		assert.Equal(t, directory.ConfidencePrefix, row.Confidence)
		assert.Equal(t, models.BucketWants, row.Bucket)
		assert.NotEqual(t, models.MatchSourceUnmatched, row.MatchSource)
	}
}

func TestEnrichBatchUnmatched(t *testing.T) {
	st := openTestStore(t)
	dir := seedDirectory(t, st)
	ctx := context.Background()

	ingestAndParse(t, st, "b1", "POS OBSCURE LOCAL SHOP")

	e := New(st, dir, logging.NewMockLogger(), nil, 1)
	_, err := e.EnrichBatch(ctx, "b1")
	require.NoError(t, err)

	enriched, err := st.LatestEnrichmentsForBatch(ctx, "b1")
	require.NoError(t, err)
	for _, row := range enriched {
		assert.Equal(t, models.CategoryUncategorized, row.CategoryCode)
		assert.Zero(t, row.Confidence)
		assert.Equal(t, models.MatchSourceUnmatched, row.MatchSource)
		assert.Equal(t, models.BucketNone, row.Bucket)
	}
}

func TestEnrichSelfTransferFallback(t *testing.T) {
	st := openTestStore(t)
	dir := seedDirectory(t, st)
	ctx := context.Background()

	ingestAndParse(t, st, "b1", "UPI/own account transfer/998877/x")

	e := New(st, dir, logging.NewMockLogger(), []string{"own account", "self"}, 1)
	_, err := e.EnrichBatch(ctx, "b1")
	require.NoError(t, err)

	enriched, err := st.LatestEnrichmentsForBatch(ctx, "b1")
	require.NoError(t, err)
	for _, row := range enriched {
		assert.Equal(t, models.CategoryTransfer, row.CategoryCode)
		assert.Equal(t, ConfidenceChannelFallback, row.Confidence)
		assert.Equal(t, models.MatchSourceChannelFallback, row.MatchSource)
	}
}

func TestEnrichBatchDeterministic(t *testing.T) {
	st := openTestStore(t)
	dir := seedDirectory(t, st)
	ctx := context.Background()

	ingestAndParse(t, st, "b1",
		"UPI/zomato/4521/pay", "POS OBSCURE SHOP", "UPI/zomato gold/999/pay")

	e := New(st, dir, logging.NewMockLogger(), nil, 4)
	_, err := e.EnrichBatch(ctx, "b1")
	require.NoError(t, err)
	first, err := st.LatestEnrichmentsForBatch(ctx, "b1")
	require.NoError(t, err)

	// Replaying with an unchanged directory supersedes every row with an
	// identical categorization.
	_, err = e.ReEnrichBatch(ctx, "b1")
	require.NoError(t, err)
	second, err := st.LatestEnrichmentsForBatch(ctx, "b1")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for parsedID, before := range first {
		after := second[parsedID]
		assert.Greater(t, after.ID, before.ID)
		assert.Equal(t, before.CategoryCode, after.CategoryCode)
		assert.Equal(t, before.Confidence, after.Confidence)
		assert.Equal(t, before.MatchSource, after.MatchSource)
		assert.Equal(t, before.Bucket, after.Bucket)
	}
}

func TestEnrichBatchSkipsAlreadyEnriched(t *testing.T) {
	st := openTestStore(t)
	dir := seedDirectory(t, st)
	ctx := context.Background()

	ingestAndParse(t, st, "b1", "UPI/zomato/4521/pay")

	e := New(st, dir, logging.NewMockLogger(), nil, 1)
	count, err := e.EnrichBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = e.EnrichBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
