package insights

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsense/pipeline/internal/models"
)

func TestRecurringMonthlySubscription(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(s)

	// Three charges roughly 30 days apart with an identical amount.
	addTxn(t, s, "u1", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "netflix", -49900, "entertainment")
	addTxn(t, s, "u1", time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), "netflix", -49900, "entertainment")
	addTxn(t, s, "u1", time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), "netflix", -49900, "entertainment")

	report, err := e.Insights(context.Background(), "u1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, report.RecurringTransactions, 1)
	rec := report.RecurringTransactions[0]
	assert.Equal(t, "netflix", rec.Merchant)
	assert.Equal(t, "monthly", rec.Frequency)
	assert.Equal(t, 3, rec.Occurrences)
	assert.True(t, rec.AverageAmount.Equal(decimal.NewFromInt(499)), "avg %s", rec.AverageAmount)
	assert.Equal(t, "2025-03-06", rec.LastTxnDate)
}

func TestRecurringNeedsThreeOccurrences(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(s)

	addTxn(t, s, "u1", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "spotify", -11900, "entertainment")
	addTxn(t, s, "u1", time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), "spotify", -11900, "entertainment")

	report, err := e.Insights(context.Background(), "u1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, report.RecurringTransactions)
}

func TestRecurringRejectsVariableAmounts(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(s)

	// Same cadence, but the amounts swing far beyond the variation cutoff.
	addTxn(t, s, "u1", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "bigbasket", -50000, "groceries")
	addTxn(t, s, "u1", time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), "bigbasket", -250000, "groceries")
	addTxn(t, s, "u1", time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), "bigbasket", -90000, "groceries")

	report, err := e.Insights(context.Background(), "u1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, report.RecurringTransactions)
}

func TestRecurringRejectsIrregularCadence(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(s)

	// Stable amount, but gaps of 10 and 70 days fit no cadence window.
	addTxn(t, s, "u1", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "cafe", -30000, "food_delivery")
	addTxn(t, s, "u1", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "cafe", -30000, "food_delivery")
	addTxn(t, s, "u1", time.Date(2025, 3, 26, 0, 0, 0, 0, time.UTC), "cafe", -30000, "food_delivery")

	report, err := e.Insights(context.Background(), "u1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, report.RecurringTransactions)
}

func TestRecurringWeekly(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(s)

	for week := 0; week < 4; week++ {
		addTxn(t, s, "u1",
			time.Date(2025, 3, 3+7*week, 0, 0, 0, 0, time.UTC),
			"gym", -25000, "entertainment")
	}

	report, err := e.Insights(context.Background(), "u1",
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, report.RecurringTransactions, 1)
	assert.Equal(t, "weekly", report.RecurringTransactions[0].Frequency)
}

func txnsWithAmounts(amounts ...int64) []models.EffectiveTransaction {
	txns := make([]models.EffectiveTransaction, 0, len(amounts))
	for _, a := range amounts {
		txns = append(txns, models.EffectiveTransaction{AmountMinor: a})
	}
	return txns
}

func TestAmountVariation(t *testing.T) {
	stable := amountVariation(txnsWithAmounts(-49900, -49900, -49900))
	assert.Less(t, stable, 0.01)

	variable := amountVariation(txnsWithAmounts(-50000, -250000, -90000))
	assert.Greater(t, variable, 0.15)
}
