package insights

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"spendsense/pipeline/internal/dateutils"
	"spendsense/pipeline/internal/models"
)

// frequencyWindows classify the modal gap between consecutive occurrences.
// Windows are in days, checked in order.
var frequencyWindows = []struct {
	name   string
	center int
	slack  int
}{
	{"weekly", 7, 2},
	{"monthly", 30, 3},
	{"quarterly", 91, 7},
	{"yearly", 365, 10},
}

// detectRecurring finds merchants whose debits look like subscriptions or
// bills: enough occurrences, stable amounts and a regular cadence.
func (e *Engine) detectRecurring(txns []models.EffectiveTransaction) []models.RecurringTransaction {
	groups := make(map[string][]models.EffectiveTransaction)
	for _, txn := range txns {
		if txn.Direction != models.DirectionDebit || txn.Merchant == "" {
			continue
		}
		groups[txn.Merchant] = append(groups[txn.Merchant], txn)
	}

	var recurring []models.RecurringTransaction
	for merchant, group := range groups {
		if len(group) < e.params.RecurringMinOccurrences {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].TxnDate.Before(group[j].TxnDate)
		})

		if amountVariation(group) >= e.params.RecurringCVCutoff {
			continue
		}
		frequency, ok := classifyCadence(group)
		if !ok {
			continue
		}

		var sum decimal.Decimal
		for _, txn := range group {
			sum = sum.Add(models.MinorToDecimal(-txn.AmountMinor))
		}

		recurring = append(recurring, models.RecurringTransaction{
			Merchant:      merchant,
			Frequency:     frequency,
			Occurrences:   len(group),
			AverageAmount: sum.Div(decimal.NewFromInt(int64(len(group)))),
			LastTxnDate:   group[len(group)-1].TxnDate.Format(dateutils.DateLayoutISO),
		})
	}

	sort.Slice(recurring, func(i, j int) bool {
		return recurring[i].Merchant < recurring[j].Merchant
	})
	return recurring
}

// amountVariation is the coefficient of variation of the group's amounts.
// Stable subscription amounts sit well under the cutoff; variable spend at
// the same merchant does not.
func amountVariation(group []models.EffectiveTransaction) float64 {
	mean := 0.0
	for _, txn := range group {
		mean += math.Abs(float64(txn.AmountMinor))
	}
	mean /= float64(len(group))
	if mean == 0 {
		return math.Inf(1)
	}

	variance := 0.0
	for _, txn := range group {
		d := math.Abs(float64(txn.AmountMinor)) - mean
		variance += d * d
	}
	variance /= float64(len(group))

	return math.Sqrt(variance) / mean
}

// classifyCadence reduces the gaps between consecutive occurrences to their
// modal value and names the cadence window it falls into.
func classifyCadence(group []models.EffectiveTransaction) (string, bool) {
	gapCounts := make(map[int]int)
	for i := 1; i < len(group); i++ {
		gap := int(group[i].TxnDate.Sub(group[i-1].TxnDate).Hours() / 24)
		gapCounts[gap]++
	}

	modalGap, modalCount := 0, 0
	for gap, count := range gapCounts {
		if count > modalCount || (count == modalCount && gap < modalGap) {
			modalGap, modalCount = gap, count
		}
	}

	for _, w := range frequencyWindows {
		if modalGap >= w.center-w.slack && modalGap <= w.center+w.slack {
			return w.name, true
		}
	}
	return "", false
}
