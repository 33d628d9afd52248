// Package insights aggregates effective transactions into KPIs, breakdowns,
// trends and recurring-payment detection. All money math is decimal; ratios
// against zero denominators yield zero, never NaN. Rounding happens at the
// presentation layer, not here.
package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendsense/pipeline/internal/dateutils"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/store"
)

var hundred = decimal.NewFromInt(100)

// Params are the tunable thresholds of the engine.
type Params struct {
	WantsThreshold          float64
	WantsLabels             []WantsLabel
	RecurringMinOccurrences int
	RecurringCVCutoff       float64
	UncategorizedAlertPct   float64
	TopCategories           int
}

// WantsLabel maps an upper bound on the wants ratio to a display label. The
// first entry whose bound exceeds the ratio wins, so entries must be ordered
// by ascending bound.
type WantsLabel struct {
	UpperBound float64
	Label      string
}

// Engine computes reports over the effective transaction view.
type Engine struct {
	store  *store.Store
	logger logging.Logger
	params Params
}

// New creates an Engine. Zero-valued params fall back to the documented
// defaults.
func New(st *store.Store, logger logging.Logger, params Params) *Engine {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if params.RecurringMinOccurrences <= 0 {
		params.RecurringMinOccurrences = 3
	}
	if params.RecurringCVCutoff <= 0 {
		params.RecurringCVCutoff = 0.15
	}
	if params.UncategorizedAlertPct <= 0 {
		params.UncategorizedAlertPct = 10.0
	}
	if params.TopCategories <= 0 {
		params.TopCategories = 5
	}
	if params.WantsThreshold <= 0 {
		params.WantsThreshold = 0.4
	}
	if len(params.WantsLabels) == 0 {
		params.WantsLabels = []WantsLabel{
			{UpperBound: 0.25, Label: "comfortable"},
			{UpperBound: 0.40, Label: "balanced"},
			{UpperBound: 0.60, Label: "stretched"},
			{UpperBound: 1.01, Label: "overspent"},
		}
	}
	return &Engine{store: st, logger: logger, params: params}
}

// KPIs computes the headline report for one YYYY-MM month. The change
// percentages compare against the immediately preceding month; a category
// with no prior spend reports nil instead of a division by zero.
func (e *Engine) KPIs(ctx context.Context, userID, month string) (*models.KPIReport, error) {
	start, end, err := dateutils.MonthRange(month)
	if err != nil {
		return nil, err
	}

	current, err := e.store.EffectiveRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load month transactions: %w", err)
	}
	prior, err := e.store.EffectiveRange(ctx, userID, start.AddDate(0, -1, 0), start.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("load prior month transactions: %w", err)
	}

	report := e.buildKPIs(current, prior)
	report.Month = month

	e.logger.Debug("KPI report computed",
		logging.Field{Key: logging.FieldUser, Value: userID},
		logging.Field{Key: "month", Value: month},
		logging.Field{Key: logging.FieldCount, Value: len(current)})
	return report, nil
}

func (e *Engine) buildKPIs(current, prior []models.EffectiveTransaction) *models.KPIReport {
	var income, needs, wants, assets decimal.Decimal
	for _, txn := range current {
		switch txn.Bucket {
		case models.BucketIncome:
			if txn.AmountMinor > 0 {
				income = income.Add(models.MinorToDecimal(txn.AmountMinor))
			}
		case models.BucketNeeds:
			needs = needs.Add(spendMagnitude(txn))
		case models.BucketWants:
			wants = wants.Add(spendMagnitude(txn))
		case models.BucketAssets:
			assets = assets.Add(spendMagnitude(txn))
		}
	}

	savingsRate := decimal.Zero
	if income.IsPositive() {
		savingsRate = income.Sub(needs).Sub(wants).Div(income)
	}

	uncatPct, uncatHot := e.uncategorizedShare(current)

	return &models.KPIReport{
		IncomeAmount:     income,
		NeedsAmount:      needs,
		WantsAmount:      wants,
		AssetsAmount:     assets,
		SavingsRate:      savingsRate,
		WantsGauge:       e.wantsGauge(needs, wants),
		TopCategories:    e.topCategories(current, prior),
		UncategorizedPct: uncatPct,
		UncategorizedHot: uncatHot,
	}
}

func (e *Engine) wantsGauge(needs, wants decimal.Decimal) models.WantsGauge {
	total := needs.Add(wants)
	ratio := decimal.Zero
	if total.IsPositive() {
		ratio = wants.Div(total)
	}

	// Band upper bounds are inclusive and the alert threshold is exclusive,
	// so a ratio sitting exactly on a boundary stays in the calmer band and
	// does not cross.
	label := ""
	for _, wl := range e.params.WantsLabels {
		if ratio.LessThanOrEqual(decimal.NewFromFloat(wl.UpperBound)) {
			label = wl.Label
			break
		}
	}
	if label == "" && len(e.params.WantsLabels) > 0 {
		label = e.params.WantsLabels[len(e.params.WantsLabels)-1].Label
	}

	return models.WantsGauge{
		Ratio:            ratio,
		Label:            label,
		ThresholdCrossed: ratio.GreaterThan(decimal.NewFromFloat(e.params.WantsThreshold)),
	}
}

type categoryTotal struct {
	amount decimal.Decimal
	count  int
}

// spendByCategory sums debit magnitudes per category. Transfers between own
// accounts are not spending and stay out of every spend aggregate.
func spendByCategory(txns []models.EffectiveTransaction) map[string]categoryTotal {
	totals := make(map[string]categoryTotal)
	for _, txn := range txns {
		if !isSpend(txn) {
			continue
		}
		t := totals[txn.CategoryCode]
		t.amount = t.amount.Add(spendMagnitude(txn))
		t.count++
		totals[txn.CategoryCode] = t
	}
	return totals
}

func isSpend(txn models.EffectiveTransaction) bool {
	return txn.Direction == models.DirectionDebit &&
		txn.CategoryCode != models.CategoryTransfer &&
		txn.Bucket != models.BucketIncome
}

func spendMagnitude(txn models.EffectiveTransaction) decimal.Decimal {
	if txn.AmountMinor >= 0 {
		return decimal.Zero
	}
	return models.MinorToDecimal(-txn.AmountMinor)
}

func (e *Engine) topCategories(current, prior []models.EffectiveTransaction) []models.TopCategory {
	totals := spendByCategory(current)
	priorTotals := spendByCategory(prior)

	top := make([]models.TopCategory, 0, len(totals))
	for code, t := range totals {
		entry := models.TopCategory{CategoryCode: code, Amount: t.amount, Count: t.count}
		if prev, ok := priorTotals[code]; ok && prev.amount.IsPositive() {
			change := t.amount.Sub(prev.amount).Div(prev.amount).Mul(hundred)
			entry.ChangePct = &change
		}
		top = append(top, entry)
	}

	sort.Slice(top, func(i, j int) bool {
		if !top[i].Amount.Equal(top[j].Amount) {
			return top[i].Amount.GreaterThan(top[j].Amount)
		}
		return top[i].CategoryCode < top[j].CategoryCode
	})

	if len(top) > e.params.TopCategories {
		top = top[:e.params.TopCategories]
	}
	return top
}

// uncategorizedShare is the uncategorized portion of total spend, as a
// percentage, plus whether it crosses the alert threshold.
func (e *Engine) uncategorizedShare(txns []models.EffectiveTransaction) (decimal.Decimal, bool) {
	var total, uncategorized decimal.Decimal
	for _, txn := range txns {
		if !isSpend(txn) {
			continue
		}
		m := spendMagnitude(txn)
		total = total.Add(m)
		if txn.CategoryCode == models.CategoryUncategorized {
			uncategorized = uncategorized.Add(m)
		}
	}
	if !total.IsPositive() {
		return decimal.Zero, false
	}
	pct := uncategorized.Div(total).Mul(hundred)
	return pct, pct.GreaterThan(decimal.NewFromFloat(e.params.UncategorizedAlertPct))
}

// Insights computes the full insight set for a date range. An empty range
// yields zeroed structures, never an error.
func (e *Engine) Insights(ctx context.Context, userID string, start, end time.Time) (*models.InsightsReport, error) {
	txns, err := e.store.EffectiveRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load range transactions: %w", err)
	}

	uncatPct, uncatHot := e.uncategorizedShare(txns)
	report := &models.InsightsReport{
		CategoryBreakdown:     e.categoryBreakdown(txns),
		RecurringTransactions: e.detectRecurring(txns),
		SpendingTrends:        spendingTrends(txns),
		SpendingPatterns:      dayOfWeekPatterns(txns),
		UncategorizedPct:      uncatPct,
		UncategorizedHot:      uncatHot,
	}

	e.logger.Debug("Insights computed",
		logging.Field{Key: logging.FieldUser, Value: userID},
		logging.Field{Key: logging.FieldCount, Value: len(txns)})
	return report, nil
}

func (e *Engine) categoryBreakdown(txns []models.EffectiveTransaction) []models.CategoryBreakdown {
	totals := spendByCategory(txns)

	var grandTotal decimal.Decimal
	for _, t := range totals {
		grandTotal = grandTotal.Add(t.amount)
	}

	breakdown := make([]models.CategoryBreakdown, 0, len(totals))
	for code, t := range totals {
		pct := decimal.Zero
		if grandTotal.IsPositive() {
			pct = t.amount.Div(grandTotal).Mul(hundred)
		}
		breakdown = append(breakdown, models.CategoryBreakdown{
			CategoryCode: code,
			Amount:       t.amount,
			Percentage:   pct,
			Count:        t.count,
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if !breakdown[i].Amount.Equal(breakdown[j].Amount) {
			return breakdown[i].Amount.GreaterThan(breakdown[j].Amount)
		}
		return breakdown[i].CategoryCode < breakdown[j].CategoryCode
	})
	return breakdown
}

func spendingTrends(txns []models.EffectiveTransaction) []models.TrendPoint {
	daily := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		if !isSpend(txn) {
			continue
		}
		day := txn.TxnDate.Format(dateutils.DateLayoutISO)
		daily[day] = daily[day].Add(spendMagnitude(txn))
	}

	trends := make([]models.TrendPoint, 0, len(daily))
	for day, spent := range daily {
		trends = append(trends, models.TrendPoint{Date: day, Spent: spent})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })
	return trends
}

// weekdays in report order, Monday first.
var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func dayOfWeekPatterns(txns []models.EffectiveTransaction) []models.DayOfWeekPattern {
	totals := make(map[time.Weekday]decimal.Decimal)
	counts := make(map[time.Weekday]int)
	for _, txn := range txns {
		if !isSpend(txn) {
			continue
		}
		wd := txn.TxnDate.Weekday()
		totals[wd] = totals[wd].Add(spendMagnitude(txn))
		counts[wd]++
	}

	patterns := make([]models.DayOfWeekPattern, 0, len(weekdays))
	for _, wd := range weekdays {
		patterns = append(patterns, models.DayOfWeekPattern{
			DayOfWeek: wd.String(),
			Total:     totals[wd],
			Count:     counts[wd],
		})
	}
	return patterns
}
