package models

import "github.com/shopspring/decimal"

// KPIReport holds the headline numbers for one month (or any range).
// Amounts are in major currency units.
type KPIReport struct {
	Month            string          `json:"month,omitempty"`
	IncomeAmount     decimal.Decimal `json:"income_amount"`
	NeedsAmount      decimal.Decimal `json:"needs_amount"`
	WantsAmount      decimal.Decimal `json:"wants_amount"`
	AssetsAmount     decimal.Decimal `json:"assets_amount"`
	SavingsRate      decimal.Decimal `json:"savings_rate"` // 0 when income is 0
	WantsGauge       WantsGauge      `json:"wants_gauge"`
	TopCategories    []TopCategory   `json:"top_categories"`
	UncategorizedPct decimal.Decimal `json:"uncategorized_percentage"`
	UncategorizedHot bool            `json:"uncategorized_alert"`
}

// WantsGauge is the discretionary-spend indicator: wants / (needs + wants).
type WantsGauge struct {
	Ratio            decimal.Decimal `json:"ratio"`
	Label            string          `json:"label"`
	ThresholdCrossed bool            `json:"threshold_crossed"`
}

// TopCategory is one entry of the top-N spend ranking. ChangePct is nil when
// no prior-period data exists.
type TopCategory struct {
	CategoryCode string           `json:"category"`
	Amount       decimal.Decimal  `json:"amount"`
	Count        int              `json:"transaction_count"`
	ChangePct    *decimal.Decimal `json:"change_pct"`
}

// CategoryBreakdown is per-category spend over a range. Percentage keeps full
// precision; rounding happens at presentation time only.
type CategoryBreakdown struct {
	CategoryCode string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
	Count        int             `json:"transaction_count"`
}

// RecurringTransaction is a merchant group inferred as a subscription/bill.
type RecurringTransaction struct {
	Merchant      string          `json:"merchant"`
	Frequency     string          `json:"frequency"` // weekly, monthly, quarterly, yearly
	Occurrences   int             `json:"occurrences"`
	AverageAmount decimal.Decimal `json:"average_amount"`
	LastTxnDate   string          `json:"last_txn_date"`
}

// TrendPoint is one step of the spending time series.
type TrendPoint struct {
	Date  string          `json:"date"`
	Spent decimal.Decimal `json:"spent"`
}

// DayOfWeekPattern is spend bucketed by calendar weekday.
type DayOfWeekPattern struct {
	DayOfWeek string          `json:"day_of_week"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
}

// InsightsReport is the full insight set for a date range.
type InsightsReport struct {
	CategoryBreakdown     []CategoryBreakdown    `json:"category_breakdown"`
	RecurringTransactions []RecurringTransaction `json:"recurring_transactions"`
	SpendingTrends        []TrendPoint           `json:"spending_trends"`
	SpendingPatterns      []DayOfWeekPattern     `json:"spending_patterns"`
	UncategorizedPct      decimal.Decimal        `json:"uncategorized_percentage"`
	UncategorizedHot      bool                   `json:"uncategorized_alert"`
}
