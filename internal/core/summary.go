package core

import "github.com/shopspring/decimal"

// RecentLimit is the number of transactions shown as "recent".
const RecentLimit = 5

// CategoryTotal is the sum of expenses booked under one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// MonthTrend holds the totals of one calendar month.
type MonthTrend struct {
	Month   string // YYYY-MM, sort key
	Label   string // "Jan 2026", display only
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// Totals is the headline figure set of a dashboard.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Summary bundles every aggregate view over one owner's transactions.
type Summary struct {
	Totals
	Count      int
	Categories []CategoryTotal
	Trend      []MonthTrend
	Recent     []Transaction
}
