package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// The functions below never modify their input slice and always return
// non-nil slices, so an empty ledger serializes as [] rather than null.

// Balance folds the transactions into income minus expense.
func Balance(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}

// IncomeAndExpense sums amounts per type. Both results are non-negative.
func IncomeAndExpense(txs []Transaction) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			income = income.Add(tx.Amount)
		case Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense
}

// CategoryBreakdown groups EXPENSE transactions by exact category, largest
// total first. Equal totals keep the order in which the category was first
// seen. Zero totals are dropped.
func CategoryBreakdown(txs []Transaction) []CategoryTotal {
	index := make(map[string]int)
	out := make([]CategoryTotal, 0)
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, CategoryTotal{Category: tx.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
	}

	nonZero := out[:0]
	for _, c := range out {
		if !c.Total.IsZero() {
			nonZero = append(nonZero, c)
		}
	}
	sort.SliceStable(nonZero, func(a, b int) bool {
		return nonZero[a].Total.GreaterThan(nonZero[b].Total)
	})
	return nonZero
}

// MonthlyTrend buckets transactions by the YYYY-MM of their date. Only months
// that have at least one transaction appear, in ascending order.
func MonthlyTrend(txs []Transaction) []MonthTrend {
	buckets := make(map[string]*MonthTrend)
	keys := make([]string, 0)
	for _, tx := range txs {
		key := tx.Date.MonthKey()
		b, ok := buckets[key]
		if !ok {
			b = &MonthTrend{Month: key, Label: MonthLabel(key), Income: decimal.Zero, Expense: decimal.Zero}
			buckets[key] = b
			keys = append(keys, key)
		}
		switch tx.Type {
		case Income:
			b.Income = b.Income.Add(tx.Amount)
		case Expense:
			b.Expense = b.Expense.Add(tx.Amount)
		}
	}
	sort.Strings(keys)

	out := make([]MonthTrend, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		b.Net = b.Income.Sub(b.Expense)
		out = append(out, *b)
	}
	return out
}

// MonthLabel renders a YYYY-MM key as "Jan 2026". Keys that do not parse are
// returned unchanged.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2006")
}

// Recent returns up to n transactions, most recent date first. Transactions
// on the same date keep their input order.
func Recent(txs []Transaction, n int) []Transaction {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Date.After(sorted[b].Date.Time)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Summarize computes every view at once.
func Summarize(txs []Transaction) Summary {
	income, expense := IncomeAndExpense(txs)
	return Summary{
		Totals: Totals{
			Income:  income,
			Expense: expense,
			Balance: Balance(txs),
		},
		Count:      len(txs),
		Categories: CategoryBreakdown(txs),
		Trend:      MonthlyTrend(txs),
		Recent:     Recent(txs, RecentLimit),
	}
}
