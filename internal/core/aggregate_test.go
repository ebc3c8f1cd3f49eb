package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(id string, typ TransactionType, amount, category string, d Date) Transaction {
	return Transaction{ID: id, OwnerID: "user_1", Type: typ, Amount: dec(amount), Category: category, Date: d}
}

func scenarioLedger() []Transaction {
	return []Transaction{
		tx("a", Expense, "50", "Food & Drink", NewDate(2026, 1, 15)),
		tx("b", Income, "2000", "Salary", NewDate(2026, 1, 1)),
	}
}

func TestAggregatesScenario(t *testing.T) {
	txs := scenarioLedger()

	if got := Balance(txs); !got.Equal(dec("1950")) {
		t.Fatalf("balance = %s, want 1950", got)
	}
	income, expense := IncomeAndExpense(txs)
	if !income.Equal(dec("2000")) || !expense.Equal(dec("50")) {
		t.Fatalf("income/expense = %s/%s", income, expense)
	}

	cats := CategoryBreakdown(txs)
	if len(cats) != 1 || cats[0].Category != "Food & Drink" || !cats[0].Total.Equal(dec("50")) {
		t.Fatalf("unexpected breakdown %+v", cats)
	}

	trend := MonthlyTrend(txs)
	if len(trend) != 1 {
		t.Fatalf("expected one month, got %+v", trend)
	}
	m := trend[0]
	if m.Month != "2026-01" || m.Label != "Jan 2026" {
		t.Fatalf("unexpected month key/label %q %q", m.Month, m.Label)
	}
	if !m.Income.Equal(dec("2000")) || !m.Expense.Equal(dec("50")) || !m.Net.Equal(dec("1950")) {
		t.Fatalf("unexpected month totals %+v", m)
	}
}

func TestAggregatesEmpty(t *testing.T) {
	for _, txs := range [][]Transaction{nil, {}} {
		if !Balance(txs).IsZero() {
			t.Fatalf("balance of empty ledger must be zero")
		}
		income, expense := IncomeAndExpense(txs)
		if !income.IsZero() || !expense.IsZero() {
			t.Fatalf("totals of empty ledger must be zero")
		}
		if cats := CategoryBreakdown(txs); cats == nil || len(cats) != 0 {
			t.Fatalf("breakdown must be an empty non-nil slice, got %#v", cats)
		}
		if trend := MonthlyTrend(txs); trend == nil || len(trend) != 0 {
			t.Fatalf("trend must be an empty non-nil slice, got %#v", trend)
		}
	}
}

func TestBalanceEqualsIncomeMinusExpense(t *testing.T) {
	// 0.1 + 0.2 is the classic binary float trap.
	txs := []Transaction{
		tx("1", Income, "0.1", "Freelance", NewDate(2025, 3, 1)),
		tx("2", Income, "0.2", "Freelance", NewDate(2025, 3, 2)),
		tx("3", Expense, "0.3", "Other", NewDate(2025, 4, 2)),
	}
	for i := 0; i < 1000; i++ {
		txs = append(txs, tx("x", Income, "0.01", "Investments", NewDate(2025, 5, 1)))
	}
	income, expense := IncomeAndExpense(txs)
	if !Balance(txs).Equal(income.Sub(expense)) {
		t.Fatalf("balance %s != income %s - expense %s", Balance(txs), income, expense)
	}
	if !Balance(txs).Equal(dec("10")) {
		t.Fatalf("expected exact 10, got %s", Balance(txs))
	}
}

func TestCategoryBreakdown(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, "10", "Transport", NewDate(2026, 1, 1)),
		tx("2", Income, "500", "Salary", NewDate(2026, 1, 1)),
		tx("3", Expense, "30", "Rent", NewDate(2026, 1, 2)),
		tx("4", Expense, "20", "Shopping", NewDate(2026, 1, 3)),
		tx("5", Expense, "10", "Transport", NewDate(2026, 1, 4)),
		tx("6", Expense, "0", "Health", NewDate(2026, 1, 5)),
		tx("7", Expense, "5", "food", NewDate(2026, 1, 6)),
		tx("8", Expense, "5", "Food", NewDate(2026, 1, 7)),
	}
	got := CategoryBreakdown(txs)
	want := []struct {
		cat   string
		total string
	}{
		{"Rent", "30"},
		{"Transport", "20"}, // tie with Shopping, Transport seen first
		{"Shopping", "20"},
		{"food", "5"},
		{"Food", "5"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Category != w.cat || !got[i].Total.Equal(dec(w.total)) {
			t.Fatalf("row %d = %s/%s, want %s/%s", i, got[i].Category, got[i].Total, w.cat, w.total)
		}
	}
	for _, c := range got {
		if c.Category == "Salary" || c.Total.IsZero() {
			t.Fatalf("breakdown must not contain income or zero rows: %+v", c)
		}
	}
}

func TestMonthlyTrend(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, "40", "Rent", NewDate(2026, 3, 31)),
		tx("2", Income, "100", "Salary", NewDate(2025, 12, 1)),
		tx("3", Expense, "25.50", "Food & Drink", NewDate(2026, 3, 1)),
		tx("4", Income, "10", "Other", NewDate(2026, 3, 15)),
	}
	got := MonthlyTrend(txs)
	if len(got) != 2 {
		t.Fatalf("expected two buckets (no zero-filled gap months), got %+v", got)
	}
	if got[0].Month != "2025-12" || got[1].Month != "2026-03" {
		t.Fatalf("buckets not ascending: %s, %s", got[0].Month, got[1].Month)
	}
	if got[0].Label != "Dec 2025" || got[1].Label != "Mar 2026" {
		t.Fatalf("unexpected labels %q %q", got[0].Label, got[1].Label)
	}
	if !got[1].Net.Equal(dec("-55.5")) {
		t.Fatalf("march net = %s, want -55.5", got[1].Net)
	}
}

func TestAggregatesIdempotentAndPure(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, "10", "Transport", NewDate(2026, 2, 1)),
		tx("2", Income, "500", "Salary", NewDate(2026, 1, 1)),
		tx("3", Expense, "30", "Rent", NewDate(2026, 1, 2)),
	}
	snapshot := make([]Transaction, len(txs))
	copy(snapshot, txs)

	first := Summarize(txs)
	second := Summarize(txs)

	if !first.Balance.Equal(second.Balance) || !first.Income.Equal(second.Income) || !first.Expense.Equal(second.Expense) {
		t.Fatalf("totals differ between calls")
	}
	if len(first.Categories) != len(second.Categories) || len(first.Trend) != len(second.Trend) {
		t.Fatalf("views differ between calls")
	}
	for i := range first.Categories {
		if first.Categories[i].Category != second.Categories[i].Category || !first.Categories[i].Total.Equal(second.Categories[i].Total) {
			t.Fatalf("category row %d differs", i)
		}
	}
	for i := range first.Trend {
		if first.Trend[i].Month != second.Trend[i].Month || !first.Trend[i].Net.Equal(second.Trend[i].Net) {
			t.Fatalf("trend row %d differs", i)
		}
	}
	for i := range txs {
		if txs[i].ID != snapshot[i].ID || !txs[i].Amount.Equal(snapshot[i].Amount) {
			t.Fatalf("input slice was modified at %d", i)
		}
	}
}

func TestRecent(t *testing.T) {
	var txs []Transaction
	for d := 1; d <= 7; d++ {
		txs = append(txs, tx(string(rune('a'+d-1)), Expense, "1", "Other", NewDate(2026, 1, d)))
	}
	txs = append(txs, tx("tie", Expense, "1", "Other", NewDate(2026, 1, 7)))

	got := Recent(txs, RecentLimit)
	if len(got) != RecentLimit {
		t.Fatalf("expected %d, got %d", RecentLimit, len(got))
	}
	if got[0].ID != "g" || got[1].ID != "tie" || got[4].ID != "d" {
		t.Fatalf("unexpected order: %s %s ... %s", got[0].ID, got[1].ID, got[4].ID)
	}
	if txs[0].ID != "a" {
		t.Fatalf("input reordered")
	}
}
