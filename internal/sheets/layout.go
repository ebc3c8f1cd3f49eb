package sheets

import (
	"strings"

	"fintrack/internal/core"
)

// maxTabTitle is the longest sheet title Google Sheets accepts.
const maxTabTitle = 100

var transactionHeader = []string{"Date", "Type", "Category", "Description", "Amount"}

// TabName returns the sheet title holding ownerID's export. Characters that
// Sheets rejects in titles or that break A1 ranges are replaced.
func TabName(prefix, ownerID string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'', '!':
			return '_'
		}
		return r
	}, ownerID)
	name := strings.TrimSpace(prefix + " " + clean)
	if len(name) > maxTabTitle {
		name = name[:maxTabTitle]
	}
	return name
}

// Rows renders the ledger and its summary as a grid of cell strings: the
// transaction table first, then totals, category breakdown and monthly trend,
// separated by blank rows.
func Rows(txs []core.Transaction, sum core.Summary) [][]string {
	rows := make([][]string, 0, len(txs)+len(sum.Categories)+len(sum.Trend)+10)

	rows = append(rows, transactionHeader)
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Description,
			core.FormatAmount(tx.Amount),
		})
	}

	rows = append(rows,
		[]string{},
		[]string{"Summary"},
		[]string{"Income", core.FormatAmount(sum.Income)},
		[]string{"Expense", core.FormatAmount(sum.Expense)},
		[]string{"Balance", core.FormatAmount(sum.Balance)},
		[]string{},
		[]string{"Category", "Total"},
	)
	for _, c := range sum.Categories {
		rows = append(rows, []string{c.Category, core.FormatAmount(c.Total)})
	}

	rows = append(rows, []string{}, []string{"Month", "Income", "Expense", "Net"})
	for _, m := range sum.Trend {
		rows = append(rows, []string{m.Label, core.FormatAmount(m.Income), core.FormatAmount(m.Expense), core.FormatAmount(m.Net)})
	}
	return rows
}
