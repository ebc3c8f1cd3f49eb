package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Exporter keeps the last export of every owner in memory. It backs the
// worker when no spreadsheet is configured.
type Exporter struct {
	mu     sync.Mutex
	prefix string
	tabs   map[string][][]string
	order  []string
}

var _ ports.LedgerExporter = (*Exporter)(nil)

func New(prefix string) *Exporter {
	if prefix == "" {
		prefix = "Ledger"
	}
	return &Exporter{prefix: prefix, tabs: map[string][][]string{}}
}

// ExportOwner replaces the owner's tab.
func (e *Exporter) ExportOwner(_ context.Context, ownerID string, txs []core.Transaction, sum core.Summary) error {
	tab := ports.TabName(e.prefix, ownerID)
	rows := ports.Rows(txs, sum)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tabs[tab]; !ok {
		e.order = append(e.order, tab)
	}
	e.tabs[tab] = rows
	return nil
}

// Tab returns a copy of the rows last exported under title.
func (e *Exporter) Tab(title string) ([][]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.tabs[title]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, true
}

// Tabs lists tab titles in creation order.
func (e *Exporter) Tabs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}
