package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors one owner's ledger into an external document.
	// An export fully replaces whatever was previously exported for the owner.
	LedgerExporter interface {
		ExportOwner(ctx context.Context, ownerID string, txs []core.Transaction, sum core.Summary) error
	}
)
