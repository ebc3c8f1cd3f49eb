package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// LedgerReader is the slice of the ledger service the worker needs.
type LedgerReader interface {
	List(ctx context.Context, owner core.Owner, f core.Filters) ([]core.Transaction, error)
	Owners(ctx context.Context) ([]string, error)
}

// ExportWorker mirrors ledgers into an exporter. Events only say which owner
// changed; the worker always re-reads the whole ledger so a lost or
// reordered message is repaired by the next one.
type ExportWorker struct {
	ledger   LedgerReader
	exporter sheets.LedgerExporter
}

func NewExportWorker(ledger LedgerReader, exporter sheets.LedgerExporter) *ExportWorker {
	return &ExportWorker{ledger: ledger, exporter: exporter}
}

// HandleEvent processes one ledger event from AMQP.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, msg.Operation,
		applog.FieldTransactionID, msg.TransactionID,
		applog.FieldOwnerID, msg.OwnerID)

	return w.ExportOwner(ctx, msg.OwnerID)
}

// ExportOwner rebuilds the export of a single owner.
func (w *ExportWorker) ExportOwner(ctx context.Context, ownerID string) error {
	txs, err := w.ledger.List(ctx, core.Owner{ID: ownerID}, core.Filters{})
	if err != nil {
		return fmt.Errorf("load ledger of %s: %w", ownerID, err)
	}
	if err := w.exporter.ExportOwner(ctx, ownerID, txs, core.Summarize(txs)); err != nil {
		return fmt.Errorf("export ledger of %s: %w", ownerID, err)
	}
	return nil
}

// RefreshAll re-exports every owner. One failing owner does not stop the
// others; all failures are returned joined.
func (w *ExportWorker) RefreshAll(ctx context.Context) error {
	owners, err := w.ledger.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	var errs []error
	exported := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := w.ExportOwner(ctx, owner); err != nil {
			slog.ErrorContext(ctx, "Owner export failed",
				applog.FieldComponent, applog.ComponentWorker,
				applog.FieldOwnerID, owner,
				applog.FieldError, err)
			errs = append(errs, err)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Ledger refresh completed",
		applog.FieldComponent, applog.ComponentWorker,
		"owners", len(owners),
		"exported", exported,
		"errors", len(errs))

	return errors.Join(errs...)
}
