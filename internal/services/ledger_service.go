package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// LedgerService is the only writer of transaction state. It scopes every
// operation to the calling owner and checks ownership itself instead of
// trusting the caller to have filtered.
type LedgerService struct {
	repo   Repository
	events EventPublisher
	now    func() time.Time
	newID  func() string
}

func NewLedgerService(repo Repository, events EventPublisher) *LedgerService {
	return &LedgerService{
		repo:   repo,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create validates and stores a new transaction for owner. The owner's user
// row is upserted in the same write.
func (s *LedgerService) Create(ctx context.Context, owner core.Owner, in core.TransactionInput) (core.Transaction, error) {
	if !owner.Resolved() {
		return core.Transaction{}, core.ErrUnauthorized
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, core.Validation(err)
	}

	now := s.now().UTC()
	tx := core.Transaction{
		ID:          s.newID(),
		OwnerID:     owner.ID,
		Amount:      in.Amount,
		Type:        in.Type,
		Category:    in.Category,
		Date:        in.Date,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	saved, err := s.repo.Create(ctx, owner.User(), tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		applog.NewFields().
			WithComponent(applog.ComponentLedger).
			WithOperation(applog.OpCreate).
			WithTransaction(saved.ID, saved.OwnerID, string(saved.Type), saved.Category, core.FormatAmount(saved.Amount)).
			ToSlice()...)

	s.publish(ctx, OpCreated, saved)
	return saved, nil
}

// Update replaces every mutable field of transaction id. A concurrent delete
// that lands first makes this call fail with core.ErrNotFound; concurrent
// updates resolve as last writer wins.
func (s *LedgerService) Update(ctx context.Context, id string, owner core.Owner, in core.TransactionInput) (core.Transaction, error) {
	existing, err := s.owned(ctx, id, owner)
	if err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, core.Validation(err)
	}

	existing.Amount = in.Amount
	existing.Type = in.Type
	existing.Category = in.Category
	existing.Date = in.Date
	existing.Description = in.Description
	existing.UpdatedAt = s.now().UTC()

	saved, err := s.repo.Update(ctx, existing)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		applog.NewFields().
			WithComponent(applog.ComponentLedger).
			WithOperation(applog.OpUpdate).
			WithTransaction(saved.ID, saved.OwnerID, string(saved.Type), saved.Category, core.FormatAmount(saved.Amount)).
			ToSlice()...)

	s.publish(ctx, OpUpdated, saved)
	return saved, nil
}

// Delete permanently removes transaction id.
func (s *LedgerService) Delete(ctx context.Context, id string, owner core.Owner) error {
	existing, err := s.owned(ctx, id, owner)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, owner.ID); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, id,
		applog.FieldOwnerID, owner.ID)

	s.publish(ctx, OpDeleted, existing)
	return nil
}

// Get returns one of the owner's transactions.
func (s *LedgerService) Get(ctx context.Context, id string, owner core.Owner) (core.Transaction, error) {
	return s.owned(ctx, id, owner)
}

// List returns the owner's transactions matching f. No match yields an empty
// slice, not an error.
func (s *LedgerService) List(ctx context.Context, owner core.Owner, f core.Filters) ([]core.Transaction, error) {
	if !owner.Resolved() {
		return nil, core.ErrUnauthorized
	}
	if err := f.Validate(); err != nil {
		return nil, core.Validation(err)
	}
	txs, err := s.repo.List(ctx, owner.ID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// Summary aggregates the owner's transactions matching f.
func (s *LedgerService) Summary(ctx context.Context, owner core.Owner, f core.Filters) (core.Summary, error) {
	// A limit would truncate the ledger before aggregation.
	f.Limit = 0
	txs, err := s.List(ctx, owner, f)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(txs), nil
}

// ProvisionUser materializes the owner's user row ahead of any ledger write.
func (s *LedgerService) ProvisionUser(ctx context.Context, owner core.Owner) error {
	if !owner.Resolved() {
		return core.ErrUnauthorized
	}
	if err := s.repo.UpsertUser(ctx, owner.User()); err != nil {
		return fmt.Errorf("provision user %s: %w", owner.ID, err)
	}
	slog.InfoContext(ctx, "User provisioned",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOwnerID, owner.ID)
	return nil
}

// Owners lists every owner with ledger data.
func (s *LedgerService) Owners(ctx context.Context) ([]string, error) {
	return s.repo.Owners(ctx)
}

// owned loads id and checks that it belongs to owner.
func (s *LedgerService) owned(ctx context.Context, id string, owner core.Owner) (core.Transaction, error) {
	if !owner.Resolved() {
		return core.Transaction{}, core.ErrUnauthorized
	}
	if id == "" {
		return core.Transaction{}, core.ErrNotFound
	}
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("load transaction %s: %w", id, err)
	}
	if tx.OwnerID != owner.ID {
		slog.WarnContext(ctx, "Ownership check failed",
			applog.FieldComponent, applog.ComponentLedger,
			applog.FieldTransactionID, id,
			applog.FieldOwnerID, owner.ID,
			applog.FieldErrorType, applog.ErrorTypeAuth)
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotOwner)
	}
	return tx, nil
}

// publish is best effort: the write is already committed, so a broker
// failure is logged and never returned.
func (s *LedgerService) publish(ctx context.Context, op Operation, tx core.Transaction) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event")
		return
	}
	ev := Event{
		Operation:     op,
		TransactionID: tx.ID,
		OwnerID:       tx.OwnerID,
		Timestamp:     s.now().UTC(),
	}
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldOperation, string(op),
			applog.FieldTransactionID, tx.ID,
			applog.FieldError, err)
	}
}

// Close closes storage and the event publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
