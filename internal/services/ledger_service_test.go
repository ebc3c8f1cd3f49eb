package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

// failingRepo wraps a store and fails every call with a persistence error.
type failingRepo struct{ *memory.Store }

func (failingRepo) Create(context.Context, core.User, core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, core.Persistence("insert transaction", errors.New("disk full"))
}

func (failingRepo) List(context.Context, string, core.Filters) ([]core.Transaction, error) {
	return nil, core.Persistence("list transactions", errors.New("disk full"))
}

var alice = core.Owner{ID: "user_alice", Email: "alice@example.com"}

func input(typ core.TransactionType, amount, category string, d core.Date) core.TransactionInput {
	return core.TransactionInput{Amount: decimal.RequireFromString(amount), Type: typ, Category: category, Date: d}
}

func newService() (*LedgerService, *memory.Store, *recordingPublisher) {
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub)
	n := 0
	svc.newID = func() string { n++; return fmt.Sprintf("tx_%d", n) }
	return svc, store, pub
}

func TestLedgerScenario(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	food, err := svc.Create(ctx, alice, input(core.Expense, "50", "Food & Drink", core.NewDate(2026, 1, 15)))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := svc.Create(ctx, alice, input(core.Income, "2000", "Salary", core.NewDate(2026, 1, 1))); err != nil {
		t.Fatalf("create income: %v", err)
	}

	sum, err := svc.Summary(ctx, alice, core.Filters{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.Balance.Equal(decimal.NewFromInt(1950)) || !sum.Income.Equal(decimal.NewFromInt(2000)) || !sum.Expense.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected totals %+v", sum.Totals)
	}
	if len(sum.Categories) != 1 || sum.Categories[0].Category != "Food & Drink" {
		t.Fatalf("unexpected breakdown %+v", sum.Categories)
	}
	if len(sum.Trend) != 1 || sum.Trend[0].Month != "2026-01" || !sum.Trend[0].Net.Equal(decimal.NewFromInt(1950)) {
		t.Fatalf("unexpected trend %+v", sum.Trend)
	}

	// Update 50 -> 75 recomputes the balance and does not duplicate the row.
	if _, err := svc.Update(ctx, food.ID, alice, input(core.Expense, "75", "Food & Drink", core.NewDate(2026, 1, 15))); err != nil {
		t.Fatalf("update: %v", err)
	}
	txs, _ := svc.List(ctx, alice, core.Filters{})
	if len(txs) != 2 {
		t.Fatalf("expected 2 rows after update, got %d", len(txs))
	}
	sum, _ = svc.Summary(ctx, alice, core.Filters{})
	if !sum.Balance.Equal(decimal.NewFromInt(1925)) {
		t.Fatalf("balance after update = %s, want 1925", sum.Balance)
	}

	// Deleting a nonexistent id is NotFound and leaves other rows alone.
	if err := svc.Delete(ctx, "does-not-exist", alice); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if txs, _ := svc.List(ctx, alice, core.Filters{}); len(txs) != 2 {
		t.Fatalf("delete of missing id touched other rows")
	}

	// A start date after every transaction yields an empty, non-nil list.
	empty, err := svc.List(ctx, alice, core.Filters{StartDate: core.NewDate(2026, 2, 1)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %#v", empty)
	}

	if len(pub.events) != 3 || pub.events[2].Operation != OpUpdated {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestLedgerAmountsStoredAsMagnitude(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()

	tx, err := svc.Create(ctx, alice, input(core.Expense, "-50.25", "Rent", core.NewDate(2026, 1, 3)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("50.25")) {
		t.Fatalf("returned amount %s not normalized", tx.Amount)
	}
	if _, err := svc.Update(ctx, tx.ID, alice, input(core.Income, "-10", "Other", core.NewDate(2026, 1, 3))); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := store.Get(ctx, tx.ID)
	if stored.Amount.IsNegative() || !stored.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("stored amount %s not normalized", stored.Amount)
	}
}

func TestLedgerUnauthorized(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	nobody := core.Owner{ID: "  "}

	if _, err := svc.Create(ctx, nobody, input(core.Expense, "1", "Other", core.NewDate(2026, 1, 1))); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("create: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.List(ctx, nobody, core.Filters{}); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("list: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Delete(ctx, "x", nobody); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("delete: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Update(ctx, "x", nobody, input(core.Expense, "1", "Other", core.NewDate(2026, 1, 1))); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("update: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.ProvisionUser(ctx, nobody); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("provision: expected ErrUnauthorized, got %v", err)
	}
}

func TestLedgerOwnershipIsolation(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	bob := core.Owner{ID: "user_bob"}

	tx, _ := svc.Create(ctx, alice, input(core.Expense, "20", "Shopping", core.NewDate(2026, 1, 9)))

	if _, err := svc.Update(ctx, tx.ID, bob, input(core.Expense, "1", "Shopping", core.NewDate(2026, 1, 9))); !errors.Is(err, core.ErrNotOwner) {
		t.Fatalf("foreign update: expected ErrNotOwner, got %v", err)
	}
	if err := svc.Delete(ctx, tx.ID, bob); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("foreign delete: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Get(ctx, tx.ID, bob); !errors.Is(err, core.ErrNotOwner) {
		t.Fatalf("foreign get: expected ErrNotOwner, got %v", err)
	}
	if txs, _ := svc.List(ctx, bob, core.Filters{}); len(txs) != 0 {
		t.Fatalf("bob must not see alice's transactions")
	}
	stored, _ := store.Get(ctx, tx.ID)
	if !stored.Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("foreign update changed the row")
	}
}

func TestLedgerValidation(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, input(core.Expense, "5", "   ", core.NewDate(2026, 1, 1)))
	if !errors.Is(err, core.ErrValidation) || !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected validation error for empty category, got %v", err)
	}
	_, err = svc.Create(ctx, alice, core.TransactionInput{Amount: decimal.NewFromInt(1), Type: core.Income, Category: "Salary"})
	if !errors.Is(err, core.ErrValidation) || !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected validation error for missing date, got %v", err)
	}
	_, err = svc.List(ctx, alice, core.Filters{StartDate: core.NewDate(2026, 3, 1), EndDate: core.NewDate(2026, 1, 1)})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("rejected writes must not publish events")
	}
}

func TestLedgerDeleteRemovesFromAggregates(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	tx, _ := svc.Create(ctx, alice, input(core.Expense, "30", "Transport", core.NewDate(2026, 1, 2)))
	if err := svc.Delete(ctx, tx.ID, alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	txs, _ := svc.List(ctx, alice, core.Filters{})
	for _, got := range txs {
		if got.ID == tx.ID {
			t.Fatalf("deleted id still listed")
		}
	}
	sum, _ := svc.Summary(ctx, alice, core.Filters{})
	if !sum.Balance.IsZero() || len(sum.Categories) != 0 || len(sum.Trend) != 0 {
		t.Fatalf("deleted transaction still aggregated: %+v", sum)
	}
	if err := svc.Delete(ctx, tx.ID, alice); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	last := pub.events[len(pub.events)-1]
	if last.Operation != OpDeleted || last.OwnerID != alice.ID {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestLedgerPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, pub := newService()
	pub.err = errors.New("broker down")

	if _, err := svc.Create(context.Background(), alice, input(core.Income, "1", "Other", core.NewDate(2026, 1, 1))); err != nil {
		t.Fatalf("create must succeed when publishing fails: %v", err)
	}
}

func TestLedgerWithoutPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	if _, err := svc.Create(context.Background(), alice, input(core.Income, "1", "Other", core.NewDate(2026, 1, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestLedgerPersistenceErrors(t *testing.T) {
	svc := NewLedgerService(failingRepo{memory.New()}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, input(core.Income, "1", "Other", core.NewDate(2026, 1, 1)))
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("create: expected ErrPersistence, got %v", err)
	}
	if _, err := svc.Summary(ctx, alice, core.Filters{}); !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("summary: expected ErrPersistence, got %v", err)
	}
}

func TestLedgerProvisionUser(t *testing.T) {
	svc, store, _ := newService()
	if err := svc.ProvisionUser(context.Background(), core.Owner{ID: "user_new", Name: "New"}); err != nil {
		t.Fatalf("provision: %v", err)
	}
	u, ok := store.User("user_new")
	if !ok || u.Name != "New" {
		t.Fatalf("user not provisioned: %+v", u)
	}
}

func TestLedgerCreateUpsertsUser(t *testing.T) {
	svc, store, _ := newService()
	if _, err := svc.Create(context.Background(), alice, input(core.Income, "1", "Other", core.NewDate(2026, 1, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, ok := store.User(alice.ID)
	if !ok || u.Email != alice.Email {
		t.Fatalf("user not materialized on first write: %+v", u)
	}
}

func TestLedgerClose(t *testing.T) {
	svc, _, pub := newService()
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Fatalf("publisher not closed")
	}
}

// vanishingRepo lets the ownership check see the row, then removes it before
// the write lands, as a concurrent delete from the same owner would.
type vanishingRepo struct{ *memory.Store }

func (r vanishingRepo) Get(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := r.Store.Get(ctx, id)
	if err != nil {
		return tx, err
	}
	if err := r.Store.Delete(ctx, id, tx.OwnerID); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func TestLedgerLosingConcurrentDeleteIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(vanishingRepo{store}, pub)

	tests := []struct {
		name string
		op   func(id string) error
	}{
		{"update", func(id string) error {
			_, err := svc.Update(ctx, id, alice, input(core.Expense, "75", "Food & Drink", core.NewDate(2026, 1, 15)))
			return err
		}},
		{"delete", func(id string) error { return svc.Delete(ctx, id, alice) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := svc.Create(ctx, alice, input(core.Expense, "50", "Food & Drink", core.NewDate(2026, 1, 15)))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			before := len(pub.events)

			if err := tc.op(tx.ID); !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if len(pub.events) != before {
				t.Fatalf("losing %s must not publish, got %+v", tc.name, pub.events[before:])
			}
			txs, err := svc.List(ctx, alice, core.Filters{})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			for _, got := range txs {
				if got.ID == tx.ID {
					t.Fatalf("vanished row %s reappeared", tx.ID)
				}
			}
		})
	}
}
