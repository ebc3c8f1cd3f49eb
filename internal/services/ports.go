package services

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Repository is the durable transaction store behind the ledger. Every
// implementation reports a missing row as core.ErrNotFound and any other
// storage failure as core.ErrPersistence.
type Repository interface {
	// UpsertUser creates the user row if absent and fills in missing
	// profile fields. It never clears an existing email or name.
	UpsertUser(ctx context.Context, u core.User) error

	// Create upserts the owner's user row and inserts tx in one atomic write.
	Create(ctx context.Context, u core.User, tx core.Transaction) (core.Transaction, error)

	// Get returns a transaction by id regardless of owner.
	Get(ctx context.Context, id string) (core.Transaction, error)

	// Update replaces the mutable fields of the row matching tx.ID and
	// tx.OwnerID.
	Update(ctx context.Context, tx core.Transaction) (core.Transaction, error)

	// Delete removes the row matching id and ownerID.
	Delete(ctx context.Context, id, ownerID string) error

	// List returns the owner's transactions matching f, newest date first,
	// insertion order breaking ties.
	List(ctx context.Context, ownerID string, f core.Filters) ([]core.Transaction, error)

	// Owners returns the ids of every user with at least one transaction.
	Owners(ctx context.Context) ([]string, error)

	Close() error
}

// Operation names a ledger mutation in published events.
type Operation string

const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
	OpDeleted Operation = "deleted"
)

// Event describes a committed ledger mutation.
type Event struct {
	Operation     Operation
	TransactionID string
	OwnerID       string
	Timestamp     time.Time
}

// EventPublisher fans committed mutations out to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev Event) error
	Close() error
}
