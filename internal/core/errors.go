package core

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the ledger. Every error returned from a ledger
// operation wraps exactly one of them, so callers branch with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("transaction not found")
	ErrValidation   = errors.New("validation failed")
	ErrPersistence  = errors.New("persistence failure")
)

// ErrNotOwner is returned when the caller is authenticated but the
// transaction belongs to someone else. It is an ErrUnauthorized.
var ErrNotOwner = fmt.Errorf("%w: transaction belongs to another owner", ErrUnauthorized)

// Validation wraps a field level error as ErrValidation, keeping the cause
// reachable through errors.Is.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Persistence wraps a storage failure as ErrPersistence.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
