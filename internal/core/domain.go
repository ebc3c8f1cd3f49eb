package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

const (
	maxCategoryLen    = 100
	maxDescriptionLen = 200
)

type (
	TransactionType string

	// Date is a calendar date. The time-of-day part is always midnight UTC.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string
		OwnerID     string
		Amount      decimal.Decimal // always >= 0, direction comes from Type
		Type        TransactionType
		Category    string
		Date        Date
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// TransactionInput carries the mutable fields of a transaction as supplied
	// by a caller. Amount may be negative; it is normalized before storage.
	TransactionInput struct {
		Amount      decimal.Decimal
		Type        TransactionType
		Category    string
		Date        Date
		Description string
	}

	// Filters narrows a ledger listing. Zero values mean "no constraint".
	Filters struct {
		Category  string
		Type      TransactionType
		StartDate Date
		EndDate   Date
		Search    string
		Limit     int
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountPrecision = fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	ErrEmptyCategory   = errors.New("empty category")
	ErrCategoryTooLong = fmt.Errorf("category too long (max %d characters)", maxCategoryLen)
	ErrDescTooLong     = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrInvalidRange    = errors.New("start date after end date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Impossible dates such as 2026-02-30
// are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty reports whether the date is unset (used for optional filter bounds).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM bucket of the date, taken from the date's own
// year and month.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType accepts INCOME or EXPENSE in any letter case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Signed returns the contribution of the transaction to a balance.
func (tx Transaction) Signed() decimal.Decimal {
	if tx.Type == Expense {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

// Normalize returns a copy with the amount replaced by its magnitude and the
// text fields trimmed.
func (in TransactionInput) Normalize() TransactionInput {
	in.Amount = in.Amount.Abs()
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in TransactionInput) Validate() error {
	if !WholeCents(in.Amount) {
		return ErrAmountPrecision
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(in.Category) > maxCategoryLen {
		return ErrCategoryTooLong
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return ErrDescTooLong
	}
	return nil
}

func (f Filters) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return ErrInvalidType
	}
	if !f.StartDate.IsEmpty() && !f.EndDate.IsEmpty() && f.StartDate.After(f.EndDate.Time) {
		return ErrInvalidRange
	}
	if f.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	return nil
}

// Match reports whether tx satisfies every filter that is set. Storage
// backends without a query language use it directly.
func (f Filters) Match(tx Transaction) bool {
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if !f.StartDate.IsEmpty() && tx.Date.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsEmpty() && tx.Date.After(f.EndDate.Time) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(tx.Description), q) &&
			!strings.Contains(strings.ToLower(tx.Category), q) {
			return false
		}
	}
	return true
}
