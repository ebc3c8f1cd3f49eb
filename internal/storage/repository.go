package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

const selectColumns = `SELECT id, owner_id, amount, type, category, date, description, created_at, updated_at FROM transactions`

// SQLiteRepository stores the ledger in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// our own goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// NewSQLiteRepositoryFromDB wraps an already open, already migrated handle.
func NewSQLiteRepositoryFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Persistence("ping", err)
	}
	return nil
}

const upsertUserSQL = `INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    email = CASE WHEN users.email = '' THEN excluded.email ELSE users.email END,
    name  = CASE WHEN users.name = '' THEN excluded.name ELSE users.name END`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertUser(ctx context.Context, db execer, u core.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, upsertUserSQL, u.ID, u.Email, u.Name, created.Format(timeLayout))
	return err
}

func (r *SQLiteRepository) UpsertUser(ctx context.Context, u core.User) error {
	if err := upsertUser(ctx, r.db, u); err != nil {
		return core.Persistence("upsert user", err)
	}
	return nil
}

// getUser returns the user row for id.
func (r *SQLiteRepository) getUser(ctx context.Context, id string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, email, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, core.Persistence("get user", err)
	}
	if u.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return core.User{}, core.Persistence("decode user", err)
	}
	return u, nil
}

// Create upserts the owner and inserts tx inside one database transaction.
func (r *SQLiteRepository) Create(ctx context.Context, u core.User, tx core.Transaction) (core.Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, core.Persistence("begin", err)
	}
	defer dbtx.Rollback()

	if err := upsertUser(ctx, dbtx, u); err != nil {
		return core.Transaction{}, core.Persistence("upsert user", err)
	}

	_, err = dbtx.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, amount, type, category, date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, tx.Amount.String(), string(tx.Type), tx.Category, tx.Date.String(),
		tx.Description, tx.CreatedAt.Format(timeLayout), tx.UpdatedAt.Format(timeLayout))
	if err != nil {
		return core.Transaction{}, core.Persistence("insert transaction", err)
	}

	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, core.Persistence("commit", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldTransactionID, tx.ID,
		applog.FieldOwnerID, tx.OwnerID)

	return tx, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.Persistence("get transaction", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, type = ?, category = ?, date = ?, description = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		tx.Amount.String(), string(tx.Type), tx.Category, tx.Date.String(), tx.Description,
		tx.UpdatedAt.Format(timeLayout), tx.ID, tx.OwnerID)
	if err != nil {
		return core.Transaction{}, core.Persistence("update transaction", err)
	}
	if err := requireRow(res); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return core.Persistence("delete transaction", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, f core.Filters) ([]core.Transaction, error) {
	query, args := buildListQuery(ownerID, f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Persistence("list transactions", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, core.Persistence("scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list transactions", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM transactions ORDER BY owner_id`)
	if err != nil {
		return nil, core.Persistence("list owners", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.Persistence("scan owner", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list owners", err)
	}
	return owners, nil
}

// buildListQuery translates filters into SQL. The search filter lowercases
// with SQLite's lower(), which only folds ASCII letters.
func buildListQuery(ownerID string, f core.Filters) (string, []any) {
	var b strings.Builder
	b.WriteString(selectColumns)
	b.WriteString(` WHERE owner_id = ?`)
	args := []any{ownerID}

	if f.Category != "" {
		b.WriteString(` AND category = ?`)
		args = append(args, f.Category)
	}
	if f.Type != "" {
		b.WriteString(` AND type = ?`)
		args = append(args, string(f.Type))
	}
	if !f.StartDate.IsEmpty() {
		b.WriteString(` AND date >= ?`)
		args = append(args, f.StartDate.String())
	}
	if !f.EndDate.IsEmpty() {
		b.WriteString(` AND date <= ?`)
		args = append(args, f.EndDate.String())
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		b.WriteString(` AND (lower(description) LIKE ? ESCAPE '\' OR lower(category) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	b.WriteString(` ORDER BY date DESC, seq ASC`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                   core.Transaction
		amount, typ, date    string
		createdAt, updatedAt string
	)
	if err := s.Scan(&tx.ID, &tx.OwnerID, &amount, &typ, &tx.Category, &date, &tx.Description, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	tx.Type = core.TransactionType(typ)
	if tx.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("decode date: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("decode created_at: %w", err)
	}
	if tx.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("decode updated_at: %w", err)
	}
	return tx, nil
}

// requireRow maps "no row matched" to core.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.Persistence("rows affected", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
