// Package memory is a process-local ledger repository. It is used by tests
// and by DATA_BACKEND=memory for local runs; nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"fintrack/internal/core"
)

var errDuplicateID = errors.New("duplicate transaction id")

type row struct {
	seq int64
	tx  core.Transaction
}

type Store struct {
	mu    sync.Mutex
	seq   int64
	users map[string]core.User
	rows  map[string]row
}

func New() *Store {
	return &Store{
		users: make(map[string]core.User),
		rows:  make(map[string]row),
	}
}

func (s *Store) UpsertUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(u)
	return nil
}

func (s *Store) upsertLocked(u core.User) {
	existing, ok := s.users[u.ID]
	if !ok {
		s.users[u.ID] = u
		return
	}
	if existing.Email == "" {
		existing.Email = u.Email
	}
	if existing.Name == "" {
		existing.Name = u.Name
	}
	s.users[u.ID] = existing
}

// User returns the stored profile for id.
func (s *Store) User(id string) (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) Create(_ context.Context, u core.User, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[tx.ID]; exists {
		return core.Transaction{}, core.Persistence("insert transaction", errDuplicateID)
	}
	s.upsertLocked(u)
	s.seq++
	s.rows[tx.ID] = row{seq: s.seq, tx: tx}
	return tx, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return r.tx, nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[tx.ID]
	if !ok || r.tx.OwnerID != tx.OwnerID {
		return core.Transaction{}, core.ErrNotFound
	}
	tx.CreatedAt = r.tx.CreatedAt
	r.tx = tx
	s.rows[tx.ID] = r
	return tx, nil
}

func (s *Store) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.tx.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Store) List(_ context.Context, ownerID string, f core.Filters) ([]core.Transaction, error) {
	s.mu.Lock()
	matched := make([]row, 0)
	for _, r := range s.rows {
		if r.tx.OwnerID == ownerID && f.Match(r.tx) {
			matched = append(matched, r)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		di, dj := matched[i].tx.Date, matched[j].tx.Date
		if !di.Equal(dj.Time) {
			return di.After(dj.Time)
		}
		return matched[i].seq < matched[j].seq
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]core.Transaction, len(matched))
	for i, r := range matched {
		out[i] = r.tx
	}
	return out, nil
}

func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	seen := make(map[string]struct{})
	for _, r := range s.rows {
		seen[r.tx.OwnerID] = struct{}{}
	}
	s.mu.Unlock()

	owners := make([]string, 0, len(seen))
	for id := range seen {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *Store) Close() error { return nil }
