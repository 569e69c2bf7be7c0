// Package memstore provides an in-memory expense store, useful for
// local development and tests where no database file is wanted.
package memstore

import (
	"context"
	"sort"
	"sync"

	"finman/internal/core"
	"finman/internal/ingest"
)

type Store struct {
	mu     sync.Mutex
	items  []core.Expense
	nextID int64
}

var _ ingest.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

// ListExpenses returns all stored expenses, newest date first.
func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Non-nil even when empty: the API contract is an array, never null.
	out := make([]core.Expense, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) InsertExpenses(_ context.Context, expenses []core.Expense) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		e.ID = s.nextID
		s.nextID++
		s.items = append(s.items, e)
		inserted = append(inserted, e)
	}
	return inserted, nil
}

func (s *Store) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.items))
	s.items = nil
	return n, nil
}
