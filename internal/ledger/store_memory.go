package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/oiblz/tally/internal/sentinel"
	"github.com/oiblz/tally/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local development,
// preserving the conditional-update semantics of the Postgres store.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	expenses  map[int64]*Expense
	transfers map[int64]*Transfer
}

// NewMemory constructs an empty in-memory ledger store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		expenses:  make(map[int64]*Expense),
		transfers: make(map[int64]*Transfer),
	}
}

func (s *MemoryStore) SubmitExpense(_ context.Context, e *Expense) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *e
	stored.ID = s.nextID
	s.nextID++
	s.expenses[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryStore) SubmitTransfer(_ context.Context, t *Transfer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *t
	stored.ID = s.nextID
	s.nextID++
	s.transfers[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryStore) ResolveExpense(_ context.Context, id int64, caller domain.Identity, confirm bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok || e.Creator == caller || !e.Pending() {
		return sentinel.ErrPrecondition
	}
	t := now
	if confirm {
		e.ConfirmedAt = &t
	} else {
		e.RefusedAt = &t
	}
	return nil
}

func (s *MemoryStore) ResolveTransfer(_ context.Context, id int64, caller domain.Identity, confirm bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.transfers[id]
	if !ok || tr.Receiver != caller || !tr.Pending() {
		return sentinel.ErrPrecondition
	}
	t := now
	if confirm {
		tr.ConfirmedAt = &t
	} else {
		tr.RefusedAt = &t
	}
	return nil
}

func (s *MemoryStore) AllExpenses(_ context.Context) ([]Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, *e)
	}
	return out, nil
}

func (s *MemoryStore) AllTransfers(_ context.Context) ([]Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		out = append(out, *t)
	}
	return out, nil
}
