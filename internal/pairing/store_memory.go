package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/oiblz/tally/internal/sentinel"
	"github.com/oiblz/tally/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local development. It
// preserves the conditional-update semantics of the Postgres store: every
// mutation re-checks its precondition under the lock.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	proposals map[int64]*Proposal
}

// NewMemory constructs an empty in-memory proposal store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1, proposals: make(map[int64]*Proposal)}
}

func (s *MemoryStore) Propose(_ context.Context, claimed domain.Identity, device string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Proposal{
		ID:        s.nextID,
		Claimed:   claimed,
		Device:    device,
		CreatedAt: now,
	}
	if len(s.proposals) == 0 {
		t := now
		p.ConfirmedAt = &t
	}
	s.nextID++
	s.proposals[p.ID] = p
	return p.ID, nil
}

func (s *MemoryStore) State(_ context.Context, id int64) (domain.Identity, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(id)
}

func (s *MemoryStore) stateLocked(id int64) (domain.Identity, State, error) {
	p, ok := s.proposals[id]
	if !ok {
		return "", "", sentinel.ErrNotFound
	}
	return p.Claimed, Classify(p, s.staleLocked(p)), nil
}

func (s *MemoryStore) staleLocked(p *Proposal) bool {
	for _, other := range s.proposals {
		if other.Claimed == p.Claimed && other.CreatedAt.After(p.CreatedAt) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Confirm(_ context.Context, id int64, now time.Time) error {
	return s.resolve(id, now, true)
}

func (s *MemoryStore) Refuse(_ context.Context, id int64, now time.Time) error {
	return s.resolve(id, now, false)
}

func (s *MemoryStore) resolve(id int64, now time.Time, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok || p.ConfirmedAt != nil || p.RefusedAt != nil {
		return sentinel.ErrPrecondition
	}
	t := now
	if confirm {
		p.ConfirmedAt = &t
	} else {
		p.RefusedAt = &t
	}
	return nil
}

func (s *MemoryStore) Convert(_ context.Context, id int64, now time.Time, issue func(domain.Identity) (string, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed, state, err := s.stateLocked(id)
	if err != nil {
		return "", sentinel.ErrPrecondition
	}
	if state != StateConvertible {
		return "", sentinel.ErrPrecondition
	}

	p := s.proposals[id]
	t := now
	p.ConvertedAt = &t

	wire, err := issue(claimed)
	if err != nil {
		// The transaction analog: an issuance failure rolls the mutation back.
		p.ConvertedAt = nil
		return "", err
	}
	return wire, nil
}

func (s *MemoryStore) Confirmable(_ context.Context, by domain.Identity) (*Confirmable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Proposal
	for _, p := range s.proposals {
		if p.Claimed == by || p.ConfirmedAt != nil || p.RefusedAt != nil || s.staleLocked(p) {
			continue
		}
		if best == nil || p.CreatedAt.Before(best.CreatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	return &Confirmable{ID: best.ID, Device: best.Device}, nil
}
