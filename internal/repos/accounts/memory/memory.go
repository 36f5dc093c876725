// Package memory provides an in-memory Accounts store for single-process
// deployments and for unit testing the services without a running database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
)

var _ accounts.Accounts = (*Store)(nil)

// Store keeps accounts in a map guarded by a single mutex. Every mutation
// runs in one critical section, so ApplyDelta is atomic per account and
// ClearAllExcept cannot interleave with an in-flight delta.
type Store struct {
	mu    sync.RWMutex
	accts map[string]*accounts.Account
}

func New() *Store {
	return &Store{accts: make(map[string]*accounts.Account)}
}

func (s *Store) Create(_ context.Context, id, name string, energy, credit float64) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accts[id]; ok {
		return accounts.Account{}, accounts.ErrDuplicateID
	}

	a := &accounts.Account{ID: id, Name: name, EnergyBalance: energy, CreditBalance: credit}
	s.accts[id] = a

	return *a, nil
}

func (s *Store) Get(_ context.Context, id string) (accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accts[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}

	return *a, nil
}

func (s *Store) ApplyDelta(_ context.Context, id string, energyDelta, creditDelta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accts[id]
	if !ok {
		return accounts.ErrAccountNotFound
	}

	a.EnergyBalance += energyDelta
	a.CreditBalance += creditDelta

	return nil
}

// ListAll returns value copies sorted by id, so the order is stable across
// calls against the same snapshot.
func (s *Store) ListAll(_ context.Context) ([]accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]accounts.Account, 0, len(s.accts))
	for _, a := range s.accts {
		out = append(out, *a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *Store) ClearAllExcept(_ context.Context, reservedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reserved, ok := s.accts[reservedID]

	s.accts = make(map[string]*accounts.Account)
	if ok {
		s.accts[reservedID] = reserved
	}

	return nil
}
