// Package memory provides an in-memory state store for development/testing.
package memory

import (
	"context"
	"sync"

	"github.com/stylehound/stylehound/internal/search"
	"github.com/stylehound/stylehound/internal/state"
)

// Store keeps search records in a map guarded by one mutex. Mutate runs its
// whole read-modify-write cycle inside the critical section, which satisfies
// the no-lost-update contract.
type Store struct {
	mu      sync.RWMutex
	records map[string]search.Record
}

// New constructs a Store.
func New() *Store {
	return &Store{records: make(map[string]search.Record)}
}

// Create stores a new record, overwriting any existing one.
func (s *Store) Create(_ context.Context, id string, rec search.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = cloneRecord(rec)
	return nil
}

// Load fetches a record by ID.
func (s *Store) Load(_ context.Context, id string) (search.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return search.Record{}, state.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Mutate applies fn to the stored record atomically.
func (s *Store) Mutate(_ context.Context, id string, fn func(*search.Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return state.ErrNotFound
	}
	working := cloneRecord(rec)
	if err := fn(&working); err != nil {
		return err
	}
	s.records[id] = working
	return nil
}

func cloneRecord(rec search.Record) search.Record {
	cp := rec
	if rec.Stores != nil {
		cp.Stores = make([]search.StoreResult, len(rec.Stores))
		copy(cp.Stores, rec.Stores)
	}
	if rec.Attributes != nil {
		cp.Attributes = make([]search.Attribute, len(rec.Attributes))
		copy(cp.Attributes, rec.Attributes)
	}
	if rec.EndTime != nil {
		end := *rec.EndTime
		cp.EndTime = &end
	}
	return cp
}
