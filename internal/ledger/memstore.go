package ledger

import (
	"context"
	"sync"
)

// MemStore is an in-memory [Ledger]. Records are copied on the way in and
// out, so callers may mutate what they pass or receive.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Ledger = (*MemStore)(nil)

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record)}
}

// Lookup implements [Ledger].
func (s *MemStore) Lookup(_ context.Context, name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[name]
	if !ok {
		return nil, nil
	}
	return cloneRecord(r), nil
}

// Upsert implements [Ledger].
func (s *MemStore) Upsert(_ context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Name] = cloneRecord(r)
	return nil
}

// Close implements [Ledger]. The records stay readable afterwards.
func (s *MemStore) Close() error { return nil }

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
