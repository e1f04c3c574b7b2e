// Package mock provides a test double for the ledger.Ledger interface.
//
// Ledger stores records in memory and records every call, so tests can
// assert how many upserts a ceremony issued and whether the ledger was
// closed.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sortinghat/internal/ledger"
)

// Ledger is a mock implementation of ledger.Ledger.
type Ledger struct {
	mu sync.Mutex

	// Records is the backing store, keyed by name. Tests may seed it before
	// use; a nil map is allocated on first Upsert.
	Records map[string]ledger.Record

	// LookupErr, if non-nil, is returned by every Lookup call.
	LookupErr error

	// UpsertErr, if non-nil, is returned by every Upsert call and nothing is
	// stored.
	UpsertErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// PingErr, if non-nil, is returned by Ping.
	PingErr error

	// --- Call records ---

	// LookupCalls records the names passed to Lookup in order.
	LookupCalls []string

	// UpsertCalls records a copy of every record passed to Upsert.
	UpsertCalls []ledger.Record

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// PingCallCount is the number of times Ping was called.
	PingCallCount int
}

// Seed stores r as if it had been written by an earlier ceremony.
func (l *Ledger) Seed(r ledger.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Records == nil {
		l.Records = make(map[string]ledger.Record)
	}
	l.Records[r.Name] = r
}

// Lookup records the call and returns the stored record or LookupErr.
func (l *Ledger) Lookup(_ context.Context, name string) (*ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LookupCalls = append(l.LookupCalls, name)
	if l.LookupErr != nil {
		return nil, l.LookupErr
	}
	r, ok := l.Records[name]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Upsert records the call and stores r unless UpsertErr is set.
func (l *Ledger) Upsert(_ context.Context, r *ledger.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *r
	cp.Adjectives = append([]string(nil), r.Adjectives...)
	l.UpsertCalls = append(l.UpsertCalls, cp)
	if l.UpsertErr != nil {
		return l.UpsertErr
	}
	if l.Records == nil {
		l.Records = make(map[string]ledger.Record)
	}
	l.Records[r.Name] = cp
	return nil
}

// Close records the call and returns CloseErr.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.CloseCallCount++
	return l.CloseErr
}

// Ping records the call and returns PingErr.
func (l *Ledger) Ping(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.PingCallCount++
	return l.PingErr
}

// Pings returns the number of Ping calls. Thread-safe.
func (l *Ledger) Pings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.PingCallCount
}

// UpsertCount returns the number of Upsert calls. Thread-safe.
func (l *Ledger) UpsertCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.UpsertCalls)
}

// Closed returns the number of Close calls. Thread-safe.
func (l *Ledger) Closed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.CloseCallCount
}

// Reset clears all recorded calls. Thread-safe.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LookupCalls = nil
	l.UpsertCalls = nil
	l.CloseCallCount = 0
	l.PingCallCount = 0
}

// Ensure Ledger implements ledger.Ledger at compile time.
var _ ledger.Ledger = (*Ledger)(nil)
