// Package ledger persists the outcome of sorting ceremonies, one record per
// student name, so a returning student can be recognised.
//
// Three backends are provided: an in-memory [MemStore] for tests and
// throwaway runs, an embedded [SQLite] file (the default) and a shared
// [Postgres] database.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/sortinghat/internal/house"
)

// Record is the stored outcome of one completed ceremony.
type Record struct {
	// Name is the student's name and the unique key. Lookups are exact.
	Name string

	FavoriteColor string

	// PetType is empty when the pet question could not be answered.
	PetType string

	// Adjectives holds the words the student used to describe themself, in
	// the order they were spoken.
	Adjectives []string

	House house.House
}

// Validate reports whether r can be persisted.
func (r *Record) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("ledger: record name is required"))
	}
	if !r.House.IsValid() {
		errs = append(errs, fmt.Errorf("ledger: record house %d is invalid", int(r.House)))
	}
	return errors.Join(errs...)
}

// Ledger stores and retrieves ceremony records.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// Lookup returns the record stored under name, or (nil, nil) when no
	// ceremony has been recorded for that name.
	Lookup(ctx context.Context, name string) (*Record, error)

	// Upsert creates or replaces the record for r.Name.
	Upsert(ctx context.Context, r *Record) error

	// Close releases the underlying storage handle.
	Close() error
}

// joinAdjectives encodes adjectives in the comma-joined column layout.
func joinAdjectives(adjs []string) string {
	return strings.Join(adjs, ",")
}

// splitAdjectives decodes the comma-joined column layout. An empty column
// yields a nil slice.
func splitAdjectives(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func cloneRecord(r *Record) *Record {
	c := *r
	if r.Adjectives != nil {
		c.Adjectives = append([]string(nil), r.Adjectives...)
	}
	return &c
}
