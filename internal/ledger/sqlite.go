package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/sortinghat/internal/house"
)

// SQLiteSchema creates the students table used by [SQLite].
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS students (
    name                  TEXT PRIMARY KEY,
    favorite_color        TEXT NOT NULL DEFAULT '',
    pet_type              TEXT NOT NULL DEFAULT '',
    adjective_descriptors TEXT NOT NULL DEFAULT '',
    chosen_house          TEXT NOT NULL
);`

// SQLite is a [Ledger] stored in a single SQLite file through the pure-Go
// modernc.org/sqlite driver.
type SQLite struct {
	db *sql.DB
}

var _ Ledger = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and ensures the schema
// exists. The parent directory is created when missing.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create dir for %q: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite %q: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: ping sqlite %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Lookup implements [Ledger].
func (s *SQLite) Lookup(ctx context.Context, name string) (*Record, error) {
	const query = `
		SELECT name, favorite_color, pet_type, adjective_descriptors, chosen_house
		FROM students
		WHERE name = ?`

	var (
		r          Record
		adjs, hous string
	)
	err := s.db.QueryRowContext(ctx, query, name).Scan(&r.Name, &r.FavoriteColor, &r.PetType, &adjs, &hous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: lookup %q: %w", name, err)
	}
	h, err := house.Parse(hous)
	if err != nil {
		return nil, fmt.Errorf("ledger: lookup %q: %w", name, err)
	}
	r.House = h
	r.Adjectives = splitAdjectives(adjs)
	return &r, nil
}

// Upsert implements [Ledger].
func (s *SQLite) Upsert(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO students (name, favorite_color, pet_type, adjective_descriptors, chosen_house)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			favorite_color = excluded.favorite_color,
			pet_type = excluded.pet_type,
			adjective_descriptors = excluded.adjective_descriptors,
			chosen_house = excluded.chosen_house`

	_, err := s.db.ExecContext(ctx, query,
		r.Name, r.FavoriteColor, r.PetType, joinAdjectives(r.Adjectives), r.House.String(),
	)
	if err != nil {
		return fmt.Errorf("ledger: upsert %q: %w", r.Name, err)
	}
	return nil
}

// Ping checks that the database file is still reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements [Ledger].
func (s *SQLite) Close() error {
	return s.db.Close()
}
