package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/sortinghat/internal/house"
)

// PostgresSchema is the SQL DDL for the students table. Execute it via
// [Postgres.Migrate] or apply it manually during deployment.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS students (
    name                  TEXT PRIMARY KEY,
    favorite_color        TEXT NOT NULL DEFAULT '',
    pet_type              TEXT NOT NULL DEFAULT '',
    adjective_descriptors TEXT NOT NULL DEFAULT '',
    chosen_house          TEXT NOT NULL,
    sorted_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a [Ledger] backed by a PostgreSQL database.
type Postgres struct {
	db    DB
	close func()
}

var _ Ledger = (*Postgres)(nil)

// NewPostgres creates a [Postgres] ledger on top of db. The caller owns db:
// Close is a no-op. Call [Postgres.Migrate] before issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects a pool to dsn and migrates the schema. Close releases
// the pool.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}
	p := &Postgres{db: pool, close: pool.Close}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate executes [PostgresSchema], creating the students table if it does
// not already exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

// Lookup implements [Ledger].
func (p *Postgres) Lookup(ctx context.Context, name string) (*Record, error) {
	const query = `
		SELECT name, favorite_color, pet_type, adjective_descriptors, chosen_house
		FROM students
		WHERE name = $1`

	var (
		r          Record
		adjs, hous string
	)
	err := p.db.QueryRow(ctx, query, name).Scan(&r.Name, &r.FavoriteColor, &r.PetType, &adjs, &hous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
func (p *Postgres) Upsert(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO students (name, favorite_color, pet_type, adjective_descriptors, chosen_house)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			favorite_color = EXCLUDED.favorite_color,
			pet_type = EXCLUDED.pet_type,
			adjective_descriptors = EXCLUDED.adjective_descriptors,
			chosen_house = EXCLUDED.chosen_house,
			sorted_at = now()`

	_, err := p.db.Exec(ctx, query,
		r.Name, r.FavoriteColor, r.PetType, joinAdjectives(r.Adjectives), r.House.String(),
	)
	if err != nil {
		return fmt.Errorf("ledger: upsert %q: %w", r.Name, err)
	}
	return nil
}

// Ping checks the connection with a trivial query.
func (p *Postgres) Ping(ctx context.Context) error {
	var one int
	return p.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// Close implements [Ledger]. It closes the pool only when the ledger opened it.
func (p *Postgres) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
