package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned by [Open] for an unrecognised driver name.
var ErrUnknownDriver = errors.New("ledger: unknown driver")

// Driver names accepted by [Open].
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultPath is the SQLite file used when none is configured.
const DefaultPath = "hogwarts.db"

// Options selects and parameterises a ledger backend.
type Options struct {
	// Driver is one of the Driver* constants. Empty means sqlite.
	Driver string

	// Path is the SQLite database file. Empty means [DefaultPath].
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// Opener opens a ledger and ensures its schema exists.
type Opener func(ctx context.Context) (Ledger, error)

// NewOpener returns an [Opener] bound to opts.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context) (Ledger, error) {
		return Open(ctx, opts)
	}
}

// Open opens the backend selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Ledger, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemStore(), nil
	case "", DriverSQLite:
		path := opts.Path
		if path == "" {
			path = DefaultPath
		}
		return OpenSQLite(ctx, path)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, errors.New("ledger: postgres driver requires a dsn")
		}
		return OpenPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
