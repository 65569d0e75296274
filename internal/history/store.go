package history

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store persists estimate history append-only. List returns newest first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverCSV      = "csv"
	DriverNone     = "none"
)

// Open returns the store for driver. dsn is a file path for sqlite and csv,
// and a connection string for postgres.
func Open(driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3":
		return OpenSQL("sqlite3", dsn)
	case DriverPostgres, "postgresql":
		return OpenSQL("postgres", dsn)
	case DriverCSV:
		return OpenCSV(dsn)
	case DriverNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown history driver %q (use sqlite, postgres, csv or none)", driver)
	}
}

// Nop discards history.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }
func (Nop) List(context.Context, Filter) ([]Entry, error) { return nil, nil }
func (Nop) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (Nop) Close() error { return nil }
