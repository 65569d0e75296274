package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps history in a dosing_history table through sqlx.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

const entryColumns = "id, recorded_at, turbidity, ph, flow, regime_flow, dose, method, category"

// OpenSQL connects with driverName ("sqlite3" or "postgres") and creates the
// schema when missing.
func OpenSQL(driverName, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open history: %s requires a dsn", driverName)
	}
	if driverName == "sqlite3" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if driverName == "sqlite3" {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, driver: driverName}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	ts := "TIMESTAMP"
	if s.driver == "postgres" {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dosing_history (
			id TEXT PRIMARY KEY,
			recorded_at ` + ts + ` NOT NULL,
			turbidity DOUBLE PRECISION NOT NULL,
			ph DOUBLE PRECISION NOT NULL,
			flow DOUBLE PRECISION NOT NULL,
			regime_flow DOUBLE PRECISION NOT NULL,
			dose DOUBLE PRECISION NOT NULL,
			method TEXT NOT NULL,
			category TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dosing_history_recorded_at ON dosing_history(recorded_at)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("create history schema: %w", err)
		}
	}
	return nil
}

// Append inserts e.
func (s *SQLStore) Append(ctx context.Context, e Entry) error {
	e.RecordedAt = e.RecordedAt.UTC()
	const q = `INSERT INTO dosing_history (` + entryColumns + `)
		VALUES (:id, :recorded_at, :turbidity, :ph, :flow, :regime_flow, :dose, :method, :category)`
	if _, err := s.db.NamedExecContext(ctx, q, e); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (s *SQLStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		where = append(where, "recorded_at < ?")
		args = append(args, f.Until.UTC())
	}
	q := "SELECT " + entryColumns + " FROM dosing_history"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY recorded_at DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	var out []Entry
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	for i := range out {
		out[i].RecordedAt = out[i].RecordedAt.UTC()
	}
	return out, nil
}

// Prune deletes entries recorded before the cutoff and reports how many went.
func (s *SQLStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM dosing_history WHERE recorded_at < ?"), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
