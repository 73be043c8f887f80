// Package snapshot implements spec.md §6's fetch_snapshot() as an optional,
// opt-in export path: every stored action a Summary produces can be
// appended, wire-encoded, into an external sink for later inspection or
// debugging. Neither sink here is engine-of-record — pkg/engine holds the
// live document entirely in memory, per spec.md's non-goal on persistent
// storage — these are durable mirrors a caller may attach if it wants one.
// Grounded on the teacher's pkg/resource adapters (badger and the
// database/sql-based sqlite pool), reused for a single append-only log
// table/keyspace instead of the teacher's full relational-table surface.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/wire"
)

// Sink receives one wire-encoded action at a time, in apply order.
type Sink interface {
	Append(ctx context.Context, seq int64, act action.Action) error
	Close() error
}

// SQLiteSink mirrors the action log into a SQLite file via modernc.org/sqlite,
// the pure-Go driver the teacher's connection pool already depends on.
type SQLiteSink struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLiteSink opens (creating if necessary) a SQLite snapshot log at path.
// path may be ":memory:" for a throwaway export.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS action_log (
		seq INTEGER PRIMARY KEY,
		variant TEXT NOT NULL,
		payload TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: create action_log: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Append wire-encodes act and inserts it as the next log row.
func (s *SQLiteSink) Append(ctx context.Context, seq int64, act action.Action) error {
	rec, err := wire.EncodeAction(act)
	if err != nil {
		return fmt.Errorf("snapshot: encode action: %w", err)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("snapshot: marshal action: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO action_log (seq, variant, payload) VALUES (?, ?, ?)`,
		seq, act.Variant(), string(payload))
	if err != nil {
		return fmt.Errorf("snapshot: insert action_log row: %w", err)
	}
	return nil
}

// Fetch returns every logged action's wire-encoded record, ordered by seq,
// reconstituting spec.md §6's fetch_snapshot() response shape.
func (s *SQLiteSink) Fetch(ctx context.Context) ([]wire.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM action_log ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query action_log: %w", err)
	}
	defer rows.Close()

	var out []wire.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("snapshot: scan action_log row: %w", err)
		}
		var rec wire.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("snapshot: unmarshal action_log row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
