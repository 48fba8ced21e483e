// Package store provides a SQLite-backed secondary index over sessions and
// steps, used only to answer fast `list`/`stats` queries. The JSON files
// under a session's directory remain authoritative; this index
// is rebuilt from them and never the other way around.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SessionRow mirrors the subset of session.json fields the index needs
// for listing and aggregate statistics.
type SessionRow struct {
	ID          string     `db:"id"`
	ProjectName string     `db:"project_name"`
	PromptName  string     `db:"prompt_name"`
	Status      string     `db:"status"`
	NumAgents   int        `db:"num_agents"`
	TotalSteps  int        `db:"total_steps"`
	CurrentStep int        `db:"current_step"`
	StartedAt   time.Time  `db:"started_at"`
	EndedAt     *time.Time `db:"ended_at"`
}

// Store wraps a sqlx handle to the index database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite index at path. An empty
// path uses an in-memory database, useful for tests and for `stats` when
// no persistent index is configured.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc sqlite is not safe for concurrent writers

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	prompt_name TEXT NOT NULL,
	status TEXT NOT NULL,
	num_agents INTEGER NOT NULL,
	total_steps INTEGER NOT NULL,
	current_step INTEGER NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert inserts or updates one session's row.
func (s *Store) Upsert(ctx context.Context, row SessionRow) error {
	const q = `
INSERT INTO sessions (id, project_name, prompt_name, status, num_agents, total_steps, current_step, started_at, ended_at)
VALUES (:id, :project_name, :prompt_name, :status, :num_agents, :total_steps, :current_step, :started_at, :ended_at)
ON CONFLICT(id) DO UPDATE SET
	project_name=excluded.project_name,
	prompt_name=excluded.prompt_name,
	status=excluded.status,
	num_agents=excluded.num_agents,
	total_steps=excluded.total_steps,
	current_step=excluded.current_step,
	started_at=excluded.started_at,
	ended_at=excluded.ended_at
`
	_, err := s.db.NamedExecContext(ctx, q, row)
	return err
}

// List returns up to limit sessions, most recently started first. A
// limit <= 0 means unlimited. When activeOnly is true, only sessions
// with status "active" or "paused" are returned.
func (s *Store) List(ctx context.Context, activeOnly bool, limit int) ([]SessionRow, error) {
	q := `SELECT id, project_name, prompt_name, status, num_agents, total_steps, current_step, started_at, ended_at FROM sessions`
	if activeOnly {
		q += ` WHERE status IN ('active', 'paused')`
	}
	q += ` ORDER BY started_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []SessionRow
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// Stats aggregates simple counters across sessions started within the
// last `days` days (0 means all time).
type Stats struct {
	Total        int
	Completed    int
	Failed       int
	Interrupted  int
	Active       int
	AvgStepCount float64
}

// Aggregate computes Stats over the last `days` days of sessions.
func (s *Store) Aggregate(ctx context.Context, days int) (Stats, error) {
	q := `SELECT status, total_steps FROM sessions`
	var args []interface{}
	if days > 0 {
		q += ` WHERE started_at >= ?`
		args = append(args, time.Now().AddDate(0, 0, -days))
	}

	rows, err := s.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var out Stats
	var stepSum int
	for rows.Next() {
		var status string
		var steps int
		if err := rows.Scan(&status, &steps); err != nil {
			return Stats{}, err
		}
		out.Total++
		stepSum += steps
		switch status {
		case "completed":
			out.Completed++
		case "failed":
			out.Failed++
		case "interrupted":
			out.Interrupted++
		case "active", "paused":
			out.Active++
		}
	}
	if out.Total > 0 {
		out.AvgStepCount = float64(stepSum) / float64(out.Total)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = sql.ErrNoRows
