// Package history records every forward invocation in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/executor/internal/storage"
)

//go:generate mockgen -destination=../executor/mocks/mock_history.go -package=mocks github.com/mattjoyce/executor/internal/history Recorder

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const columns = `id, run_id, module, mode, source, destination, status,
       attempted, succeeded, error, stderr, started_at, completed_at`

// ErrNotFound is returned by Get when no entry matches.
var ErrNotFound = errors.New("not found")

// Mode is the kind of forward that ran.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeBatch  Mode = "batch"
	ModeAsync  Mode = "async"
)

// Status is the outcome of an invocation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is one recorded invocation.
type Entry struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Module      string    `json:"module"`
	Mode        Mode      `json:"mode"`
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	Status      Status    `json:"status"`
	Attempted   int       `json:"attempted"`
	Succeeded   int       `json:"succeeded"`
	Error       string    `json:"error,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration is the wall-clock time the invocation took.
func (e Entry) Duration() time.Duration {
	return e.CompletedAt.Sub(e.StartedAt)
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// Store is the SQLite-backed Recorder.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already bootstrapped database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e, assigning an id when it has none.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.Module == "" {
		return fmt.Errorf("history entry has no module")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.CompletedAt.IsZero() {
		e.CompletedAt = e.StartedAt
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO command_history(
  id, run_id, module, mode, source, destination, status,
  attempted, succeeded, error, stderr, started_at, completed_at
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		e.ID, nullString(e.RunID), e.Module, string(e.Mode), e.Source, nullString(e.Destination), string(e.Status),
		e.Attempted, e.Succeeded, nullString(e.Error), nullString(e.Stderr),
		e.StartedAt.UTC().Format(timeLayout), e.CompletedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	Module string
	Limit  int
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "SELECT " + columns + " FROM command_history"
	args := []any{}
	if f.Module != "" {
		query += " WHERE module = ?"
		args = append(args, f.Module)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?;"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Get returns the entry whose id or batch run id is id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+columns+`
FROM command_history
WHERE id = ? OR run_id = ?
LIMIT 1;`, id, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("history entry %q: %w", id, ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e                        Entry
		mode, status             string
		runID, dst, errS, stderr sql.NullString
		startedS, completedS     string
	)
	if err := sc.Scan(&e.ID, &runID, &e.Module, &mode, &e.Source, &dst, &status,
		&e.Attempted, &e.Succeeded, &errS, &stderr, &startedS, &completedS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan history: %w", err)
	}
	e.Mode = Mode(mode)
	e.Status = Status(status)
	e.RunID = runID.String
	e.Destination = dst.String
	e.Error = errS.String
	e.Stderr = stderr.String
	if t, err := time.Parse(timeLayout, startedS); err == nil {
		e.StartedAt = t
	}
	if t, err := time.Parse(timeLayout, completedS); err == nil {
		e.CompletedAt = t
	}
	return e, nil
}

// Prune deletes entries that started before now minus retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM command_history WHERE started_at < ?;", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
