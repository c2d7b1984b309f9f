// Package state persists the last accepted report fingerprint and per-run
// history in SQLite. The fingerprint row is the change detector's memory:
// it is replaced atomically before any notification goes out, so a crash
// between store and notify re-suppresses rather than re-notifies.
package state

import (
	"context"
	"database/sql"
	"fmt"
)

// Store wraps an already-opened database for watch state operations.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Run is one row of run history for a watched key.
type Run struct {
	ID          int64
	RunID       string
	Key         string
	StartedAt   int64 // unix millis
	DurationMs  int64
	Status      string
	HTTPStatus  int
	Fingerprint string
	Attempts    int
	Records     int
	Sent        int
	Failed      int
	Error       string
}

// Fingerprint returns the stored fingerprint for key, or "" when no prior
// fingerprint exists. Absence is not an error.
func (s *Store) Fingerprint(ctx context.Context, key string) (string, error) {
	var fp string
	err := s.DB.QueryRowContext(ctx,
		`SELECT fingerprint FROM watch_state WHERE key = ?`, key).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("state: read fingerprint: %w", err)
	}
	return fp, nil
}

// ReplaceFingerprint stores fingerprint for key, replacing any prior value
// in a single statement.
func (s *Store) ReplaceFingerprint(ctx context.Context, key, fingerprint string, updatedAt int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO watch_state (key, fingerprint, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at`,
		key, fingerprint, updatedAt)
	if err != nil {
		return fmt.Errorf("state: replace fingerprint: %w", err)
	}
	return nil
}

// InsertRun appends a run to the history log.
func (s *Store) InsertRun(ctx context.Context, r *Run) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO run_log (run_id, key, started_at, duration_ms, status,
		http_status, fingerprint, attempts, records, sent, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Key, r.StartedAt, r.DurationMs, r.Status,
		r.HTTPStatus, r.Fingerprint, r.Attempts, r.Records, r.Sent, r.Failed, r.Error,
	)
	return err
}

// RecentRuns returns run history entries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, key, started_at, duration_ms, status,
		http_status, fingerprint, attempts, records, sent, failed, error
		FROM run_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LastRun returns the most recent run for key, or nil when the key has
// never been run.
func (s *Store) LastRun(ctx context.Context, key string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, run_id, key, started_at, duration_ms, status,
		http_status, fingerprint, attempts, records, sent, failed, error
		FROM run_log WHERE key = ? ORDER BY id DESC LIMIT 1`, key)

	var r Run
	err := row.Scan(&r.ID, &r.RunID, &r.Key, &r.StartedAt, &r.DurationMs, &r.Status,
		&r.HTTPStatus, &r.Fingerprint, &r.Attempts, &r.Records, &r.Sent, &r.Failed, &r.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: scan run: %w", err)
	}
	return &r, nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var r Run
	err := rows.Scan(&r.ID, &r.RunID, &r.Key, &r.StartedAt, &r.DurationMs, &r.Status,
		&r.HTTPStatus, &r.Fingerprint, &r.Attempts, &r.Records, &r.Sent, &r.Failed, &r.Error)
	if err != nil {
		return nil, fmt.Errorf("state: scan run: %w", err)
	}
	return &r, nil
}
