package watcher

import (
	"context"

	"github.com/mainefish/fishwatch/watcher/internal/state"
)

// StateSchema is the SQL schema the service expects. Callers opening the
// database pass it to dbopen.WithSchema.
const StateSchema = state.Schema

// Run is one row of run history. Re-exported from the internal state store
// for admin API consumers.
type Run = state.Run

// RecentRuns returns run history, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	return s.store.RecentRuns(ctx, limit)
}

// LastRun returns the most recent run for the watched key, or nil when the
// key has never been run.
func (s *Service) LastRun(ctx context.Context) (*Run, error) {
	return s.store.LastRun(ctx, s.cfg.Store.Key)
}

// CurrentFingerprint returns the stored fingerprint for the watched key, or
// "" when none has been stored yet.
func (s *Service) CurrentFingerprint(ctx context.Context) (string, error) {
	return s.store.Fingerprint(ctx, s.cfg.Store.Key)
}
