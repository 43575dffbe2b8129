// Package history keeps a local record of finished builds in SQLite.
package history

import (
	"context"
	"time"
)

// Record describes one finished pipeline run.
type Record struct {
	BuildID        string
	StartedAt      time.Time
	FinishedAt     time.Time
	Outcome        string
	RawExitCode    int
	ParserExitCode int
	Selection      string
	SDK            string
	Configuration  string
	Version        string
	ShortVersion   string
	Commit         string
	Branch         string
	Artifacts      []string
	Error          string
}

// Duration is the wall time of the run.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists build records.
type Store interface {
	// Record saves r, replacing an existing record with the same build id.
	Record(ctx context.Context, r Record) error

	// Get returns the record with the given build id.
	Get(ctx context.Context, buildID string) (Record, error)

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Close closes the store and releases resources.
	Close() error
}
