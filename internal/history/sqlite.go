package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for unknown build ids.
var ErrNotFound = errors.New("build not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		build_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		raw_exit_code INTEGER NOT NULL,
		parser_exit_code INTEGER NOT NULL,
		selection TEXT,
		sdk TEXT,
		configuration TEXT,
		version TEXT,
		short_version TEXT,
		git_commit TEXT,
		git_branch TEXT,
		artifacts TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record saves r.
func (s *SQLiteStore) Record(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifacts, err := json.Marshal(r.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO builds (
			build_id, started_at, finished_at, outcome, raw_exit_code, parser_exit_code,
			selection, sdk, configuration, version, short_version, git_commit, git_branch, artifacts, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Outcome, r.RawExitCode, r.ParserExitCode,
		r.Selection, r.SDK, r.Configuration, r.Version, r.ShortVersion, r.Commit, r.Branch, string(artifacts), r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

const selectColumns = `SELECT build_id, started_at, finished_at, outcome, raw_exit_code, parser_exit_code,
	selection, sdk, configuration, version, short_version, git_commit, git_branch, artifacts, error FROM builds`

// Get returns one record.
func (s *SQLiteStore) Get(ctx context.Context, buildID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE build_id = ?", buildID)
	if err != nil {
		return Record{}, fmt.Errorf("query build: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, buildID)
	}
	return records[0], nil
}

// Recent returns the newest records first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			r                   Record
			started, finished   int64
			artifacts           sql.NullString
			selection, sdk      sql.NullString
			conf, ver, short    sql.NullString
			commit, branch, msg sql.NullString
		)
		err := rows.Scan(&r.BuildID, &started, &finished, &r.Outcome, &r.RawExitCode, &r.ParserExitCode,
			&selection, &sdk, &conf, &ver, &short, &commit, &branch, &artifacts, &msg)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		r.Selection, r.SDK, r.Configuration = selection.String, sdk.String, conf.String
		r.Version, r.ShortVersion = ver.String, short.String
		r.Commit, r.Branch, r.Error = commit.String, branch.String, msg.String
		if artifacts.Valid && artifacts.String != "" {
			if err := json.Unmarshal([]byte(artifacts.String), &r.Artifacts); err != nil {
				return nil, fmt.Errorf("unmarshal artifacts: %w", err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
