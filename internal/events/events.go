// Package events announces finished builds on a NATS subject.
package events

import (
	"context"
	"time"
)

// BuildFinished is the payload published after every pipeline run.
type BuildFinished struct {
	BuildID        string    `json:"build_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DurationMS     int64     `json:"duration_ms"`
	Outcome        string    `json:"outcome"`
	RawExitCode    int       `json:"raw_exit_code"`
	ParserExitCode int       `json:"parser_exit_code"`
	Selection      string    `json:"selection,omitempty"`
	SDK            string    `json:"sdk,omitempty"`
	Configuration  string    `json:"configuration,omitempty"`
	Version        string    `json:"version,omitempty"`
	ShortVersion   string    `json:"short_version,omitempty"`
	Commit         string    `json:"commit,omitempty"`
	Branch         string    `json:"branch,omitempty"`
	Artifacts      []string  `json:"artifacts,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Publisher delivers build events.
type Publisher interface {
	PublishBuildFinished(ctx context.Context, event *BuildFinished) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishBuildFinished(context.Context, *BuildFinished) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }
