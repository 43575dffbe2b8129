package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/retry"
)

type fakeConn struct {
	subject string
	data    []byte
	pubErr  error
	// failures makes the first n publishes fail.
	failures int
	attempts int
	flushed  bool
	closed   bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.attempts++
	if c.pubErr != nil {
		return c.pubErr
	}
	if c.attempts <= c.failures {
		return errors.New("nats: connection reconnecting")
	}
	c.subject, c.data = subject, data
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.flushed = true
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func TestNATSPublisher_PublishBuildFinished(t *testing.T) {
	fc := &fakeConn{}
	p := &NATSPublisher{conn: fc, subject: "xcodebuilder.builds"}

	start := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	err := p.PublishBuildFinished(t.Context(), &BuildFinished{
		BuildID:    "b-7",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		DurationMS: 1000,
		Outcome:    "SUCCEEDED",
		Artifacts:  []string{"MyApp-1.0-3.ipa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "xcodebuilder.builds", fc.subject)
	assert.True(t, fc.flushed)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(fc.data, &payload))
	assert.Equal(t, "b-7", payload["build_id"])
	assert.Equal(t, "SUCCEEDED", payload["outcome"])
	assert.InDelta(t, 1000, payload["duration_ms"], 0)
	assert.NotContains(t, payload, "error")

	require.NoError(t, p.Close())
	assert.True(t, fc.closed)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	fc := &fakeConn{pubErr: errors.New("connection closed")}
	p := &NATSPublisher{conn: fc, subject: "s", policy: retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 2)}

	err := p.PublishBuildFinished(t.Context(), &BuildFinished{BuildID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
	assert.False(t, fc.flushed)
	assert.Equal(t, 3, fc.attempts)
}

func TestNATSPublisher_ClosedConnectionIsNotRetried(t *testing.T) {
	fc := &fakeConn{pubErr: nats.ErrConnectionClosed}
	p := &NATSPublisher{conn: fc, subject: "s", policy: retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 2)}

	err := p.PublishBuildFinished(t.Context(), &BuildFinished{BuildID: "x"})
	require.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.True(t, errs.HasCategory(err, errs.CategoryRuntime))
	assert.Equal(t, 1, fc.attempts)
}

func TestNATSPublisher_RetriesTransientFailure(t *testing.T) {
	fc := &fakeConn{failures: 1}
	p := &NATSPublisher{conn: fc, subject: "s", policy: retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 2)}

	require.NoError(t, p.PublishBuildFinished(t.Context(), &BuildFinished{BuildID: "x"}))
	assert.Equal(t, 2, fc.attempts)
	assert.True(t, fc.flushed)
}

func TestNewNATSPublisher_RequiresURLAndSubject(t *testing.T) {
	_, err := NewNATSPublisher("", "s", retry.DefaultPolicy())
	require.Error(t, err)
	_, err = NewNATSPublisher("nats://127.0.0.1:4222", "", retry.DefaultPolicy())
	require.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.PublishBuildFinished(t.Context(), &BuildFinished{}))
	require.NoError(t, p.Close())
}
