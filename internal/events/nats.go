package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/retry"
)

const publishTimeout = 5 * time.Second

// conn is the subset of *nats.Conn used by NATSPublisher.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes build events as JSON on a subject.
type NATSPublisher struct {
	conn    conn
	subject string
	policy  retry.Policy
}

// NewNATSPublisher connects to url and publishes on subject. Failed publishes
// are retried according to policy.
func NewNATSPublisher(url, subject string, policy retry.Policy) (*NATSPublisher, error) {
	if url == "" {
		return nil, errors.New("NATS URL is required")
	}
	if subject == "" {
		return nil, errors.New("NATS subject is required")
	}

	nc, err := nats.Connect(url,
		nats.Name("xcodebuilder"),
		nats.Timeout(publishTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS publisher initialized", "url", url, "subject", subject)
	return &NATSPublisher{conn: nc, subject: subject, policy: policy}, nil
}

// PublishBuildFinished publishes event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) PublishBuildFinished(ctx context.Context, event *BuildFinished) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal build event: %w", err)
	}

	err = p.policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying build event", "subject", p.subject, "attempt", attempt)
		}
		return p.publish(ctx, data)
	})
	if err != nil {
		return err
	}

	slog.Debug("Published build event",
		"subject", p.subject,
		"build_id", event.BuildID,
		"outcome", event.Outcome)
	return nil
}

func (p *NATSPublisher) publish(ctx context.Context, data []byte) error {
	if err := p.conn.Publish(p.subject, data); err != nil {
		return classifyPublishError(fmt.Errorf("failed to publish build event: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush build event: %w", err)
	}
	return nil
}

// classifyPublishError marks errors that no retry can fix as permanent.
func classifyPublishError(err error) error {
	if errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrBadSubject) ||
		errors.Is(err, nats.ErrMaxPayload) {
		return errs.WrapError(err, errs.CategoryRuntime, "build event cannot be published").
			WithRetry(errs.RetryNever).Build()
	}
	return errs.WrapError(err, errs.CategoryRuntime, "build event not published").
		WithRetry(errs.RetryBackoff).Build()
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
