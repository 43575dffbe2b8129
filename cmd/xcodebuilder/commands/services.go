package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/events"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/history"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/metrics"
	"git.home.luguber.info/inful/xcodebuilder/internal/pipeline"
	"git.home.luguber.info/inful/xcodebuilder/internal/retry"
)

// services are the optional integrations around a build.
type services struct {
	history     history.Store
	publisher   events.Publisher
	recorder    *metrics.PrometheusRecorder
	metricsFile string
}

// openServices connects the integrations the configuration enables. A
// history database that cannot be opened is an error; an unreachable NATS
// server only disables events.
func openServices(cfg *config.Config, metricsFile string) (*services, error) {
	svc := &services{metricsFile: metricsFile}
	if svc.metricsFile == "" {
		svc.metricsFile = cfg.Metrics.Textfile
	}
	if svc.metricsFile != "" {
		svc.recorder = metrics.NewPrometheusRecorder(nil)
	}

	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, errs.WrapError(err, errs.CategoryStorage, "cannot open build history").
				Fatal().WithContext("path", cfg.History.Path).Build()
		}
		svc.history = store
	}

	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, eventRetryPolicy(cfg.Events))
		if err != nil {
			slog.Warn("Build events disabled", logfields.Error(err))
		} else {
			svc.publisher = pub
		}
	}
	return svc, nil
}

func eventRetryPolicy(e config.Events) retry.Policy {
	retries := e.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return retry.NewPolicy(retry.Mode(e.RetryBackoff), e.RetryInitial, e.RetryMax, retries)
}

func (s *services) options() []pipeline.Option {
	var opts []pipeline.Option
	if s.recorder != nil {
		opts = append(opts, pipeline.WithRecorder(s.recorder))
	}
	if s.history != nil {
		opts = append(opts, pipeline.WithHistory(s.history))
	}
	if s.publisher != nil {
		opts = append(opts, pipeline.WithPublisher(s.publisher))
	}
	return opts
}

// flushMetrics writes the textfile; failures are logged.
func (s *services) flushMetrics() {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.WriteTextfile(s.metricsFile); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(s.metricsFile), logfields.Error(err))
	}
}

func (s *services) Close() {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.Warn("Failed to close build history", logfields.Error(err))
		}
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
}
