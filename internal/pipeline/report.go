package pipeline

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/events"
	"git.home.luguber.info/inful/xcodebuilder/internal/history"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
)

const reportTimeout = 10 * time.Second

// finish records metrics, history and the build event. Each is best-effort.
func (o *Orchestrator) finish(ctx context.Context, res *Result, runErr error) {
	status := res.Status(runErr)

	o.recorder.ObserveBuildDuration(res.Duration())
	o.recorder.IncBuildOutcome(statusLabel(status))
	o.recorder.IncArtifacts(len(res.Artifacts))

	attrs := []any{
		logfields.BuildID(res.BuildID),
		logfields.Outcome(status),
		logfields.DurationMS(float64(res.Duration().Milliseconds())),
	}
	if res.Outcome != nil {
		attrs = append(attrs,
			logfields.ExitCode(res.Outcome.RawExitCode),
			logfields.ParserExitCode(res.Outcome.ParserExitCode))
	}
	if runErr != nil {
		slog.Error("Build finished", append(attrs, logfields.Error(runErr))...)
	} else {
		slog.Info("Build finished", attrs...)
	}

	// The run context may already be canceled; reporting still gets a chance.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if o.history != nil {
		if err := o.history.Record(rctx, historyRecord(res, status, runErr)); err != nil {
			slog.Warn("Failed to record build history", logfields.BuildID(res.BuildID), logfields.Error(err))
		}
	}
	if o.publisher != nil {
		if err := o.publisher.PublishBuildFinished(rctx, buildEvent(res, status, runErr)); err != nil {
			slog.Warn("Failed to publish build event", logfields.BuildID(res.BuildID), logfields.Error(err))
		}
	}
}

func statusLabel(status string) string {
	switch status {
	case string(Succeeded), string(Failed), string(TimedOut):
		return Classification(status).metricLabel()
	case "ABORTED":
		return "aborted"
	case "ERROR":
		return "error"
	default:
		return "unknown"
	}
}

func artifactPaths(res *Result) []string {
	if len(res.Artifacts) == 0 {
		return nil
	}
	paths := make([]string, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		paths = append(paths, a.Path)
	}
	return paths
}

func selectionSummary(res *Result) string {
	if res.Invocation != nil {
		return res.Invocation.Summary()
	}
	return string(res.Selection.Mode)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func historyRecord(res *Result, status string, runErr error) history.Record {
	rec := history.Record{
		BuildID:       res.BuildID,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Outcome:       status,
		Selection:     selectionSummary(res),
		SDK:           res.Request.SDK,
		Configuration: res.Request.Configuration,
		Version:       res.Version.BuildNumber,
		ShortVersion:  res.Version.MarketingVersion,
		Commit:        res.Source.Commit,
		Branch:        res.Source.Branch,
		Artifacts:     artifactPaths(res),
		Error:         errorText(runErr),
	}
	if res.Outcome != nil {
		rec.RawExitCode = res.Outcome.RawExitCode
		rec.ParserExitCode = res.Outcome.ParserExitCode
	}
	return rec
}

func buildEvent(res *Result, status string, runErr error) *events.BuildFinished {
	ev := &events.BuildFinished{
		BuildID:       res.BuildID,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		DurationMS:    res.Duration().Milliseconds(),
		Outcome:       status,
		Selection:     selectionSummary(res),
		SDK:           res.Request.SDK,
		Configuration: res.Request.Configuration,
		Version:       res.Version.BuildNumber,
		ShortVersion:  res.Version.MarketingVersion,
		Commit:        res.Source.Commit,
		Branch:        res.Source.Branch,
		Artifacts:     artifactPaths(res),
		Error:         errorText(runErr),
	}
	if res.Outcome != nil {
		ev.RawExitCode = res.Outcome.RawExitCode
		ev.ParserExitCode = res.Outcome.ParserExitCode
	}
	return ev
}
