package commands

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/scheduler"
)

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	Cron             string `help:"Cron expression (overrides schedule.cron)"`
	Workspace        string `short:"w" help:"Directory relative job paths resolve against" default:"." type:"path"`
	MetricsFile      string `name:"metrics-file" help:"Write Prometheus metrics to this textfile after every run"`
	RestoreKeychains bool   `name:"restore-keychains" help:"Restore the configured keychains after every run"`
	RunNow           bool   `name:"run-now" help:"Also run once immediately"`
	NoWatch          bool   `name:"no-watch" help:"Do not reload the configuration file when it changes"`
}

func (s *ScheduleCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	opts := buildOptions{
		workspace:        s.Workspace,
		metricsFile:      s.MetricsFile,
		restoreKeychains: s.RestoreKeychains,
		out:              g.out(),
	}
	sb := newScheduledBuilds(cfg, s.Cron, func(ctx context.Context, cfg *config.Config) error {
		_, err := runBuild(ctx, cfg, opts)
		return err
	})
	expr := sb.cron()
	if expr == "" {
		return errs.ConfigError("no cron expression configured").WithContext("setting", "schedule.cron").Build()
	}

	sched, err := scheduler.New()
	if err != nil {
		return errs.WrapError(err, errs.CategoryRuntime, "cannot create scheduler").Build()
	}
	id, err := sched.ScheduleCron("build", expr, func() { sb.build(ctx) })
	if err != nil {
		return errs.WrapError(err, errs.CategoryConfig, "invalid cron expression").
			Fatal().UserAction().WithContext("cron", expr).Build()
	}
	sb.attach(sched, id)

	if !s.NoWatch {
		w, err := watchConfig(ctx, root.Config, 0, sb)
		if err != nil {
			slog.Warn("Configuration changes will not be picked up", logfields.Error(err))
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	if s.RunNow {
		sb.build(ctx)
	}
	return sched.Run(ctx)
}

// rescheduler moves a scheduled job to a new cron expression.
type rescheduler interface {
	Reschedule(id, expr string) error
}

// scheduledBuilds runs the build with the most recently loaded configuration.
type scheduledBuilds struct {
	cfg          atomic.Pointer[config.Config]
	cronOverride string
	run          func(context.Context, *config.Config) error
	runs         atomic.Int64

	sched rescheduler
	jobID string
}

func newScheduledBuilds(cfg *config.Config, cronOverride string, run func(context.Context, *config.Config) error) *scheduledBuilds {
	sb := &scheduledBuilds{cronOverride: cronOverride, run: run}
	sb.cfg.Store(cfg)
	return sb
}

func (sb *scheduledBuilds) attach(s rescheduler, id string) {
	sb.sched, sb.jobID = s, id
}

// cron is the --cron flag, else schedule.cron of the current configuration.
func (sb *scheduledBuilds) cron() string {
	if sb.cronOverride != "" {
		return sb.cronOverride
	}
	return sb.cfg.Load().Schedule.Cron
}

func (sb *scheduledBuilds) build(ctx context.Context) {
	n := sb.runs.Add(1)
	slog.Info("Scheduled build starting", slog.Int64("run", n))
	if err := sb.run(ctx, sb.cfg.Load()); err != nil {
		slog.Error("Scheduled build failed", slog.Int64("run", n), logfields.Error(err))
	}
}

// reload makes cfg the configuration of the next run and follows a changed
// schedule.cron unless --cron was given.
func (sb *scheduledBuilds) reload(cfg *config.Config) {
	defer sb.cfg.Store(cfg)
	if sb.cronOverride != "" {
		return
	}
	before := sb.cron()
	switch after := cfg.Schedule.Cron; {
	case after == "":
		slog.Warn("Reloaded configuration has no schedule.cron; keeping the current schedule", slog.String("cron", before))
		cfg.Schedule.Cron = before
	case after == before || sb.sched == nil:
	default:
		if err := sb.sched.Reschedule(sb.jobID, after); err != nil {
			slog.Error("Failed to apply the new schedule; keeping the current one",
				slog.String("cron", before), logfields.Error(err))
			cfg.Schedule.Cron = before
			return
		}
		slog.Info("Build schedule changed", slog.String("from", before), slog.String("to", after))
	}
}

func watchConfig(ctx context.Context, path string, debounce time.Duration, sb *scheduledBuilds) (*config.Watcher, error) {
	w, err := config.NewWatcher(path, debounce, sb.reload)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}
