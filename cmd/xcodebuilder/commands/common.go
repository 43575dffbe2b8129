package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/foundation"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
)

// Global is shared state passed to every command.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output; nil means stdout.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"xcodebuilder.yaml" env:"XCODEBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build       BuildCmd       `cmd:"" help:"Run the build pipeline for the configured job"`
	ListTargets ListTargetsCmd `cmd:"" name:"list-targets" help:"List the targets, configurations and schemes of the project"`
	Keychain    KeychainCmd    `cmd:"" help:"Unlock or restore signing keychains"`
	History     HistoryCmd     `cmd:"" help:"Show recent builds"`
	Schedule    ScheduleCmd    `cmd:"" help:"Run the build on a cron schedule until interrupted"`
	Init        InitCmd        `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

var logLevels = foundation.NewNormalizer(map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}, slog.LevelInfo)

// parseLogLevel honors --verbose first, then XCODEBUILDER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return logLevels.Normalize(os.Getenv("XCODEBUILDER_LOG_LEVEL"))
}

// loadConfig loads the configuration, classifying plain load failures.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errs.IsClassified(err) {
		return nil, err
	}
	return nil, errs.WrapError(err, errs.CategoryConfig, "cannot load configuration").
		Fatal().UserAction().WithContext("path", path).Build()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
