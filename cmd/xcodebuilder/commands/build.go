package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/pipeline"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Workspace        string `short:"w" help:"Directory relative job paths resolve against" default:"." type:"path"`
	Scheme           string `help:"Override job.scheme"`
	Target           string `help:"Override job.target"`
	SDK              string `name:"sdk" help:"Override job.sdk"`
	Configuration    string `help:"Override job.configuration"`
	MetricsFile      string `name:"metrics-file" help:"Write Prometheus metrics to this textfile after the run (overrides metrics.textfile)"`
	RestoreKeychains bool   `name:"restore-keychains" help:"Restore the configured keychain search list and default keychain afterwards"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	b.applyOverrides(cfg)

	ctx, stop := signalContext()
	defer stop()

	_, err = runBuild(ctx, cfg, buildOptions{
		workspace:        b.Workspace,
		metricsFile:      b.MetricsFile,
		restoreKeychains: b.RestoreKeychains,
		out:              g.out(),
	})
	return err
}

// applyOverrides replaces job settings given on the command line. A scheme
// or target on the command line replaces the other selection settings.
func (b *BuildCmd) applyOverrides(cfg *config.Config) {
	job := &cfg.Job
	switch {
	case b.Scheme != "":
		job.Scheme = b.Scheme
	case b.Target != "":
		job.Scheme = ""
		job.Target = b.Target
		job.InterpretTargetAsRegex = false
	}
	if b.SDK != "" {
		job.SDK = b.SDK
	}
	if b.Configuration != "" {
		job.Configuration = b.Configuration
	}
}

type buildOptions struct {
	workspace        string
	metricsFile      string
	restoreKeychains bool
	out              io.Writer
}

func runBuild(ctx context.Context, cfg *config.Config, opts buildOptions) (*pipeline.Result, error) {
	workspaceDir, err := filepath.Abs(opts.workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	svc, err := openServices(cfg, opts.metricsFile)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	r := runner.NewExecRunner()
	orch := pipeline.New(cfg, r, append(svc.options(), pipeline.WithLogSink(opts.out))...)
	res, runErr := orch.Run(ctx, pipeline.Environment{Workspace: workspaceDir, Env: os.Environ()})

	if opts.restoreKeychains {
		restoreKeychains(context.WithoutCancel(ctx), cfg, r, workspaceDir, opts.out)
	}
	svc.flushMetrics()
	printSummary(opts.out, res, runErr)
	return res, runErr
}

func restoreKeychains(ctx context.Context, cfg *config.Config, r runner.Runner, dir string, out io.Writer) {
	if err := newUnlocker(cfg, r, dir, out).Restore(ctx, cfg.Keychains, cfg.DefaultKeychain); err != nil {
		slog.Warn("Build is unstable: keychains not restored", logfields.Error(err))
	}
}

func printSummary(w io.Writer, res *pipeline.Result, runErr error) {
	if res == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Build %s: %s", res.BuildID, res.Status(runErr))
	if res.Metadata != nil {
		fmt.Fprintf(&b, " [%s]", res.Metadata.Description())
	}
	fmt.Fprintf(&b, " in %s\n", res.Duration().Round(time.Millisecond))
	if res.Tests.Tests > 0 {
		fmt.Fprintf(&b, "Tests: %d, failures: %d\n", res.Tests.Tests, res.Tests.Failures)
	}
	for _, a := range res.Artifacts {
		fmt.Fprintf(&b, "Artifact: %s\n", a.Path)
		if a.SymbolsPath != "" {
			fmt.Fprintf(&b, "Symbols:  %s\n", a.SymbolsPath)
		}
		if a.ManifestPath != "" {
			fmt.Fprintf(&b, "Manifest: %s\n", a.ManifestPath)
		}
	}
	_, _ = io.WriteString(w, b.String())
}
