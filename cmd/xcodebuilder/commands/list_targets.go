package commands

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

// ListTargetsCmd implements the 'list-targets' command.
type ListTargetsCmd struct {
	Workspace string `short:"w" help:"Directory relative job paths resolve against" default:"." type:"path"`
}

func (l *ListTargetsCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	listing, err := listProject(ctx, runner.NewExecRunner(), cfg, l.Workspace)
	if err != nil {
		return err
	}
	printListing(g, listing)
	return nil
}

func listProject(ctx context.Context, r runner.Runner, cfg *config.Config, workspace string) (xcode.ProjectListing, error) {
	dir := workspace
	if p := cfg.Job.ProjectPath; p != "" {
		if filepath.IsAbs(p) {
			dir = p
		} else {
			dir = filepath.Join(workspace, p)
		}
	}

	var out bytes.Buffer
	cmd := runner.Command{
		Path:   cfg.Tools.Xcodebuild,
		Args:   xcode.ListArgs(cfg.Job.WorkspaceFile, cfg.Job.ProjectFile),
		Dir:    dir,
		Stdout: &out,
	}
	timeout := cfg.Job.ListTimeout
	if timeout <= 0 {
		timeout = config.DefaultListTimeout
	}
	code, err := r.RunWithTimeout(ctx, cmd, timeout)
	if err != nil {
		return xcode.ProjectListing{}, errs.WrapError(err, errs.CategoryTool, "xcodebuild -list could not run").Build()
	}
	if code == runner.ExitTimedOut {
		return xcode.ProjectListing{}, errs.ToolError(fmt.Sprintf("xcodebuild -list timed out after %s", timeout)).Build()
	}
	if code != 0 {
		return xcode.ProjectListing{}, errs.ToolError(fmt.Sprintf("xcodebuild -list exited %d", code)).
			WithContext("output", strings.TrimSpace(out.String())).Build()
	}
	return xcode.ParseTargetList(out.String()), nil
}

func printListing(g *Global, l xcode.ProjectListing) {
	w := g.out()
	section := func(title string, items []string) {
		_, _ = fmt.Fprintf(w, "%s:\n", title)
		if len(items) == 0 {
			_, _ = fmt.Fprintln(w, "  (none)")
		}
		for _, it := range items {
			_, _ = fmt.Fprintf(w, "  %s\n", it)
		}
	}
	section("Targets", l.Targets)
	section("Build Configurations", l.Configurations)
	section("Schemes", l.Schemes)
}
