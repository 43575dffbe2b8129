package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/expand"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/keychain"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/workspace"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

// TestReportsDir is where JUnit reports are written, relative to the work directory.
const TestReportsDir = "test-reports"

func (o *Orchestrator) stageClean(_ context.Context, bs *BuildState) error {
	var paths []string
	if bs.Request.CleanBeforeBuild {
		paths = append(paths, bs.BuildDir)
	}
	if bs.Request.CleanTestReports {
		paths = append(paths, filepath.Join(bs.WorkDir, TestReportsDir))
	}
	if err := workspace.RemoveTrees(paths...); err != nil {
		return errs.FileSystemError("clean failed").
			WithCause(fmt.Errorf("%w: %w", ErrClean, err)).Build()
	}
	return nil
}

func (o *Orchestrator) unlocker(bs *BuildState) keychain.Unlocker {
	return keychain.Unlocker{
		Runner:   o.runner,
		Security: o.cfg.Tools.Security,
		Dir:      bs.WorkDir,
		Env:      bs.Env.Env,
		Output:   o.sink,
		Expander: bs.expander,
	}
}

func (o *Orchestrator) stageUnlockKeychain(ctx context.Context, bs *BuildState) error {
	req := bs.Request
	kc, err := keychain.Resolve(o.cfg.Keychains, req.KeychainName, req.KeychainPath, req.KeychainPassword)
	if err != nil {
		return errs.WrapError(err, errs.CategoryConfig, "no keychain to unlock").
			Fatal().UserAction().WithContext("keychain", req.KeychainName).Build()
	}
	if err := o.unlocker(bs).Unlock(ctx, kc); err != nil {
		return errs.KeychainError("keychain unlock failed").
			WithCause(err).WithContext("keychain", kc.Name).Build()
	}
	return nil
}

// stageDiagnostics prints signing identities and installed SDKs into the log.
// Failures are ignored.
func (o *Orchestrator) stageDiagnostics(ctx context.Context, bs *BuildState) error {
	security := o.cfg.Tools.Security
	cmds := []runner.Command{o.command(bs, security, "find-identity", "-p", "codesigning", "-v")}
	if id := bs.Request.CodeSigningIdentity; id != "" {
		cmds = append(cmds, o.command(bs, security, "find-certificate", "-a", "-c", id, "-Z"))
	}
	cmds = append(cmds, o.command(bs, o.cfg.Tools.Xcodebuild, "-showsdks"))

	for _, cmd := range cmds {
		code, err := o.runner.Run(ctx, cmd)
		if err != nil || code != 0 {
			slog.Debug("Diagnostic command failed", logfields.Command(cmd.String()), logfields.ExitCode(code))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// stageListTargets runs `xcodebuild -list` under a timeout. A timeout leaves
// the target set empty; any other failure halts the run without an error.
func (o *Orchestrator) stageListTargets(ctx context.Context, bs *BuildState) error {
	timeout := bs.Request.ListTimeout
	if timeout <= 0 {
		timeout = config.DefaultListTimeout
	}
	var out bytes.Buffer
	cmd := o.command(bs, o.cfg.Tools.Xcodebuild, xcode.ListArgs(bs.Request.WorkspaceFile, bs.Request.ProjectFile)...)
	cmd.Stdout = &out

	code, err := o.runner.RunWithTimeout(ctx, cmd, timeout)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil && code == runner.ExitTimedOut {
		slog.Warn("Listing targets timed out; continuing without a target list",
			logfields.BuildID(bs.BuildID), slog.Duration("timeout", timeout))
		return nil
	}
	if err != nil || code != 0 {
		slog.Warn("Listing targets failed; stopping the build",
			logfields.BuildID(bs.BuildID), logfields.ExitCode(code), logfields.Error(err))
		_, _ = io.Copy(o.sink, &out)
		bs.Aborted = true
		return errHalt
	}

	listing := xcode.ParseTargetList(out.String())
	_, _ = o.sink.Write(out.Bytes())
	bs.Targets = listing.Targets
	slog.Info("Targets discovered", logfields.BuildID(bs.BuildID), logfields.Targets(listing.Targets))
	return nil
}

func (o *Orchestrator) stageResolveTargets(_ context.Context, bs *BuildState) error {
	sel, err := xcode.ResolveSelection(bs.Request.SelectionInput(), bs.Targets)
	if err != nil {
		return errs.TargetError("cannot resolve build targets").
			WithCause(err).WithContext("target", bs.Request.Target).Build()
	}
	bs.Selection = sel
	return nil
}

func (o *Orchestrator) stageComposeCommand(_ context.Context, bs *BuildState) error {
	req := bs.Request
	extra, err := xcode.SplitArguments(expand.Lenient(bs.expander, req.ExtraArguments))
	if err != nil {
		return errs.WrapError(fmt.Errorf("%w: %w", ErrInvalidArguments, err), errs.CategoryConfig,
			"xcodebuild_arguments cannot be parsed").Fatal().UserAction().Build()
	}
	bs.Invocation = &xcode.BuildInvocation{
		Selection:             bs.Selection,
		SDK:                   req.SDK,
		WorkspaceFile:         req.WorkspaceFile,
		ProjectFile:           req.ProjectFile,
		Configuration:         req.Configuration,
		Clean:                 req.CleanBeforeBuild,
		Archive:               req.GenerateArchive,
		Symroot:               bs.symroot,
		ConfigurationBuildDir: bs.configurationBuildDir,
		CodeSigningIdentity:   req.CodeSigningIdentity,
		ExtraArgs:             extra,
	}
	slog.Info("Build invocation", logfields.BuildID(bs.BuildID), slog.String("summary", bs.Invocation.Summary()))
	return nil
}

// stageBuild runs xcodebuild with its output streamed through the parser.
// The parser decides the verdict; the raw exit code is recorded beside it.
func (o *Orchestrator) stageBuild(ctx context.Context, bs *BuildState) error {
	parser := xcode.NewOutputParser(o.sink, xcode.WithTestReports(filepath.Join(bs.WorkDir, TestReportsDir)))
	cmd := o.command(bs, o.cfg.Tools.Xcodebuild, bs.Invocation.Args()...)
	cmd.Stdout = parser

	code, runErr := o.runner.Run(ctx, cmd)
	_ = parser.Close()
	bs.Tests = parser.TestSummary()
	if runErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.ToolError("xcodebuild could not be started").
			WithCause(fmt.Errorf("%w: %w", ErrBuildTool, runErr)).Build()
	}

	outcome := ClassifyOutcome(code, parser.ExitCode())
	bs.Outcome = &outcome
	slog.Info("Build completed",
		logfields.BuildID(bs.BuildID),
		logfields.Outcome(string(outcome.Classification)),
		logfields.ExitCode(outcome.RawExitCode),
		logfields.ParserExitCode(outcome.ParserExitCode),
		slog.Int("tests", bs.Tests.Tests),
		slog.Int("test_failures", bs.Tests.Failures))

	if outcome.Passed() {
		return nil
	}
	if bs.Request.AllowFailingResults {
		slog.Warn("Build did not pass; continuing because failing results are allowed",
			logfields.BuildID(bs.BuildID), logfields.Outcome(string(outcome.Classification)))
		return nil
	}
	return errs.BuildError("xcodebuild reported a failure").
		WithCause(fmt.Errorf("%w: %s", ErrBuildFailed, outcome.Classification)).
		WithContext("raw_exit_code", outcome.RawExitCode).
		WithContext("parser_exit_code", outcome.ParserExitCode).
		Build()
}
