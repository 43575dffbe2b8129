package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/workspace"
)

func (o *Orchestrator) command(bs *BuildState, tool string, args ...string) runner.Command {
	return runner.Command{Path: tool, Args: args, Dir: bs.WorkDir, Env: bs.Env.Env, Stdout: o.sink, Stderr: o.sink}
}

func (o *Orchestrator) stageVerifyTools(_ context.Context, _ *BuildState) error {
	for _, tool := range []string{o.cfg.Tools.Xcodebuild, o.cfg.Tools.Agvtool} {
		if _, err := os.Stat(tool); err != nil {
			return errs.WrapError(fmt.Errorf("%w: %s", ErrToolNotFound, tool), errs.CategoryConfig,
				"configured tool path does not exist").
				Fatal().UserAction().WithContext("tool", tool).Build()
		}
	}
	return nil
}

// ResolveBuildDirectory returns where xcodebuild puts the built products:
// CONFIGURATION_BUILD_DIR when set, else <SYMROOT>/<configuration>-<platform>,
// else <workDir>/build/<configuration>-<platform>. Relative values resolve
// against workDir.
func ResolveBuildDirectory(workDir, configuration, platform, symroot, configurationBuildDir string) string {
	if configuration == "" {
		configuration = config.DefaultConfiguration
	}
	switch {
	case configurationBuildDir != "":
		return workspace.Resolve(workDir, configurationBuildDir)
	case symroot != "":
		return filepath.Join(workspace.Resolve(workDir, symroot), configuration+"-"+platform)
	default:
		return filepath.Join(workDir, "build", configuration+"-"+platform)
	}
}

func (o *Orchestrator) stageResolveDirectories(_ context.Context, bs *BuildState) error {
	bs.symroot = bs.expandOptional("SYMROOT", bs.Request.Symroot)
	bs.configurationBuildDir = bs.expandOptional("CONFIGURATION_BUILD_DIR", bs.Request.ConfigurationBuildDir)
	bs.BuildDir = ResolveBuildDirectory(bs.WorkDir, bs.Request.Configuration, bs.Platform,
		bs.symroot, bs.configurationBuildDir)
	slog.Info("Build directory resolved",
		logfields.BuildID(bs.BuildID),
		logfields.Path(bs.BuildDir),
		logfields.Platform(bs.Platform))
	return nil
}

// expandOptional expands a setting strictly. On failure the setting is
// treated as absent.
func (bs *BuildState) expandOptional(name, template string) string {
	if template == "" {
		return ""
	}
	v, err := bs.expander.Expand(template)
	if err != nil {
		slog.Warn("Cannot expand setting; ignoring it",
			slog.String("setting", name), slog.String("value", template), logfields.Error(err))
		return ""
	}
	return v
}

func (o *Orchestrator) stageProbeTool(ctx context.Context, bs *BuildState) error {
	xcodebuild := o.cfg.Tools.Xcodebuild
	code, err := o.runner.Run(ctx, o.command(bs, xcodebuild, "-version"))
	if err == nil && code == 0 {
		return nil
	}
	cause := err
	if cause == nil {
		cause = fmt.Errorf("%s -version exited %d", xcodebuild, code)
	}
	return errs.WrapError(fmt.Errorf("%w: %w", ErrToolMissing, cause), errs.CategoryTool,
		"xcodebuild did not respond; check the Xcode installation").
		Fatal().UserAction().WithContext("tool", xcodebuild).Build()
}
