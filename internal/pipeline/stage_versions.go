package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/versioning"
)

func (o *Orchestrator) agvtool(bs *BuildState) versioning.Tool {
	return versioning.Tool{
		Runner: o.runner,
		Path:   o.cfg.Tools.Agvtool,
		Dir:    bs.WorkDir,
		Env:    bs.Env.Env,
		Output: o.sink,
	}
}

func (o *Orchestrator) plist(bs *BuildState) versioning.Plist {
	return versioning.Plist{
		Runner: o.runner,
		Path:   o.cfg.Tools.PlistBuddy,
		Dir:    bs.WorkDir,
		Env:    bs.Env.Env,
		Output: o.sink,
	}
}

func (o *Orchestrator) stageReadVersions(ctx context.Context, bs *BuildState) error {
	bs.Version = o.agvtool(bs).Read(ctx)
	return nil
}

func (o *Orchestrator) stageAttachMetadata(_ context.Context, bs *BuildState) error {
	bs.Metadata = &BuildMetadata{Version: bs.Version}
	slog.Info("Build metadata attached",
		logfields.BuildID(bs.BuildID),
		logfields.ShortVersion(bs.Version.MarketingVersion),
		logfields.Version(bs.Version.BuildNumber))
	return nil
}

func (o *Orchestrator) stageChangeBundleID(ctx context.Context, bs *BuildState) error {
	req := bs.Request
	slog.Info("Changing bundle identifier",
		slog.String("bundle_id", req.BundleID), logfields.Path(req.BundleIDInfoPlistPath))
	err := o.plist(bs).Set(ctx, req.BundleIDInfoPlistPath, versioning.KeyBundleIdentifier, req.BundleID)
	if err != nil {
		return errs.WrapError(fmt.Errorf("%w: %w", ErrBundleID, err), errs.CategoryTool,
			"bundle identifier not updated").Fatal().WithContext("plist", req.BundleIDInfoPlistPath).Build()
	}
	return nil
}

// stageProvideVersions writes the configured version templates into the
// project. A template that cannot be expanded keeps the value read earlier.
func (o *Orchestrator) stageProvideVersions(ctx context.Context, bs *BuildState) error {
	tool := o.agvtool(bs)
	req := bs.Request

	if req.MarketingVersion != "" {
		v := bs.expandVersion("marketing_version", req.MarketingVersion, bs.Version.MarketingVersion)
		slog.Info("Setting marketing version", logfields.ShortVersion(v))
		if err := tool.SetMarketingVersion(ctx, v); err != nil {
			return errs.WrapError(err, errs.CategoryTool, "marketing version not updated").
				Fatal().WithContext("version", v).Build()
		}
		bs.Version.MarketingVersion = v
	}

	if req.BuildNumber != "" {
		v := bs.expandVersion("build_number", req.BuildNumber, bs.Version.BuildNumber)
		slog.Info("Setting build number", logfields.Version(v))
		if err := tool.SetBuildNumber(ctx, v); err != nil {
			return errs.WrapError(err, errs.CategoryTool, "build number not updated").
				Fatal().WithContext("version", v).Build()
		}
		bs.Version.BuildNumber = v
	}

	bs.Metadata = &BuildMetadata{Version: bs.Version}
	slog.Info("Using application versions",
		logfields.ShortVersion(bs.Version.MarketingVersion),
		logfields.Version(bs.Version.BuildNumber))
	return nil
}

func (bs *BuildState) expandVersion(name, template, fallback string) string {
	v, err := bs.expander.Expand(template)
	if err != nil {
		slog.Warn("Cannot expand version template; keeping current value",
			slog.String("setting", name), slog.String("template", template),
			slog.String("current", fallback), logfields.Error(err))
		return fallback
	}
	return v
}
