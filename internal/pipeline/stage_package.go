package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/packaging"
	"git.home.luguber.info/inful/xcodebuilder/internal/workspace"
)

func (o *Orchestrator) stagePreparePackaging(_ context.Context, bs *BuildState) error {
	if !workspace.IsDir(bs.BuildDir) {
		return errs.BuildError("nothing to package").
			WithCause(fmt.Errorf("%w: %s", ErrMissingBuildDir, bs.BuildDir)).WithContext("path", bs.BuildDir).Build()
	}

	bs.outputDir = bs.BuildDir
	if dir := bs.Request.OutputDirectory; dir != "" {
		bs.outputDir = workspace.Resolve(bs.Env.Workspace, dir)
		if err := workspace.EnsureDir(bs.outputDir); err != nil {
			return errs.FileSystemError("artifact output directory unavailable").
				WithCause(fmt.Errorf("%w: %w", ErrOutputDir, err)).Build()
		}
	}

	apps, err := packaging.DiscoverApplications(bs.BuildDir)
	if err != nil {
		return errs.PackagingError("no applications to package").
			WithCause(err).WithContext("path", bs.BuildDir).Build()
	}
	bs.apps = apps
	slog.Info("Applications found", logfields.BuildID(bs.BuildID), slog.Int("count", len(apps)))
	return nil
}

func (o *Orchestrator) stagePackage(ctx context.Context, bs *BuildState) error {
	req := bs.Request
	p := packaging.Packager{
		Runner: o.runner,
		Plist:  o.plist(bs),
		Opts: packaging.Options{
			Xcrun:               o.cfg.Tools.Xcrun,
			Ditto:               o.cfg.Tools.Ditto,
			SDK:                 req.SDK,
			Platform:            bs.Platform,
			EmbeddedProfile:     req.EmbeddedProfile,
			CodeSigningIdentity: req.CodeSigningIdentity,
			SignAtPackaging:     req.SignAtPackaging,
			NamePattern:         req.NamePattern,
			ManifestURL:         req.ManifestURL,
			BuildDir:            bs.BuildDir,
			OutputDir:           bs.outputDir,
			WorkDir:             bs.WorkDir,
			Env:                 bs.Env.Env,
			Output:              o.sink,
		},
	}
	for _, app := range bs.apps {
		art, err := p.Package(ctx, app)
		if err != nil {
			return errs.PackagingError("packaging failed").
				WithCause(err).WithContext("application", app.Name).Build()
		}
		bs.Artifacts = append(bs.Artifacts, art)
		slog.Info("Artifact created", logfields.BuildID(bs.BuildID), logfields.Artifact(art.Path))
	}
	return nil
}
