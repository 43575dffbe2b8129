package packaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/versioning"
	"git.home.luguber.info/inful/xcodebuilder/internal/workspace"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

// Packaging failures.
var (
	ErrNoVersion      = errors.New("must provide either a marketing or a technical version")
	ErrScratch        = errors.New("failed to prepare the Payload directory")
	ErrPackageFailed  = errors.New("failed to package the application")
	ErrSymbolsArchive = errors.New("failed to archive debug symbols")
	ErrManifestWrite  = errors.New("failed to write the install manifest")
)

// PayloadDir is the scratch directory PackageApplication expects beside the output.
const PayloadDir = "Payload"

// Options configures a Packager.
type Options struct {
	Xcrun string
	Ditto string

	SDK                 string
	Platform            string
	EmbeddedProfile     string
	CodeSigningIdentity string
	SignAtPackaging     bool
	NamePattern         string
	ManifestURL         string

	// BuildDir holds the .app bundles; OutputDir receives the artifacts.
	BuildDir  string
	OutputDir string
	WorkDir   string
	Env       []string
	Output    io.Writer
}

// BuiltApplication is an application bundle with the metadata read from its Info.plist.
type BuiltApplication struct {
	Application
	Version     versioning.Info
	BundleID    string
	DisplayName string
}

// Artifact is the result of packaging one application.
type Artifact struct {
	Application  BuiltApplication
	BaseName     string
	Path         string
	SymbolsPath  string
	ManifestPath string
}

// Packager runs the packaging protocol for one application at a time.
type Packager struct {
	Runner runner.Runner
	Plist  versioning.Plist
	Opts   Options
}

// Package creates <base>.ipa, optionally <base>-dSYM.zip and <base>.plist in
// the output directory. The Payload scratch directory is removed on return.
func (p Packager) Package(ctx context.Context, app Application) (Artifact, error) {
	built := BuiltApplication{
		Application: app,
		Version:     p.Plist.ApplicationVersions(ctx, app.Path),
	}
	if built.Version.Empty() {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNoVersion, app.Name)
	}

	base := versioning.ArtifactBaseName(versioning.NameVars{
		BaseName:  versioning.BundleBaseName(app.Path),
		Version:   built.Version,
		BuildDate: app.ModTime,
	}, p.Opts.NamePattern)
	art := Artifact{
		Application: built,
		BaseName:    base,
		Path:        filepath.Join(p.Opts.OutputDir, base+".ipa"),
	}

	scratch := workspace.NewScratch(p.Opts.OutputDir, PayloadDir)
	if err := scratch.Reset(); err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrScratch, err)
	}
	defer func() {
		if err := scratch.Cleanup(); err != nil {
			slog.Warn("Payload cleanup failed", logfields.Path(scratch.Path()), logfields.Error(err))
		}
	}()

	slog.Info("Packaging application", logfields.Path(app.Path), logfields.Artifact(art.Path))
	if p.Opts.Platform == xcode.PlatformSimulator {
		slog.Warn("Packaging an IPA for a simulator SDK; it will not install on devices", logfields.SDK(p.Opts.SDK))
	}
	if err := p.run(ctx, ErrPackageFailed, p.Opts.WorkDir, p.Opts.Xcrun, p.packageArgs(app.Path, art.Path)...); err != nil {
		return Artifact{}, err
	}

	if symbols := app.Path + ".dSYM"; workspace.IsDir(symbols) {
		art.SymbolsPath = filepath.Join(p.Opts.OutputDir, base+"-dSYM.zip")
		if err := p.run(ctx, ErrSymbolsArchive, p.Opts.BuildDir, p.Opts.Ditto,
			"-c", "-k", "--keepParent", "-rsrc", symbols, art.SymbolsPath); err != nil {
			return Artifact{}, err
		}
	}

	if p.Opts.ManifestURL != "" {
		info := app.Path + "/Info.plist"
		built.BundleID = p.Plist.Get(ctx, info, versioning.KeyBundleIdentifier)
		built.DisplayName = p.Plist.Get(ctx, info, versioning.KeyBundleDisplayName)
		art.Application = built

		art.ManifestPath = filepath.Join(p.Opts.OutputDir, base+".plist")
		manifest := Manifest{
			URLBase:       p.Opts.ManifestURL,
			IPAName:       base + ".ipa",
			BundleID:      built.BundleID,
			BundleVersion: built.Version.MarketingVersion,
			AppName:       built.DisplayName,
		}
		slog.Info("Writing install manifest", logfields.Artifact(art.ManifestPath))
		if err := os.WriteFile(art.ManifestPath, []byte(manifest.Render()), 0o644); err != nil {
			return Artifact{}, fmt.Errorf("%w: %w", ErrManifestWrite, err)
		}
	}
	return art, nil
}

func (p Packager) packageArgs(appPath, ipaPath string) []string {
	sdk := p.Opts.SDK
	if sdk == "" {
		sdk = p.Opts.Platform
	}
	args := []string{"-sdk", sdk, "PackageApplication", "-v", appPath, "-o", ipaPath}
	if p.Opts.EmbeddedProfile != "" {
		args = append(args, "--embed", p.Opts.EmbeddedProfile)
	}
	if p.Opts.CodeSigningIdentity != "" && p.Opts.SignAtPackaging {
		args = append(args, "--sign", p.Opts.CodeSigningIdentity)
	}
	return args
}

func (p Packager) run(ctx context.Context, sentinel error, dir, tool string, args ...string) error {
	cmd := runner.Command{Path: tool, Args: args, Dir: dir, Env: p.Opts.Env, Stdout: p.Opts.Output}
	code, err := p.Runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited %d", sentinel, filepath.Base(tool), code)
	}
	return nil
}
