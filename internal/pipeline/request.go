package pipeline

import (
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/expand"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

// Environment is what the host provides for one run.
type Environment struct {
	// Workspace is the directory the job's relative paths resolve against.
	Workspace string
	// Env is passed to every subprocess as KEY=VALUE pairs. Nil inherits the
	// process environment.
	Env []string
}

// Request is a job with its placeholders resolved for one run.
//
// Most string fields are expanded leniently when the run starts. Symroot,
// ConfigurationBuildDir, ExtraArguments, MarketingVersion, BuildNumber and the
// keychain credentials stay raw and are expanded by the stage that uses them,
// after versions are known.
type Request struct {
	ProjectPath   string
	ProjectFile   string
	WorkspaceFile string

	Scheme      string
	Target      string
	TargetRegex bool

	SDK                   string
	Configuration         string
	Symroot               string
	ConfigurationBuildDir string
	CodeSigningIdentity   string
	ExtraArguments        string

	CleanBeforeBuild    bool
	CleanTestReports    bool
	GenerateArchive     bool
	AllowFailingResults bool

	UnlockKeychain   bool
	KeychainName     string
	KeychainPath     string
	KeychainPassword string

	ProvideVersion   config.Toggle
	MarketingVersion string
	BuildNumber      string

	ChangeBundleID        bool
	BundleID              string
	BundleIDInfoPlistPath string

	Package         bool
	NamePattern     string
	OutputDirectory string
	EmbeddedProfile string
	SignAtPackaging bool
	ManifestURL     string

	ListTimeout time.Duration
}

// NewRequest resolves job against e.
func NewRequest(job config.Job, e expand.Expander) Request {
	lenient := func(s string) string {
		if s == "" || e == nil {
			return s
		}
		return expand.Lenient(e, s)
	}
	return Request{
		ProjectPath:   lenient(job.ProjectPath),
		ProjectFile:   lenient(job.ProjectFile),
		WorkspaceFile: lenient(job.WorkspaceFile),

		Scheme:      lenient(job.Scheme),
		Target:      lenient(job.Target),
		TargetRegex: job.InterpretTargetAsRegex,

		SDK:                   lenient(job.SDK),
		Configuration:         lenient(job.Configuration),
		Symroot:               job.Symroot,
		ConfigurationBuildDir: job.ConfigurationBuildDir,
		CodeSigningIdentity:   lenient(job.CodeSigningIdentity),
		ExtraArguments:        job.XcodebuildArguments,

		CleanBeforeBuild:    job.CleanBeforeBuild,
		CleanTestReports:    job.CleanTestReports,
		GenerateArchive:     job.GenerateArchive,
		AllowFailingResults: job.AllowFailingBuildResults,

		UnlockKeychain:   job.UnlockKeychain,
		KeychainName:     lenient(job.KeychainName),
		KeychainPath:     job.KeychainPath,
		KeychainPassword: job.KeychainPassword,

		ProvideVersion:   job.ProvideApplicationVersion,
		MarketingVersion: job.MarketingVersion,
		BuildNumber:      job.BuildNumber,

		ChangeBundleID:        job.ChangeBundleID,
		BundleID:              lenient(job.BundleID),
		BundleIDInfoPlistPath: lenient(job.BundleIDInfoPlistPath),

		Package:         job.Packaging.Enabled,
		NamePattern:     job.Packaging.NamePattern,
		OutputDirectory: lenient(job.Packaging.OutputDirectory),
		EmbeddedProfile: lenient(job.Packaging.EmbeddedProfile),
		SignAtPackaging: job.Packaging.SignAtPackaging,
		ManifestURL:     lenient(job.Packaging.ManifestURL),

		ListTimeout: job.ListTimeout,
	}
}

// SelectionInput returns the target selection settings.
func (r Request) SelectionInput() xcode.SelectionInput {
	return xcode.SelectionInput{
		Scheme:      r.Scheme,
		Target:      r.Target,
		TargetRegex: r.TargetRegex,
		ProjectFile: r.ProjectFile,
	}
}

// Selection reports the selection mode that applies before targets are listed.
func (r Request) Selection() xcode.SelectionMode {
	return r.SelectionInput().Mode()
}

// provideVersion resolves the tri-state toggle, treating Unset like a
// migrated legacy job.
func (r Request) provideVersion() bool {
	return config.ResolveProvideVersion(r.ProvideVersion, r.MarketingVersion, r.BuildNumber).Enabled()
}
