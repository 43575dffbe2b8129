package pipeline

import (
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/expand"
	"git.home.luguber.info/inful/xcodebuilder/internal/git"
	"git.home.luguber.info/inful/xcodebuilder/internal/metrics"
	"git.home.luguber.info/inful/xcodebuilder/internal/packaging"
	"git.home.luguber.info/inful/xcodebuilder/internal/versioning"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

// BuildMetadata is the version token attached to a build once versions are read.
type BuildMetadata struct {
	Version versioning.Info
}

// Description renders "<marketing> (<build>)".
func (m BuildMetadata) Description() string {
	return m.Version.Description()
}

// Result summarizes one run. Fields are filled in as stages complete, so a
// failed run carries everything up to the failing stage.
type Result struct {
	BuildID    string
	StartedAt  time.Time
	FinishedAt time.Time

	Request Request
	Source  git.Head

	// WorkDir is Workspace/ProjectPath; BuildDir holds the built products.
	WorkDir  string
	BuildDir string
	Platform string

	Version  versioning.Info
	Metadata *BuildMetadata

	Targets    xcode.TargetSet
	Selection  xcode.Selection
	Invocation *xcode.BuildInvocation
	Outcome    *BuildOutcome
	Tests      xcode.TestSummary

	Artifacts []packaging.Artifact

	// Aborted is set when the run stopped early without an error.
	Aborted bool

	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]metrics.ResultLabel
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is a one-word summary used for metrics, history and events.
func (r *Result) Status(err error) string {
	switch {
	case err != nil:
		return "ERROR"
	case r.Aborted:
		return "ABORTED"
	case r.Outcome != nil:
		return string(r.Outcome.Classification)
	default:
		return "UNKNOWN"
	}
}

// BuildState carries data between stages.
type BuildState struct {
	*Result

	Env      Environment
	expander expand.Expander
	recorder metrics.Recorder

	// Expanded SYMROOT and CONFIGURATION_BUILD_DIR; empty when unset or unresolvable.
	symroot               string
	configurationBuildDir string

	// apps are the bundles found by prepare_packaging.
	apps      []packaging.Application
	outputDir string
}

func (bs *BuildState) recordStage(name StageName, d time.Duration, result metrics.ResultLabel) {
	bs.StageDurations[name] = d
	bs.StageResults[name] = result
	bs.recorder.IncStageResult(string(name), result)
}

// buildNumberMacro backs XCODE_BUILD_NUMBER; empty until metadata is attached.
func (bs *BuildState) buildNumberMacro() string {
	if bs.Metadata == nil {
		return ""
	}
	return bs.Metadata.Description()
}
