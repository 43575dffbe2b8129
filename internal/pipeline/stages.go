package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/metrics"
)

// Stage is a discrete unit of work in a build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageVerifyTools        StageName = "verify_tools"
	StageResolveDirectories StageName = "resolve_directories"
	StageProbeTool          StageName = "probe_tool"
	StageReadVersions       StageName = "read_versions"
	StageAttachMetadata     StageName = "attach_metadata"
	StageChangeBundleID     StageName = "change_bundle_id"
	StageProvideVersions    StageName = "provide_versions"
	StageClean              StageName = "clean"
	StageUnlockKeychain     StageName = "unlock_keychain"
	StageDiagnostics        StageName = "diagnostics"
	StageListTargets        StageName = "list_targets"
	StageResolveTargets     StageName = "resolve_targets"
	StageComposeCommand     StageName = "compose_command"
	StageBuild              StageName = "build"
	StagePreparePackaging   StageName = "prepare_packaging"
	StagePackage            StageName = "package"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError names the stage a fatal condition came from.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// errHalt stops the run without an error; the remaining stages are skipped.
var errHalt = errors.New("halt")

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Plan is a fluent builder for ordered stage definitions.
type Plan struct{ defs []StageDef }

// NewPlan creates an empty plan.
func NewPlan() *Plan { return &Plan{defs: make([]StageDef, 0, 16)} }

// Add appends a stage unconditionally.
func (p *Plan) Add(name StageName, fn Stage) *Plan {
	p.defs = append(p.defs, StageDef{Name: name, Fn: fn})
	return p
}

// AddIf appends a stage only if cond is true.
func (p *Plan) AddIf(cond bool, name StageName, fn Stage) *Plan {
	if cond {
		p.Add(name, fn)
	}
	return p
}

// Build returns a copy of the stage definitions.
func (p *Plan) Build() []StageDef {
	out := make([]StageDef, len(p.defs))
	copy(out, p.defs)
	return out
}

// RunStages executes stages in order, recording timing and results, and stops
// on the first error. A stage returning errHalt ends the run successfully.
func RunStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	rec := bs.recorder
	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			se := &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: err}
			bs.recordStage(st.Name, 0, metrics.ResultCanceled)
			markSkipped(bs, stages[i+1:])
			return se
		}

		slog.Debug("Stage started", logfields.BuildID(bs.BuildID), logfields.Stage(string(st.Name)))
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		rec.ObserveStageDuration(string(st.Name), dur)

		switch {
		case err == nil:
			bs.recordStage(st.Name, dur, metrics.ResultSuccess)
		case errors.Is(err, errHalt):
			bs.recordStage(st.Name, dur, metrics.ResultWarning)
			markSkipped(bs, stages[i+1:])
			slog.Info("Build halted; remaining stages skipped",
				logfields.BuildID(bs.BuildID), logfields.Stage(string(st.Name)))
			return nil
		case ctx.Err() != nil:
			bs.recordStage(st.Name, dur, metrics.ResultCanceled)
			markSkipped(bs, stages[i+1:])
			return &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: err}
		default:
			bs.recordStage(st.Name, dur, metrics.ResultFatal)
			markSkipped(bs, stages[i+1:])
			slog.Error("Stage failed",
				logfields.BuildID(bs.BuildID),
				logfields.Stage(string(st.Name)),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
			return &StageError{Kind: StageErrorFatal, Stage: st.Name, Err: err}
		}
		slog.Debug("Stage complete",
			logfields.BuildID(bs.BuildID),
			logfields.Stage(string(st.Name)),
			logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}

func markSkipped(bs *BuildState, rest []StageDef) {
	for _, st := range rest {
		bs.recordStage(st.Name, 0, metrics.ResultSkipped)
	}
}
