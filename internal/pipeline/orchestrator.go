package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/events"
	"git.home.luguber.info/inful/xcodebuilder/internal/expand"
	"git.home.luguber.info/inful/xcodebuilder/internal/git"
	"git.home.luguber.info/inful/xcodebuilder/internal/history"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/metrics"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

// MacroBuildNumber is the placeholder holding "<marketing> (<build>)" once
// versions are known.
const MacroBuildNumber = "XCODE_BUILD_NUMBER"

// Orchestrator runs the build pipeline for a configuration.
type Orchestrator struct {
	cfg       *config.Config
	runner    runner.Runner
	expander  func(env Environment, macro expand.MacroFunc) expand.Expander
	recorder  metrics.Recorder
	history   history.Store
	publisher events.Publisher
	sink      io.Writer
	now       func() time.Time
	newID     func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExpander replaces the placeholder resolver. The factory receives the
// run's environment and the XCODE_BUILD_NUMBER macro.
func WithExpander(factory func(env Environment, macro expand.MacroFunc) expand.Expander) Option {
	return func(o *Orchestrator) { o.expander = factory }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithHistory records every run in s.
func WithHistory(s history.Store) Option {
	return func(o *Orchestrator) { o.history = s }
}

// WithPublisher announces every finished run on p.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLogSink receives subprocess output.
func WithLogSink(w io.Writer) Option {
	return func(o *Orchestrator) {
		if w != nil {
			o.sink = w
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. cfg must already be validated.
func New(cfg *config.Config, r runner.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		runner:    r,
		expander:  defaultExpander,
		recorder:  metrics.NoopRecorder{},
		publisher: events.NoopPublisher{},
		sink:      io.Discard,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultExpander(env Environment, macro expand.MacroFunc) expand.Expander {
	vars := expand.FromProcess()
	if env.Env != nil {
		vars = expand.FromEnviron(env.Env)
	}
	return vars.WithMacro(MacroBuildNumber, macro)
}

// Run executes the pipeline. The returned Result is never nil; it describes
// how far the run got even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, env Environment) (*Result, error) {
	res := &Result{
		BuildID:        o.newID(),
		StartedAt:      o.now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]metrics.ResultLabel),
	}
	bs := &BuildState{Result: res, Env: env, recorder: o.recorder}
	bs.expander = o.expander(env, bs.buildNumberMacro)

	res.Request = NewRequest(o.cfg.Job, bs.expander)
	res.WorkDir = workDir(env.Workspace, res.Request.ProjectPath)
	res.Platform = xcode.PlatformForSDK(res.Request.SDK)

	if head, err := git.ReadHead(res.WorkDir); err != nil {
		slog.Debug("Source revision unavailable", logfields.Path(res.WorkDir), logfields.Error(err))
	} else {
		res.Source = head
	}

	slog.Info("Build started",
		logfields.BuildID(res.BuildID),
		logfields.Path(res.WorkDir),
		logfields.Commit(res.Source.Short()))

	err := RunStages(ctx, bs, o.plan(res.Request))
	res.FinishedAt = o.now()
	o.finish(ctx, res, err)
	return res, err
}

func (o *Orchestrator) plan(req Request) []StageDef {
	return NewPlan().
		Add(StageVerifyTools, o.stageVerifyTools).
		Add(StageResolveDirectories, o.stageResolveDirectories).
		Add(StageProbeTool, o.stageProbeTool).
		Add(StageReadVersions, o.stageReadVersions).
		Add(StageAttachMetadata, o.stageAttachMetadata).
		AddIf(req.ChangeBundleID, StageChangeBundleID, o.stageChangeBundleID).
		AddIf(req.provideVersion(), StageProvideVersions, o.stageProvideVersions).
		AddIf(req.CleanBeforeBuild || req.CleanTestReports, StageClean, o.stageClean).
		AddIf(req.UnlockKeychain, StageUnlockKeychain, o.stageUnlockKeychain).
		Add(StageDiagnostics, o.stageDiagnostics).
		Add(StageListTargets, o.stageListTargets).
		Add(StageResolveTargets, o.stageResolveTargets).
		Add(StageComposeCommand, o.stageComposeCommand).
		Add(StageBuild, o.stageBuild).
		AddIf(req.Package, StagePreparePackaging, o.stagePreparePackaging).
		AddIf(req.Package, StagePackage, o.stagePackage).
		Build()
}

func workDir(workspace, projectPath string) string {
	if projectPath == "" {
		return workspace
	}
	if filepath.IsAbs(projectPath) {
		return projectPath
	}
	return filepath.Join(workspace, projectPath)
}
