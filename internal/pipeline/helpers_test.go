package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner/runnertest"
)

const (
	plistBuddy = "/usr/libexec/PlistBuddy"
	security   = "/usr/bin/security"
	xcrun      = "/usr/bin/xcrun"
	ditto      = "/usr/bin/ditto"

	projectListing = `Information about project "MyApp":
    Targets:
        MyApp
        MyAppTests
        MyAppUITests

    Build Configurations:
        Debug
        Release

    Schemes:
        MyApp
`
	buildSucceeded = "CompileSwift normal arm64\n** BUILD SUCCEEDED **\n"
	buildFailed    = "error: something broke\n** BUILD FAILED **\n"
)

type fixture struct {
	cfg        *config.Config
	fake       *runnertest.Fake
	workspace  string
	xcodebuild string
	agvtool    string
}

// newFixture returns a configuration whose xcodebuild and agvtool exist on
// disk, and a fake runner scripted for a healthy project.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	tools := t.TempDir()
	f := &fixture{
		fake:       runnertest.New(),
		workspace:  t.TempDir(),
		xcodebuild: filepath.Join(tools, "xcodebuild"),
		agvtool:    filepath.Join(tools, "agvtool"),
	}
	for _, p := range []string{f.xcodebuild, f.agvtool} {
		require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	}

	cfg, err := config.Parse([]byte("version: \"1\"\n"))
	require.NoError(t, err)
	cfg.Tools.Xcodebuild = f.xcodebuild
	cfg.Tools.Agvtool = f.agvtool
	cfg.Tools.PlistBuddy = plistBuddy
	cfg.Tools.Security = security
	cfg.Tools.Xcrun = xcrun
	cfg.Tools.Ditto = ditto
	cfg.Job.Scheme = "MyApp"
	cfg.Job.SDK = "iphoneos"
	f.cfg = cfg

	f.fake.
		On(f.agvtool+" mvers -terse1", runnertest.Response{Stdout: "2.1\n"}).
		On(f.agvtool+" vers -terse", runnertest.Response{Stdout: "40\n"}).
		On(f.xcodebuild+" -list", runnertest.Response{Stdout: projectListing}).
		On(f.xcodebuild+" -scheme", runnertest.Response{Stdout: buildSucceeded}).
		On(f.xcodebuild+" -target", runnertest.Response{Stdout: buildSucceeded}).
		On(f.xcodebuild+" -alltargets", runnertest.Response{Stdout: buildSucceeded})
	return f
}

func (f *fixture) buildDir() string {
	return filepath.Join(f.workspace, "build", "Release-iphoneos")
}

// withApp makes every build invocation produce MyApp.app in the build directory.
func (f *fixture) withApp(t *testing.T, stdout string) {
	t.Helper()
	hook := func(runner.Command) {
		require.NoError(t, os.MkdirAll(filepath.Join(f.buildDir(), "MyApp.app"), 0o755))
	}
	f.fake.On(f.xcodebuild+" -scheme", runnertest.Response{Stdout: stdout, Hook: hook})
}

func (f *fixture) withAppVersions(build, short string) {
	f.fake.
		On(plistBuddy+" -c Print :CFBundleVersion", runnertest.Response{Stdout: build + "\n"}).
		On(plistBuddy+" -c Print :CFBundleShortVersionString", runnertest.Response{Stdout: short + "\n"})
}

func (f *fixture) env() Environment {
	return Environment{Workspace: f.workspace, Env: []string{"HOME=/Users/ci", "BUILD_NUMBER=77"}}
}

// buildCalls returns the xcodebuild invocations other than probes and listings.
func (f *fixture) buildCalls() []runnertest.Call {
	var out []runnertest.Call
	for _, c := range f.fake.Calls() {
		if c.Command.Path != f.xcodebuild || len(c.Command.Args) == 0 {
			continue
		}
		switch c.Command.Args[0] {
		case "-version", "-list", "-showsdks":
			continue
		}
		out = append(out, c)
	}
	return out
}
