package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/history"
	"git.home.luguber.info/inful/xcodebuilder/internal/packaging"
	"git.home.luguber.info/inful/xcodebuilder/internal/pipeline"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner/runnertest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xcodebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseLogLevel(t *testing.T) {
	t.Run("verbose wins", func(t *testing.T) {
		t.Setenv("XCODEBUILDER_LOG_LEVEL", "error")
		assert.Equal(t, slog.LevelDebug, parseLogLevel(true))
	})
	t.Run("env level", func(t *testing.T) {
		t.Setenv("XCODEBUILDER_LOG_LEVEL", "WARNING")
		assert.Equal(t, slog.LevelWarn, parseLogLevel(false))
	})
	t.Run("unknown falls back to info", func(t *testing.T) {
		t.Setenv("XCODEBUILDER_LOG_LEVEL", "chatty")
		assert.Equal(t, slog.LevelInfo, parseLogLevel(false))
	})
}

func TestBuildCmd_ApplyOverrides(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{Job: config.Job{
			Target:                 "^App.*",
			InterpretTargetAsRegex: true,
			SDK:                    "iphoneos",
			Configuration:          "Release",
		}}
	}

	t.Run("target replaces regex selection", func(t *testing.T) {
		cfg := base()
		(&BuildCmd{Target: "Widget", Configuration: "Debug"}).applyOverrides(cfg)
		assert.Equal(t, "Widget", cfg.Job.Target)
		assert.False(t, cfg.Job.InterpretTargetAsRegex)
		assert.Equal(t, "Debug", cfg.Job.Configuration)
		assert.Equal(t, "iphoneos", cfg.Job.SDK)
	})

	t.Run("scheme", func(t *testing.T) {
		cfg := base()
		(&BuildCmd{Scheme: "MyApp", SDK: "iphonesimulator"}).applyOverrides(cfg)
		assert.Equal(t, "MyApp", cfg.Job.Scheme)
		assert.Equal(t, "iphonesimulator", cfg.Job.SDK)
	})

	t.Run("nothing given", func(t *testing.T) {
		cfg := base()
		(&BuildCmd{}).applyOverrides(cfg)
		assert.Equal(t, base(), cfg)
	})
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	res := &pipeline.Result{
		BuildID:    "b-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Outcome:    &pipeline.BuildOutcome{Classification: pipeline.Succeeded},
		Artifacts: []packaging.Artifact{{
			Path:        "/out/MyApp-2.1-40.ipa",
			SymbolsPath: "/out/MyApp-2.1-40-dSYM.zip",
		}},
	}

	var buf bytes.Buffer
	printSummary(&buf, res, nil)
	out := buf.String()
	assert.Contains(t, out, "Build b-1: SUCCEEDED in 1m30s")
	assert.Contains(t, out, "Artifact: /out/MyApp-2.1-40.ipa")
	assert.Contains(t, out, "Symbols:  /out/MyApp-2.1-40-dSYM.zip")
	assert.NotContains(t, out, "Manifest:")

	buf.Reset()
	printSummary(&buf, res, errors.New("boom"))
	assert.Contains(t, buf.String(), "Build b-1: ERROR")

	buf.Reset()
	printSummary(&buf, nil, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcodebuilder.yaml")
	var out bytes.Buffer
	g := &Global{Out: &out}

	require.NoError(t, (&InitCmd{}).Run(g, &CLI{Config: path}))
	assert.Contains(t, out.String(), "initialized successfully")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "MyApp", cfg.Job.Scheme)

	require.Error(t, (&InitCmd{}).Run(g, &CLI{Config: path}), "refuses to overwrite")
	require.NoError(t, (&InitCmd{Force: true}).Run(g, &CLI{Config: path}))
}

func TestHistoryCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"b-1", "b-2", "b-3"} {
		require.NoError(t, store.Record(t.Context(), history.Record{
			BuildID:      id,
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
			FinishedAt:   base.Add(time.Duration(i)*time.Hour + time.Minute),
			Outcome:      "SUCCEEDED",
			Version:      "40",
			ShortVersion: "2.1",
			Commit:       "0123456789abcdef0123",
		}))
	}
	require.NoError(t, store.Close())

	cfgPath := writeConfig(t, "version: \"1\"\nhistory:\n  path: "+dbPath+"\n")

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, (&HistoryCmd{Limit: 2}).Run(&Global{Out: &out}, &CLI{Config: cfgPath}))
		s := out.String()
		assert.Contains(t, s, "BUILD")
		assert.Contains(t, s, "b-3")
		assert.Contains(t, s, "b-2")
		assert.NotContains(t, s, "b-1")
		assert.Contains(t, s, "2.1 (40)")
		assert.Contains(t, s, "0123456789ab")
		assert.NotContains(t, s, "0123456789abc")
	})

	t.Run("json single build", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, (&HistoryCmd{JSON: true, ID: "b-1"}).Run(&Global{Out: &out}, &CLI{Config: cfgPath}))
		var entries []historyEntry
		require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "b-1", entries[0].BuildID)
		assert.Equal(t, int64(60000), entries[0].DurationMS)
	})

	t.Run("unknown build", func(t *testing.T) {
		err := (&HistoryCmd{ID: "nope"}).Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfgPath})
		require.Error(t, err)
		assert.True(t, errs.HasCategory(err, errs.CategoryNotFound))
	})

	t.Run("not configured", func(t *testing.T) {
		err := (&HistoryCmd{}).Run(&Global{}, &CLI{Config: writeConfig(t, "version: \"1\"\n")})
		require.Error(t, err)
		assert.True(t, errs.HasCategory(err, errs.CategoryConfig))
	})
}

func TestScheduleCmd_RequiresCron(t *testing.T) {
	err := (&ScheduleCmd{}).Run(&Global{}, &CLI{Config: writeConfig(t, "version: \"1\"\n")})
	require.Error(t, err)
	assert.True(t, errs.HasCategory(err, errs.CategoryConfig))
}

func TestKeychainUnlockCmd_NothingToUnlock(t *testing.T) {
	err := (&KeychainUnlockCmd{}).Run(&Global{}, &CLI{Config: writeConfig(t, "version: \"1\"\n")})
	require.Error(t, err)
	assert.True(t, errs.HasCategory(err, errs.CategoryConfig))
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errs.HasCategory(err, errs.CategoryConfig))
}

const listOutput = `Information about project "MyApp":
    Targets:
        MyApp
        MyAppTests

    Build Configurations:
        Debug
        Release

    Schemes:
        MyApp
`

func TestListProject(t *testing.T) {
	cfg, err := config.Parse([]byte("version: \"1\"\njob:\n  project_path: ios\n  project_file: MyApp.xcodeproj\n"))
	require.NoError(t, err)

	t.Run("parses listing", func(t *testing.T) {
		fake := runnertest.New().On(cfg.Tools.Xcodebuild, runnertest.Response{Stdout: listOutput})
		listing, err := listProject(t.Context(), fake, cfg, "/work")
		require.NoError(t, err)
		assert.Equal(t, []string{"MyApp", "MyAppTests"}, []string(listing.Targets))
		assert.Equal(t, []string{"Debug", "Release"}, listing.Configurations)
		assert.Equal(t, []string{"MyApp"}, listing.Schemes)

		calls := fake.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "/work/ios", calls[0].Command.Dir)
		assert.Equal(t, []string{"-list", "-project", "MyApp.xcodeproj"}, calls[0].Command.Args)
		assert.Equal(t, config.DefaultListTimeout, calls[0].Timeout)

		var out bytes.Buffer
		printListing(&Global{Out: &out}, listing)
		assert.Contains(t, out.String(), "Build Configurations:\n  Debug\n  Release\n")
	})

	t.Run("timeout", func(t *testing.T) {
		fake := runnertest.New().On(cfg.Tools.Xcodebuild, runnertest.Response{Code: runner.ExitTimedOut})
		_, err := listProject(t.Context(), fake, cfg, "/work")
		require.Error(t, err)
		assert.True(t, errs.HasCategory(err, errs.CategoryTool))
	})

	t.Run("failure", func(t *testing.T) {
		fake := runnertest.New().On(cfg.Tools.Xcodebuild, runnertest.Response{Code: 66, Stdout: "xcodebuild: error"})
		_, err := listProject(t.Context(), fake, cfg, "/work")
		require.Error(t, err)
		ce, ok := errs.AsClassified(err)
		require.True(t, ok)
		out, _ := ce.Context().GetString("output")
		assert.Equal(t, "xcodebuild: error", out)
	})
}
