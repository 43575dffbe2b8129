package packaging

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner/runnertest"
	"git.home.luguber.info/inful/xcodebuilder/internal/versioning"
	"git.home.luguber.info/inful/xcodebuilder/internal/workspace"
	"git.home.luguber.info/inful/xcodebuilder/internal/xcode"
)

const (
	plistBuddy = "/usr/libexec/PlistBuddy"
	xcrun      = "/usr/bin/xcrun"
	ditto      = "/usr/bin/ditto"
)

func makeApp(t *testing.T, dir, name string, withSymbols bool) Application {
	t.Helper()
	path := filepath.Join(dir, name+".app")
	require.NoError(t, os.MkdirAll(path, 0o755))
	if withSymbols {
		require.NoError(t, os.MkdirAll(path+".dSYM", 0o755))
	}
	return Application{Path: path, Name: name, ModTime: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func scriptVersions(fake *runnertest.Fake, build, short string) *runnertest.Fake {
	return fake.
		On(plistBuddy+" -c Print :CFBundleVersion", runnertest.Response{Stdout: build + "\n"}).
		On(plistBuddy+" -c Print :CFBundleShortVersionString", runnertest.Response{Stdout: short + "\n"}).
		On(plistBuddy+" -c Print :CFBundleIdentifier", runnertest.Response{Stdout: "com.example.myapp\n"}).
		On(plistBuddy+" -c Print :CFBundleDisplayName", runnertest.Response{Stdout: "My App & Co\n"})
}

func newPackager(fake *runnertest.Fake, buildDir, outDir string) Packager {
	return Packager{
		Runner: fake,
		Plist:  versioning.Plist{Runner: fake, Path: plistBuddy},
		Opts: Options{
			Xcrun:     xcrun,
			Ditto:     ditto,
			Platform:  xcode.PlatformDevice,
			BuildDir:  buildDir,
			OutputDir: outDir,
		},
	}
}

func TestPackage_FullProtocol(t *testing.T) {
	buildDir := t.TempDir()
	outDir := t.TempDir()
	app := makeApp(t, buildDir, "My App", true)

	var payloadSeen bool
	fake := scriptVersions(runnertest.New(), "40", "2.1").
		On(xcrun, runnertest.Response{Hook: func(runner.Command) {
			payloadSeen = workspace.IsDir(filepath.Join(outDir, PayloadDir))
		}})
	p := newPackager(fake, buildDir, outDir)
	p.Opts.SDK = "iphoneos17.2"
	p.Opts.ManifestURL = "https://downloads.example.com/apps"

	art, err := p.Package(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, "My_App-2.1-40", art.BaseName)
	assert.Equal(t, filepath.Join(outDir, "My_App-2.1-40.ipa"), art.Path)
	assert.Equal(t, filepath.Join(outDir, "My_App-2.1-40-dSYM.zip"), art.SymbolsPath)
	assert.Equal(t, filepath.Join(outDir, "My_App-2.1-40.plist"), art.ManifestPath)
	assert.Equal(t, "com.example.myapp", art.Application.BundleID)

	assert.True(t, payloadSeen, "Payload exists while the packaging tool runs")
	assert.False(t, workspace.IsDir(filepath.Join(outDir, PayloadDir)), "Payload is removed afterwards")

	assert.Contains(t, fake.Lines(), xcrun+" -sdk iphoneos17.2 PackageApplication -v "+app.Path+" -o "+art.Path)
	assert.Contains(t, fake.Lines(), ditto+" -c -k --keepParent -rsrc "+app.Path+".dSYM "+art.SymbolsPath)
	for _, c := range fake.Calls() {
		if c.Command.Path == ditto {
			assert.Equal(t, buildDir, c.Command.Dir)
		}
	}

	manifest, err := os.ReadFile(art.ManifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "<string>https://downloads.example.com/apps/My_App-2.1-40.ipa</string>")
	assert.Contains(t, string(manifest), "<key>bundle-version</key><string>2.1</string>")
	assert.Contains(t, string(manifest), "<string>My App &amp; Co</string>")
}

func TestPackage_NoVersionFailsBeforePackaging(t *testing.T) {
	buildDir, outDir := t.TempDir(), t.TempDir()
	app := makeApp(t, buildDir, "MyApp", false)
	fake := scriptVersions(runnertest.New(), "", "")

	_, err := newPackager(fake, buildDir, outDir).Package(context.Background(), app)
	require.ErrorIs(t, err, ErrNoVersion)
	assert.False(t, fake.Called(xcrun))
	assert.False(t, workspace.IsDir(filepath.Join(outDir, PayloadDir)))
}

func TestPackage_SingleVersionIsEnough(t *testing.T) {
	buildDir, outDir := t.TempDir(), t.TempDir()
	app := makeApp(t, buildDir, "MyApp", false)
	fake := scriptVersions(runnertest.New(), "", "3.0")

	art, err := newPackager(fake, buildDir, outDir).Package(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "MyApp-3.0", art.BaseName)
	assert.Empty(t, art.SymbolsPath)
	assert.Empty(t, art.ManifestPath)
	assert.False(t, fake.Called(ditto))
}

func TestPackage_ToolFailures(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		sentinel error
	}{
		{"packaging tool", xcrun, ErrPackageFailed},
		{"symbols archive", ditto, ErrSymbolsArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildDir, outDir := t.TempDir(), t.TempDir()
			app := makeApp(t, buildDir, "MyApp", true)
			fake := scriptVersions(runnertest.New(), "1", "1.0").On(tt.prefix, runnertest.Response{Code: 1})

			_, err := newPackager(fake, buildDir, outDir).Package(context.Background(), app)
			require.ErrorIs(t, err, tt.sentinel)
			assert.False(t, workspace.IsDir(filepath.Join(outDir, PayloadDir)), "Payload is removed on failure")
		})
	}
}

func TestPackage_Arguments(t *testing.T) {
	buildDir, outDir := t.TempDir(), t.TempDir()
	app := makeApp(t, buildDir, "MyApp", false)

	tests := []struct {
		name    string
		opts    func(*Options)
		want    []string
		notWant []string
	}{
		{
			name: "platform when sdk empty",
			opts: func(o *Options) { o.Platform = xcode.PlatformSimulator },
			want: []string{"-sdk", "iphonesimulator"},
		},
		{
			name: "embedded profile",
			opts: func(o *Options) { o.EmbeddedProfile = "/tmp/app.mobileprovision" },
			want: []string{"--embed", "/tmp/app.mobileprovision"},
		},
		{
			name:    "identity without sign-at-packaging",
			opts:    func(o *Options) { o.CodeSigningIdentity = "iPhone Distribution" },
			notWant: []string{"--sign"},
		},
		{
			name: "identity with sign-at-packaging",
			opts: func(o *Options) {
				o.CodeSigningIdentity = "iPhone Distribution"
				o.SignAtPackaging = true
			},
			want: []string{"--sign", "iPhone Distribution"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := scriptVersions(runnertest.New(), "1", "1.0")
			p := newPackager(fake, buildDir, outDir)
			tt.opts(&p.Opts)
			_, err := p.Package(context.Background(), app)
			require.NoError(t, err)

			var line string
			for _, l := range fake.Lines() {
				if strings.HasPrefix(l, xcrun) {
					line = l
				}
			}
			if len(tt.want) > 0 {
				assert.Contains(t, line, strings.Join(tt.want, " "))
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, line, nw)
			}
		})
	}
}

func TestPackage_CustomNamePattern(t *testing.T) {
	buildDir, outDir := t.TempDir(), t.TempDir()
	app := makeApp(t, buildDir, "MyApp", false)
	fake := scriptVersions(runnertest.New(), "40", "2.1")
	p := newPackager(fake, buildDir, outDir)
	p.Opts.NamePattern = "{BASE_NAME}_{BUILD_DATE}_b{VERSION}"

	art, err := p.Package(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "MyApp_2024.05.01_b40", art.BaseName)
}

func TestDiscoverApplications(t *testing.T) {
	dir := t.TempDir()
	makeApp(t, dir, "Zeta", true)
	makeApp(t, dir, "Alpha", false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NotADir.app"), nil, 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Other.framework"), 0o755))

	apps, err := DiscoverApplications(dir)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "Alpha", apps[0].Name)
	assert.Equal(t, "Zeta", apps[1].Name)
	assert.False(t, apps[0].ModTime.IsZero())
}

func TestDiscoverApplications_Failures(t *testing.T) {
	_, err := DiscoverApplications(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrListing)

	_, err = DiscoverApplications(t.TempDir())
	require.ErrorIs(t, err, ErrNoApplications)
	assert.NotErrorIs(t, err, ErrListing)
}

func TestManifestRender(t *testing.T) {
	got := Manifest{
		URLBase:       "https://x.example",
		IPAName:       "A-1.0-1.ipa",
		BundleID:      "com.example.a",
		BundleVersion: "1.0",
		AppName:       "A<b>",
	}.Render()

	want := `<?xml version="1.0" encoding="UTF-8"?><!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd"><plist version="1.0"><dict><key>items</key><array><dict><key>assets</key><array><dict><key>kind</key><string>software-package</string><key>url</key><string>https://x.example/A-1.0-1.ipa</string></dict></array><key>metadata</key><dict><key>bundle-identifier</key><string>com.example.a</string><key>bundle-version</key><string>1.0</string><key>kind</key><string>software</string><key>title</key><string>A&lt;b&gt;</string></dict></dict></array></dict></plist>`
	assert.Equal(t, want, got)
}

func TestManifestRender_EscapesURLBase(t *testing.T) {
	got := Manifest{
		URLBase:       "https://cdn.example.com/r&d",
		IPAName:       "A-1.0-1.ipa",
		BundleID:      "com.example.a",
		BundleVersion: "1.0",
		AppName:       "A",
	}.Render()

	assert.Contains(t, got, "<string>https://cdn.example.com/r&amp;d/A-1.0-1.ipa</string>")
	assert.NotContains(t, got, "r&d")

	var doc struct {
		Strings []string `xml:"dict>array>dict>array>dict>string"`
	}
	require.NoError(t, xml.Unmarshal([]byte(got), &doc))
	assert.Contains(t, doc.Strings, "https://cdn.example.com/r&d/A-1.0-1.ipa")
}
