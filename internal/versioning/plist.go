package versioning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// Info.plist keys read during packaging.
const (
	KeyBundleVersion      = "CFBundleVersion"
	KeyShortVersionString = "CFBundleShortVersionString"
	KeyBundleIdentifier   = "CFBundleIdentifier"
	KeyBundleDisplayName  = "CFBundleDisplayName"
)

// Plist reads and edits property lists with PlistBuddy.
type Plist struct {
	Runner runner.Runner
	Path   string
	Dir    string
	Env    []string
	Output io.Writer
}

// Get prints key from file. A missing key or tool failure yields "".
func (p Plist) Get(ctx context.Context, file, key string) string {
	var out bytes.Buffer
	code, err := p.Runner.Run(ctx, runner.Command{
		Path:   p.Path,
		Args:   []string{"-c", "Print :" + key, file},
		Dir:    p.Dir,
		Env:    p.Env,
		Stdout: &out,
	})
	if err != nil || code != 0 {
		return ""
	}
	return strings.TrimSpace(out.String())
}

// Set assigns value to key in file.
func (p Plist) Set(ctx context.Context, file, key, value string) error {
	code, err := p.Runner.Run(ctx, runner.Command{
		Path:   p.Path,
		Args:   []string{"-c", "Set :" + key + " " + value, file},
		Dir:    p.Dir,
		Env:    p.Env,
		Stdout: p.Output,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlistWrite, file, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s: PlistBuddy exited %d", ErrPlistWrite, file, code)
	}
	return nil
}

// ApplicationVersions reads the version identifiers embedded in an app bundle.
func (p Plist) ApplicationVersions(ctx context.Context, appPath string) Info {
	plist := appPath + "/Info.plist"
	return Info{
		BuildNumber:      p.Get(ctx, plist, KeyBundleVersion),
		MarketingVersion: p.Get(ctx, plist, KeyShortVersionString),
	}
}
