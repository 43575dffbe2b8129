// Package versioning reads and writes application version identifiers through
// agvtool and PlistBuddy, and derives artifact names from them.
package versioning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// Write-back failures.
var (
	ErrMarketingVersionWrite = errors.New("failed to set the marketing version")
	ErrBuildNumberWrite      = errors.New("failed to set the build number")
	ErrPlistWrite            = errors.New("failed to update the property list")
)

// Info holds the two version identifiers of an application.
type Info struct {
	BuildNumber      string
	MarketingVersion string
}

// Empty reports whether neither identifier is known.
func (i Info) Empty() bool {
	return i.BuildNumber == "" && i.MarketingVersion == ""
}

// Description renders "<marketing> (<build>)", the build's version token.
func (i Info) Description() string {
	return i.MarketingVersion + " (" + i.BuildNumber + ")"
}

// Tool drives agvtool in a project directory.
type Tool struct {
	Runner runner.Runner
	Path   string
	Dir    string
	Env    []string
	// Output receives the output of write operations.
	Output io.Writer
}

// Read returns the project's current versions. Either value is empty when
// agvtool fails or prints nothing; reading never fails.
func (t Tool) Read(ctx context.Context) Info {
	info := Info{
		MarketingVersion: t.query(ctx, "mvers", "-terse1"),
		BuildNumber:      t.query(ctx, "vers", "-terse"),
	}
	if info.MarketingVersion == "" {
		slog.Warn("Marketing version not found")
	}
	if info.BuildNumber == "" {
		slog.Warn("Build number not found")
	}
	return info
}

func (t Tool) query(ctx context.Context, args ...string) string {
	var out bytes.Buffer
	code, err := t.Runner.Run(ctx, runner.Command{Path: t.Path, Args: args, Dir: t.Dir, Env: t.Env, Stdout: &out})
	if err != nil || code != 0 {
		slog.Debug("agvtool query failed", logfields.Command(strings.Join(args, " ")), logfields.ExitCode(code))
		return ""
	}
	return strings.TrimSpace(out.String())
}

// SetMarketingVersion runs `agvtool new-marketing-version`.
func (t Tool) SetMarketingVersion(ctx context.Context, version string) error {
	return t.write(ctx, ErrMarketingVersionWrite, "new-marketing-version", version)
}

// SetBuildNumber runs `agvtool new-version -all`.
func (t Tool) SetBuildNumber(ctx context.Context, version string) error {
	return t.write(ctx, ErrBuildNumberWrite, "new-version", "-all", version)
}

func (t Tool) write(ctx context.Context, sentinel error, args ...string) error {
	code, err := t.Runner.Run(ctx, runner.Command{Path: t.Path, Args: args, Dir: t.Dir, Env: t.Env, Stdout: t.Output})
	if err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited %d", sentinel, strings.Join(args, " "), code)
	}
	return nil
}
