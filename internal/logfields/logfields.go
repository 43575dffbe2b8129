package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID      = "build_id"
	KeyStage        = "stage"
	KeyDurationMS   = "duration_ms"
	KeyTool         = "tool"
	KeyCommand      = "command"
	KeyExitCode     = "exit_code"
	KeyParserExit   = "parser_exit_code"
	KeyPath         = "path"
	KeyKeychain     = "keychain"
	KeyTarget       = "target"
	KeyScheme       = "scheme"
	KeySDK          = "sdk"
	KeyPlatform     = "platform"
	KeyArtifact     = "artifact"
	KeyVersion      = "version"
	KeyShortVersion = "short_version"
	KeyOutcome      = "outcome"
	KeyCommit       = "commit"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Tool(path string) slog.Attr        { return slog.String(KeyTool, path) }
func Command(line string) slog.Attr     { return slog.String(KeyCommand, line) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func ParserExitCode(code int) slog.Attr { return slog.Int(KeyParserExit, code) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Keychain(name string) slog.Attr    { return slog.String(KeyKeychain, name) }
func Scheme(s string) slog.Attr         { return slog.String(KeyScheme, s) }
func SDK(s string) slog.Attr            { return slog.String(KeySDK, s) }
func Platform(p string) slog.Attr       { return slog.String(KeyPlatform, p) }
func Artifact(p string) slog.Attr       { return slog.String(KeyArtifact, p) }
func Version(v string) slog.Attr        { return slog.String(KeyVersion, v) }
func ShortVersion(v string) slog.Attr   { return slog.String(KeyShortVersion, v) }
func Outcome(o string) slog.Attr        { return slog.String(KeyOutcome, o) }
func Commit(c string) slog.Attr         { return slog.String(KeyCommit, c) }

// Targets joins multiple target names into one attribute.
func Targets(names []string) slog.Attr {
	return slog.String(KeyTarget, strings.Join(names, ","))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
