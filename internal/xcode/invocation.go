package xcode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Platforms inferred from the SDK name.
const (
	PlatformDevice    = "iphoneos"
	PlatformSimulator = "iphonesimulator"
)

// PlatformForSDK returns the simulator platform iff sdk mentions
// "iphonesimulator" in any letter case.
func PlatformForSDK(sdk string) string {
	if strings.Contains(strings.ToLower(sdk), PlatformSimulator) {
		return PlatformSimulator
	}
	return PlatformDevice
}

// Target resolution failures.
var (
	ErrNoTargetsDiscovered = errors.New("no targets found in the project listing")
	ErrNoMatchingTargets   = errors.New("no targets match the configured pattern")
	ErrInvalidTargetRegex  = errors.New("invalid target pattern")
)

// SelectionMode identifies how the build chooses what to build.
type SelectionMode string

const (
	SelectScheme     SelectionMode = "scheme"
	SelectTarget     SelectionMode = "target"
	SelectAllTargets SelectionMode = "alltargets"
	SelectRegex      SelectionMode = "regex"
	SelectDefault    SelectionMode = "default"
)

// SelectionInput is what the job configures about targets.
type SelectionInput struct {
	Scheme      string
	Target      string
	TargetRegex bool
	ProjectFile string
}

// Selection is the resolved choice; exactly one mode is active.
type Selection struct {
	Mode    SelectionMode
	Scheme  string
	Targets []string
}

// Mode reports which selection mode applies to in, without consulting the
// target listing.
func (in SelectionInput) Mode() SelectionMode {
	switch {
	case in.Scheme != "":
		return SelectScheme
	case in.Target != "" && !in.TargetRegex:
		return SelectTarget
	case in.Target == "" && in.ProjectFile != "":
		return SelectAllTargets
	case in.TargetRegex:
		return SelectRegex
	default:
		return SelectDefault
	}
}

// ResolveSelection applies the precedence scheme > explicit target > all
// targets > pattern over discovered targets > literal target. Pattern mode
// matches anywhere in the target name and selects every match.
func ResolveSelection(in SelectionInput, discovered TargetSet) (Selection, error) {
	mode := in.Mode()
	switch mode {
	case SelectScheme:
		return Selection{Mode: mode, Scheme: in.Scheme}, nil
	case SelectTarget:
		return Selection{Mode: mode, Targets: []string{in.Target}}, nil
	case SelectAllTargets:
		return Selection{Mode: mode}, nil
	case SelectRegex:
		re, err := regexp.Compile(in.Target)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %w", ErrInvalidTargetRegex, err)
		}
		if discovered.Empty() {
			return Selection{}, ErrNoTargetsDiscovered
		}
		var matched []string
		for _, t := range discovered {
			if re.MatchString(t) {
				matched = append(matched, t)
			}
		}
		if len(matched) == 0 {
			return Selection{}, ErrNoMatchingTargets
		}
		return Selection{Mode: mode, Targets: matched}, nil
	default:
		// Neither scheme, target nor project: xcodebuild picks its own default.
		return Selection{Mode: SelectDefault}, nil
	}
}

// Args renders the selection as xcodebuild arguments.
func (s Selection) Args() []string {
	switch s.Mode {
	case SelectScheme:
		return []string{"-scheme", s.Scheme}
	case SelectAllTargets:
		return []string{"-alltargets"}
	}
	args := make([]string, 0, 2*len(s.Targets))
	for _, t := range s.Targets {
		args = append(args, "-target", t)
	}
	return args
}

// WorkspacePath appends the .xcworkspace suffix when missing.
func WorkspacePath(workspace string) string {
	if workspace == "" || strings.HasSuffix(workspace, ".xcworkspace") {
		return workspace
	}
	return workspace + ".xcworkspace"
}

// ContainerArgs selects the workspace when set, otherwise the project.
func ContainerArgs(workspaceFile, projectFile string) []string {
	switch {
	case workspaceFile != "":
		return []string{"-workspace", WorkspacePath(workspaceFile)}
	case projectFile != "":
		return []string{"-project", projectFile}
	default:
		return nil
	}
}

// ListArgs returns the arguments of the `-list` probe.
func ListArgs(workspaceFile, projectFile string) []string {
	return append([]string{"-list"}, ContainerArgs(workspaceFile, projectFile)...)
}

// BuildInvocation is a fully resolved xcodebuild build command.
type BuildInvocation struct {
	Selection             Selection
	SDK                   string
	WorkspaceFile         string
	ProjectFile           string
	Configuration         string
	Clean                 bool
	Archive               bool
	Symroot               string
	ConfigurationBuildDir string
	CodeSigningIdentity   string
	ExtraArgs             []string
}

// Args renders the invocation. Exactly one of "archive" or "build" is emitted:
// archiving already builds, and passing both builds twice.
func (b BuildInvocation) Args() []string {
	args := b.Selection.Args()
	if b.SDK != "" {
		args = append(args, "-sdk", b.SDK)
	}
	args = append(args, ContainerArgs(b.WorkspaceFile, b.ProjectFile)...)
	if b.Configuration != "" {
		args = append(args, "-configuration", b.Configuration)
	}
	if b.Clean {
		args = append(args, "clean")
	}
	if b.Archive {
		args = append(args, "archive")
	} else {
		args = append(args, "build")
	}
	if b.Symroot != "" {
		args = append(args, "SYMROOT="+b.Symroot)
	}
	if b.ConfigurationBuildDir != "" {
		args = append(args, "CONFIGURATION_BUILD_DIR="+b.ConfigurationBuildDir)
	}
	if b.CodeSigningIdentity != "" {
		args = append(args, "CODE_SIGN_IDENTITY="+b.CodeSigningIdentity)
	}
	return append(args, b.ExtraArgs...)
}

// Summary is a one-line human description of the invocation.
func (b BuildInvocation) Summary() string {
	var parts []string
	switch b.Selection.Mode {
	case SelectScheme:
		parts = append(parts, "scheme: "+b.Selection.Scheme)
	case SelectAllTargets:
		parts = append(parts, "target: ALL")
	case SelectDefault:
		parts = append(parts, "target: DEFAULT")
	default:
		parts = append(parts, "target: "+strings.Join(b.Selection.Targets, ", "))
	}
	parts = append(parts,
		"sdk: "+orDefault(b.SDK),
		containerSummary(b.WorkspaceFile, b.ProjectFile),
		"configuration: "+orDefault(b.Configuration),
		"clean: "+yesNo(b.Clean),
		"archive: "+yesNo(b.Archive),
		"symRoot: "+orDefault(b.Symroot),
		"configurationBuildDir: "+orDefault(b.ConfigurationBuildDir),
		"codeSignIdentity: "+orDefault(b.CodeSigningIdentity),
	)
	return strings.Join(parts, ", ")
}

func containerSummary(workspace, project string) string {
	switch {
	case workspace != "":
		return "workspace: " + workspace
	case project != "":
		return "project: " + project
	default:
		return "project: DEFAULT"
	}
}

func orDefault(s string) string {
	if s == "" {
		return "DEFAULT"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// SplitArguments tokenizes user-supplied extra arguments with shell quoting rules.
// Variables are not expanded here.
func SplitArguments(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	args, err := parser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse xcodebuild arguments: %w", err)
	}
	return args, nil
}
