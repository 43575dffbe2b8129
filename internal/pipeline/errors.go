package pipeline

import "errors"

// Fatal conditions raised by the orchestrator itself. Collaborator packages
// (keychain, packaging, versioning, xcode) contribute their own sentinels,
// which are wrapped unchanged.
var (
	ErrToolNotFound     = errors.New("build tool not found")
	ErrToolMissing      = errors.New("xcodebuild is not usable")
	ErrBundleID         = errors.New("failed to change the bundle identifier")
	ErrClean            = errors.New("failed to clean build outputs")
	ErrInvalidArguments = errors.New("invalid xcodebuild arguments")
	ErrBuildTool        = errors.New("failed to run xcodebuild")
	ErrBuildFailed      = errors.New("build failed")
	ErrMissingBuildDir  = errors.New("build directory does not exist")
	ErrOutputDir        = errors.New("failed to create the artifact output directory")
)
