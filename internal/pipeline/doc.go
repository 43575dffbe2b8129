// Package pipeline runs one xcodebuild job end to end.
//
// An Orchestrator executes a fixed, ordered list of stages:
//
//	verify_tools → resolve_directories → probe_tool → read_versions →
//	attach_metadata → change_bundle_id → provide_versions → clean →
//	unlock_keychain → diagnostics → list_targets → resolve_targets →
//	compose_command → build → prepare_packaging → package
//
// Stages share a BuildState and stop at the first fatal error. Every fatal
// condition wraps a package sentinel inside a classified error from
// internal/foundation/errors, so callers can use errors.Is for the condition
// and the error category for the exit code.
//
// The pass/fail decision of the build stage comes from xcode.OutputParser,
// not from the process exit code. The raw exit code is kept on the result
// for reporting; 143 (terminated) classifies as a timeout.
package pipeline
