// Package errors provides foundational, type-safe error primitives used across xcodebuilder.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, tool, build, target, packaging, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLI adapter mapping categories to process exit codes
//
// Example usage:
//
//	err := errors.WrapError(ErrUnlockFailed, errors.CategoryKeychain, "unlock-keychain exited 51").
//		Fatal().
//		WithContext("keychain", kc.Name).
//		Build()
package errors
