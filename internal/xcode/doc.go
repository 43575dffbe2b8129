// Package xcode understands xcodebuild: it composes invocations, parses the
// -list output and decides build success from the streamed build log.
package xcode
