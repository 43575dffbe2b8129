package pipeline

import (
	"strings"

	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// Classification is the verdict on a build invocation.
type Classification string

const (
	Succeeded Classification = "SUCCEEDED"
	Failed    Classification = "FAILED"
	TimedOut  Classification = "TIMED_OUT"
)

// BuildOutcome keeps both exit codes of the build invocation.
type BuildOutcome struct {
	RawExitCode    int
	ParserExitCode int
	Classification Classification
}

// Passed reports whether both codes are zero.
func (o BuildOutcome) Passed() bool {
	return o.RawExitCode == 0 && o.ParserExitCode == 0
}

// ClassifyOutcome decides the verdict. The parser code is authoritative; a
// clean parse with a terminated process is a timeout.
func ClassifyOutcome(rawExitCode, parserExitCode int) BuildOutcome {
	out := BuildOutcome{RawExitCode: rawExitCode, ParserExitCode: parserExitCode}
	switch {
	case parserExitCode != 0:
		out.Classification = Failed
	case rawExitCode == runner.ExitTimedOut:
		out.Classification = TimedOut
	case rawExitCode != 0:
		out.Classification = Failed
	default:
		out.Classification = Succeeded
	}
	return out
}

// metricLabel renders the classification for the build outcome counter.
func (c Classification) metricLabel() string {
	return strings.ToLower(string(c))
}
