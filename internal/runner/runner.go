// Package runner executes external tools (xcodebuild, agvtool, security, ...) as
// subprocesses and reports their exit codes.
//
// A non-zero exit is not an error: callers decide what an exit code means. The
// returned error is reserved for failures to start the process and for
// cancellation of the parent context.
package runner

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"
)

// ExitTimedOut is returned by RunWithTimeout when the deadline expires. It is the
// conventional exit status of a process terminated by SIGTERM.
const ExitTimedOut = 143

// Mask replaces masked arguments in rendered command lines.
const Mask = "******"

// Command describes one subprocess invocation.
type Command struct {
	Path string
	Args []string
	// Env is the complete environment; nil inherits the current process environment.
	Env []string
	Dir string

	Stdout io.Writer
	Stderr io.Writer

	// Masked lists indexes into Args that hold secrets.
	Masked []int
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
	RunWithTimeout(ctx context.Context, cmd Command, timeout time.Duration) (int, error)
}

// Line renders Path followed by Args with masked arguments hidden.
func (c Command) Line() []string {
	out := make([]string, 0, len(c.Args)+1)
	out = append(out, c.Path)
	for i, a := range c.Args {
		if slices.Contains(c.Masked, i) {
			out = append(out, Mask)
			continue
		}
		out = append(out, a)
	}
	return out
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(c.Line(), " ")
}
