// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// Response is the scripted result of a command.
type Response struct {
	Stdout string
	Code   int
	Err    error
	// Hook runs before Stdout is written, e.g. to create files a tool would produce.
	Hook func(cmd runner.Command)
}

// Call records one invocation.
type Call struct {
	Command runner.Command
	Timeout time.Duration
}

// Line returns the unmasked command line.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Command.Path}, c.Command.Args...), " ")
}

// Fake answers commands by longest matching command-line prefix. Unmatched
// commands exit 0 with no output.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{responses: make(map[string]Response)}
}

// On scripts the response for command lines starting with prefix.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

// Run implements runner.Runner.
func (f *Fake) Run(ctx context.Context, cmd runner.Command) (int, error) {
	return f.RunWithTimeout(ctx, cmd, 0)
}

// RunWithTimeout implements runner.Runner.
func (f *Fake) RunWithTimeout(_ context.Context, cmd runner.Command, timeout time.Duration) (int, error) {
	call := Call{Command: cmd, Timeout: timeout}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	resp, ok := f.match(call.Line())
	f.mu.Unlock()

	if !ok {
		return 0, nil
	}
	if resp.Hook != nil {
		resp.Hook(cmd)
	}
	if resp.Stdout != "" && cmd.Stdout != nil {
		_, _ = io.WriteString(cmd.Stdout, resp.Stdout)
	}
	return resp.Code, resp.Err
}

func (f *Fake) match(line string) (Response, bool) {
	best := -1
	var found Response
	for prefix, resp := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			found = resp
		}
	}
	return found, best >= 0
}

// Calls returns all recorded invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns the recorded unmasked command lines.
func (f *Fake) Lines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Line()
	}
	return out
}

// Count returns how many recorded command lines start with prefix.
func (f *Fake) Count(prefix string) int {
	n := 0
	for _, l := range f.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// Called reports whether any recorded command line starts with prefix.
func (f *Fake) Called(prefix string) bool {
	return f.Count(prefix) > 0
}

var _ runner.Runner = (*Fake)(nil)
