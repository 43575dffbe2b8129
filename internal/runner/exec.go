package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	osexec "os/exec"
	"syscall"
	"time"

	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
)

// DefaultGracePeriod is the time between SIGTERM and SIGKILL when a process group
// is terminated.
const DefaultGracePeriod = 3 * time.Second

// ExecRunner runs commands with os/exec. Each command is started in its own
// process group so that timeouts and cancellation reach the whole tree.
type ExecRunner struct {
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// NewExecRunner returns an ExecRunner with default settings.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{GracePeriod: DefaultGracePeriod, Logger: slog.Default()}
}

// Run blocks until the command exits or ctx is cancelled.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (int, error) {
	return r.run(ctx, cmd, 0)
}

// RunWithTimeout is Run bounded by timeout. On expiry the process group is
// terminated and ExitTimedOut is returned with a nil error.
func (r *ExecRunner) RunWithTimeout(ctx context.Context, cmd Command, timeout time.Duration) (int, error) {
	return r.run(ctx, cmd, timeout)
}

func (r *ExecRunner) run(ctx context.Context, c Command, timeout time.Duration) (int, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Running command", logfields.Command(c.String()), slog.String("dir", c.Dir))

	cmd := osexec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", c.Path, err)
	}
	pgid := cmd.Process.Pid

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-waitDone:
		return exitCode(err)
	case <-expired:
		logger.Warn("Command timed out", logfields.Command(c.String()), logfields.DurationMS(float64(timeout.Milliseconds())))
		r.terminate(pgid, waitDone)
		return ExitTimedOut, nil
	case <-ctx.Done():
		r.terminate(pgid, waitDone)
		return -1, ctx.Err()
	}
}

// terminate sends SIGTERM to the process group, waits for the grace period,
// then sends SIGKILL if the leader has not exited.
func (r *ExecRunner) terminate(pgid int, waitDone <-chan error) {
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	grace := r.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	select {
	case <-waitDone:
		return
	case <-time.After(grace):
	}

	_ = syscall.Kill(-pgid, syscall.SIGKILL)
	<-waitDone
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *osexec.ExitError
	if !stderrors.As(err, &exitErr) {
		return -1, err
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}
