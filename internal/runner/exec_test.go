package runner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(script string) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestExecRunner_Run(t *testing.T) {
	r := NewExecRunner()

	t.Run("captures stdout and zero exit", func(t *testing.T) {
		var out bytes.Buffer
		cmd := sh("echo hello")
		cmd.Stdout = &out
		code, err := r.Run(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Equal(t, "hello\n", out.String())
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		code, err := r.Run(context.Background(), sh("exit 65"))
		require.NoError(t, err)
		assert.Equal(t, 65, code)
	})

	t.Run("working directory and environment", func(t *testing.T) {
		dir := t.TempDir()
		var out bytes.Buffer
		cmd := sh(`echo "$(pwd):$XB_TEST"`)
		cmd.Dir = dir
		cmd.Env = []string{"XB_TEST=yes"}
		cmd.Stdout = &out
		_, err := r.Run(context.Background(), cmd)
		require.NoError(t, err)
		assert.Contains(t, out.String(), ":yes")
	})

	t.Run("missing binary fails to start", func(t *testing.T) {
		_, err := r.Run(context.Background(), Command{Path: "/nonexistent/xcodebuild"})
		require.Error(t, err)
	})
}

func TestExecRunner_RunWithTimeout(t *testing.T) {
	r := &ExecRunner{GracePeriod: 100 * time.Millisecond}

	start := time.Now()
	code, err := r.RunWithTimeout(context.Background(), sh("sleep 30"), 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ExitTimedOut, code)
	assert.Less(t, time.Since(start), 10*time.Second)

	code, err = r.RunWithTimeout(context.Background(), sh("exit 3"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestExecRunner_Cancel(t *testing.T) {
	r := &ExecRunner{GracePeriod: 100 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Run(ctx, sh("sleep 30"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCommandString_MasksSecrets(t *testing.T) {
	cmd := Command{
		Path:   "/usr/bin/security",
		Args:   []string{"unlock-keychain", "-p", "hunter2", "/tmp/login.keychain"},
		Masked: []int{2},
	}
	assert.Equal(t, "/usr/bin/security unlock-keychain -p ****** /tmp/login.keychain", cmd.String())
	assert.NotContains(t, cmd.String(), "hunter2")
}
