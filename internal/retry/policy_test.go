package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, ModeLinear, p.Mode)
	assert.Equal(t, time.Second, p.Initial)
	assert.Equal(t, 30*time.Second, p.Max)
	assert.Equal(t, 2, p.MaxRetries)
	require.NoError(t, p.Validate())
}

// initial > max is clamped.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(ModeFixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial)
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, ModeFixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)

	p = NewPolicy("bogus", 0, 0, -1)
	assert.Equal(t, DefaultPolicy(), p)
}

func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(ModeFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 100*time.Millisecond, fixed.Delay(i))
	}

	linear := NewPolicy(ModeLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 250 * time.Millisecond},
		{4, 250 * time.Millisecond},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, linear.Delay(c.attempt), "linear attempt %d", c.attempt)
	}

	exp := NewPolicy(ModeExponential, 50*time.Millisecond, 300*time.Millisecond, 5)
	assert.Equal(t, 50*time.Millisecond, exp.Delay(1))
	assert.Equal(t, 100*time.Millisecond, exp.Delay(2))
	assert.Equal(t, 200*time.Millisecond, exp.Delay(3))
	assert.Equal(t, 300*time.Millisecond, exp.Delay(4))
	assert.Equal(t, 300*time.Millisecond, exp.Delay(80), "overflow is capped")

	assert.Zero(t, exp.Delay(0))
}

func TestValidate(t *testing.T) {
	require.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}

func TestDo(t *testing.T) {
	p := NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, 2)

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := p.Do(t.Context(), func(attempt int) error {
			assert.Equal(t, calls, attempt)
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := p.Do(t.Context(), func(int) error {
			calls++
			return errors.New("down")
		})
		require.EqualError(t, err, "down")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		calls := 0
		err := NewPolicy(ModeFixed, time.Hour, time.Hour, 5).Do(ctx, func(int) error {
			calls++
			return errors.New("down")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on permanent classified error", func(t *testing.T) {
		calls := 0
		err := p.Do(t.Context(), func(int) error {
			calls++
			return errs.NewError(errs.CategoryRuntime, "closed").WithRetry(errs.RetryNever).Build()
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries classified backoff error", func(t *testing.T) {
		calls := 0
		err := p.Do(t.Context(), func(int) error {
			calls++
			return errs.NewError(errs.CategoryRuntime, "slow").WithRetry(errs.RetryBackoff).Build()
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})
}
