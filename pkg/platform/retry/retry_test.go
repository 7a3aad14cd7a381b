package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastBackoff() Backoff {
	return Backoff{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxRetries: 3}
}

func TestDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastBackoff(), nil, func(context.Context, int) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastBackoff(), nil, func(context.Context, int) error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 4, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		permanent := errors.New("permanent")
		calls := 0
		err := Do(context.Background(), fastBackoff(), func(err error) bool { return errors.Is(err, errTransient) },
			func(context.Context, int) error {
				calls++
				return permanent
			})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("honors cancellation between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := Do(ctx, Backoff{InitialDelay: time.Hour, MaxRetries: 2}, nil, func(context.Context, int) error {
			cancel()
			return errTransient
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWithDefaults(t *testing.T) {
	b := Backoff{}.WithDefaults()
	assert.Equal(t, 100*time.Millisecond, b.InitialDelay)
	assert.Equal(t, 2*time.Second, b.MaxDelay)
	assert.Equal(t, 3, b.MaxRetries)
	assert.Equal(t, 2.0, b.Multiplier)
}
