package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/semlens/semlens-mcp/pkg/types"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		Delay:          5 * time.Millisecond,
		RateLimitDelay: 25 * time.Millisecond,
	}
}

func TestDo(t *testing.T) {
	t.Run("immediate success no retry", func(t *testing.T) {
		ctx := context.Background()
		calls := 0

		result, err := Do(ctx, testPolicy(), func() (int, error) {
			calls++
			return 42, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		ctx := context.Background()
		calls := 0

		result, err := Do(ctx, testPolicy(), func() (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})

		assert.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error after exhaustion", func(t *testing.T) {
		ctx := context.Background()
		calls := 0

		_, err := Do(ctx, testPolicy(), func() (int, error) {
			calls++
			return 0, fmt.Errorf("error %d", calls)
		})

		assert.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "error 3")
	})

	t.Run("fixed delay between attempts", func(t *testing.T) {
		ctx := context.Background()
		p := Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond, RateLimitDelay: 20 * time.Millisecond}

		start := time.Now()
		_, err := Do(ctx, p, func() (int, error) {
			return 0, errors.New("always fails")
		})
		elapsed := time.Since(start)

		assert.Error(t, err)
		// Two inter-attempt sleeps of 20ms each.
		assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(40))
	})

	t.Run("rate limit errors use longer delay", func(t *testing.T) {
		ctx := context.Background()
		p := Policy{MaxAttempts: 2, Delay: 1 * time.Millisecond, RateLimitDelay: 50 * time.Millisecond}

		start := time.Now()
		_, err := Do(ctx, p, func() (int, error) {
			return 0, types.ErrRateLimited
		})
		elapsed := time.Since(start)

		assert.Error(t, err)
		assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(50))
	})

	t.Run("rate limit detected by message content", func(t *testing.T) {
		ctx := context.Background()
		p := Policy{MaxAttempts: 2, Delay: 1 * time.Millisecond, RateLimitDelay: 50 * time.Millisecond}

		start := time.Now()
		_, err := Do(ctx, p, func() (int, error) {
			return 0, errors.New("api error 429: too many requests")
		})
		elapsed := time.Since(start)

		assert.Error(t, err)
		assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(50))
	})

	t.Run("context cancellation stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		_, err := Do(ctx, Policy{MaxAttempts: 10, Delay: 20 * time.Millisecond, RateLimitDelay: 20 * time.Millisecond}, func() (int, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			return 0, errors.New("fails")
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.LessOrEqual(t, calls, 3)
	})
}

func TestVoid(t *testing.T) {
	calls := 0
	err := Void(context.Background(), testPolicy(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
