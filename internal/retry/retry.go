// Package retry provides the single retry policy applied to every outbound
// network call: a fixed number of attempts with a fixed inter-attempt delay,
// and a longer delay when the failure is rate-limit-class.
package retry

import (
	"context"
	"time"

	"github.com/semlens/semlens-mcp/pkg/types"
)

// Reference policy values
const (
	MaxAttempts = 3
	// FixedDelay is the inter-attempt delay for generic transient failures.
	FixedDelay = 2 * time.Second
	// RateLimitDelay applies when the last failure was rate-limit-class,
	// to avoid hammering a provider that is already shedding load.
	RateLimitDelay = 5 * time.Second
)

// Policy configures retry behavior. The zero value is unusable; use
// DefaultPolicy or construct explicitly in tests with short delays.
type Policy struct {
	MaxAttempts    int
	Delay          time.Duration
	RateLimitDelay time.Duration
}

// DefaultPolicy returns the reference policy: 3 attempts, 2s fixed delay,
// 5s after a rate-limit-class error.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    MaxAttempts,
		Delay:          FixedDelay,
		RateLimitDelay: RateLimitDelay,
	}
}

// Do executes fn up to p.MaxAttempts times, sleeping between attempts.
// It returns the last error when all attempts fail, and stops immediately
// on context cancellation.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < p.MaxAttempts-1 {
			delay := p.Delay
			if types.IsRateLimitError(err) {
				delay = p.RateLimitDelay
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return zero, lastErr
}

// Void runs fn under the policy when there is no result value.
func Void(ctx context.Context, p Policy, fn func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
