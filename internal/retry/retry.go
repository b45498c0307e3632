// Package retry provides the bounded exponential backoff policy shared by every
// stage that talks to an external provider.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recap/internal/config"
	"recap/internal/services"
)

// Policy describes a bounded retry with exponentially increasing delays.
// Attempt n (1-based) is followed by a delay of BaseDelay*Multiplier^(n-1),
// capped at MaxDelay when MaxDelay is positive.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Sleep replaces the timer-based wait. It must honour ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// Retryable overrides the default classifier.
	Retryable func(err error) bool
	// OnRetry observes every failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// FromConfig builds a policy from a configuration block.
func FromConfig(cfg config.Retry) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay(),
		Multiplier:  cfg.Multiplier,
		MaxDelay:    cfg.MaxDelay(),
	}
}

// Hinted is implemented by errors that carry a provider-suggested delay, such
// as a Retry-After header.
type Hinted interface {
	RetryAfter() time.Duration
}

// Do calls fn until it succeeds, returns a non-retryable error, or exhausts the
// attempt budget. Exhaustion returns an error naming op, the attempt count, and
// wrapping the last failure.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := p.attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: %w (last failure: %v)", op, err, lastErr)
			}
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := p.Delay(attempt)
		var hinted Hinted
		if errors.As(err, &hinted) {
			if hint := hinted.RetryAfter(); hint > delay {
				delay = p.capDelay(hint)
			}
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w (last failure: %v)", op, err, lastErr)
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

// Delay returns the wait that follows the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return p.capDelay(time.Duration(delay))
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !services.IsPermanent(err)
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
