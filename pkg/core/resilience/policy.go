// Package resilience provides the fixed-delay retry policy used around
// every generation-service call.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Classification tells the policy whether an error may be retried and how
// long to wait before the next attempt.
type Classification struct {
	Retryable bool
	Delay     time.Duration
}

type Classifier func(err error) Classification

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy retries an operation a bounded number of times with fixed delays.
type Policy struct {
	MaxAttempts int
	Sleep       SleepFunc
	Logger      *slog.Logger
}

const DefaultMaxAttempts = 3

// NewPolicy returns a policy with real timers.
func NewPolicy(maxAttempts int, logger *slog.Logger) *Policy {
	return &Policy{MaxAttempts: maxAttempts, Sleep: TimerSleep, Logger: logger}
}

// Do runs fn until it succeeds, the classifier rejects the error, or the
// attempts run out. The last error is returned unchanged.
func (p *Policy) Do(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = neverRetry
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = TimerSleep
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		class := classify(err)
		if !class.Retryable || attempt == maxAttempts {
			return err
		}

		logger.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay_ms", class.Delay.Milliseconds(),
			"error", err,
		)

		if class.Delay > 0 {
			if sleepErr := sleep(ctx, class.Delay); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

// TimerSleep blocks for d, returning early with ctx.Err() on cancellation.
func TimerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func neverRetry(error) Classification {
	return Classification{}
}
