package service

import (
	"context"
	"time"

	"TikTokAuto-server/logger"
)

// RetryPolicy bounds how a single stage call is retried: MaxAttempts total
// tries with exponential backoff capped at MaxDelay. Backoff sleeps count
// toward the stage's context deadline.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 30 * time.Second, MaxDelay: 10 * time.Minute}
}

// Backoff returns the delay before the given retry (attempt is zero-based,
// counting completed tries).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn under the policy. Permanent errors stop immediately. Anything
// unclassified is treated as transient, logged distinctly so recurring
// defaults can be promoted to explicit Permanent classifications. When the
// budget is spent the last error comes back wrapped in ExhaustedError.
func (p RetryPolicy) Do(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if !IsTransient(err) {
			logger.S().Warnf("[%s] unclassified error treated as transient: %v", stage, err)
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := p.Backoff(attempt)
		logger.S().Infof("[%s] attempt %d/%d failed, retrying in %s: %v",
			stage, attempt+1, p.MaxAttempts, delay, err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return &ExhaustedError{Stage: stage, Attempts: attempt + 1, Err: ctx.Err()}
		case <-t.C:
		}
	}
	return &ExhaustedError{Stage: stage, Attempts: p.MaxAttempts, Err: lastErr}
}
