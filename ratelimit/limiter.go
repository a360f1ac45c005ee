package ratelimit

import (
	"context"
	"fmt"
	"time"

	"TikTokAuto-server/logger"
)

// ErrLimitExceeded is returned by Check when a resource's ceiling is hit.
// RetryAfter is the suggested wait before rechecking.
type ErrLimitExceeded struct {
	Resource   string
	RetryAfter time.Duration
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Resource, e.RetryAfter)
}

// Counter is the shared atomic counter primitive. Incr must perform the
// increment, the first-call expiry and the TTL read in a single round trip
// so two workers can never both pass a check that together exceeds the
// ceiling.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (count int64, remaining time.Duration, err error)
	Get(ctx context.Context, key string) (int64, error)
}

// WindowLimit admits up to Ceiling calls per fixed window.
type WindowLimit struct {
	Ceiling int
	Window  time.Duration
}

// DailyQuota admits up to Ceiling calls per UTC calendar day.
type DailyQuota struct {
	Ceiling int
}

// Limiter is the admission governor for rate-limited external resources.
type Limiter struct {
	counter Counter
	windows map[string]WindowLimit
	quotas  map[string]DailyQuota

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(counter Counter) *Limiter {
	return &Limiter{
		counter: counter,
		windows: make(map[string]WindowLimit),
		quotas:  make(map[string]DailyQuota),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func (l *Limiter) AddWindow(resource string, ceiling int, window time.Duration) {
	l.windows[resource] = WindowLimit{Ceiling: ceiling, Window: window}
}

func (l *Limiter) AddDailyQuota(resource string, ceiling int) {
	l.quotas[resource] = DailyQuota{Ceiling: ceiling}
}

// Check consumes one slot for resource. It returns *ErrLimitExceeded when
// the ceiling is exceeded; the slot consumed by the rejected call still
// counts toward the window, which is the usual incr-then-compare contract.
func (l *Limiter) Check(ctx context.Context, resource string) error {
	if w, ok := l.windows[resource]; ok {
		return l.checkWindow(ctx, resource, w)
	}
	if q, ok := l.quotas[resource]; ok {
		return l.checkDaily(ctx, resource, q)
	}
	return fmt.Errorf("unknown rate limit resource: %s", resource)
}

func (l *Limiter) checkWindow(ctx context.Context, resource string, w WindowLimit) error {
	key := windowKey(resource, w.Window, l.now())
	count, remaining, err := l.counter.Incr(ctx, key, w.Window)
	if err != nil {
		return err
	}
	if count > int64(w.Ceiling) {
		if remaining <= 0 || remaining > w.Window {
			remaining = w.Window
		}
		return &ErrLimitExceeded{Resource: resource, RetryAfter: remaining}
	}
	return nil
}

func (l *Limiter) checkDaily(ctx context.Context, resource string, q DailyQuota) error {
	now := l.now().UTC()
	key := dailyKey(resource, now)
	count, _, err := l.counter.Incr(ctx, key, untilMidnightUTC(now))
	if err != nil {
		return err
	}
	if count > int64(q.Ceiling) {
		return &ErrLimitExceeded{Resource: resource, RetryAfter: untilMidnightUTC(now)}
	}
	return nil
}

// UsedToday reports how many daily-quota slots resource has consumed today.
func (l *Limiter) UsedToday(ctx context.Context, resource string) (int64, error) {
	return l.counter.Get(ctx, dailyKey(resource, l.now().UTC()))
}

// RemainingToday reports the unused daily quota for resource.
func (l *Limiter) RemainingToday(ctx context.Context, resource string) (int64, error) {
	q, ok := l.quotas[resource]
	if !ok {
		return 0, fmt.Errorf("no daily quota for resource: %s", resource)
	}
	used, err := l.UsedToday(ctx, resource)
	if err != nil {
		return 0, err
	}
	remaining := int64(q.Ceiling) - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// WaitForSlot blocks until Check admits the resource, sleeping
// min(retryAfter, remaining budget) between attempts. Returns false when
// maxWait runs out without acquiring a slot.
func (l *Limiter) WaitForSlot(ctx context.Context, resource string, maxWait time.Duration) bool {
	deadline := l.now().Add(maxWait)
	for {
		err := l.Check(ctx, resource)
		if err == nil {
			return true
		}
		limitErr, ok := err.(*ErrLimitExceeded)
		if !ok {
			logger.S().Warnf("rate limit check for %s failed: %v", resource, err)
			return false
		}
		wait := limitErr.RetryAfter
		if budget := deadline.Sub(l.now()); wait > budget {
			wait = budget
		}
		if wait <= 0 {
			return false
		}
		logger.S().Infof("rate limited for %s, waiting %s", resource, wait)
		if err := l.sleep(ctx, wait); err != nil {
			return false
		}
	}
}

func windowKey(resource string, window time.Duration, now time.Time) string {
	bucket := now.Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%d", resource, bucket)
}

func dailyKey(resource string, nowUTC time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s", resource, nowUTC.Format("2006-01-02"))
}

func untilMidnightUTC(nowUTC time.Time) time.Duration {
	midnight := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return midnight.Sub(nowUTC)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
