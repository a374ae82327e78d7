package reconcile

import (
	"context"
	"time"

	"registrar/internal/config"
	"registrar/internal/nocodb"
)

// Retry is a bounded exponential backoff for transient store errors.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryFromConfig reads the [sync] retry settings.
func RetryFromConfig(cfg *config.Config) Retry {
	base, maxDelay := cfg.RetryDelays()
	return Retry{Attempts: cfg.Sync.RetryAttempts, BaseDelay: base, MaxDelay: maxDelay}
}

// Do runs fn until it succeeds, fails permanently or attempts run out. It
// returns the number of attempts made.
func (r Retry) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !nocodb.IsTransient(err) || attempt == attempts {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		delay := r.Delay(attempt)
		if hint := nocodb.RetryAfterHint(err); hint > delay {
			delay = r.capped(hint)
		}
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return attempt, err
		}
	}
	return attempts, err
}

// Delay returns the wait after the given 1-based attempt: base, 2*base,
// 4*base and so on, capped at MaxDelay.
func (r Retry) Delay(attempt int) time.Duration {
	if r.BaseDelay <= 0 {
		return 0
	}
	delay := r.BaseDelay
	for i := 1; i < attempt; i++ {
		if r.MaxDelay > 0 && delay > r.MaxDelay/2 {
			return r.MaxDelay
		}
		delay *= 2
	}
	return r.capped(delay)
}

func (r Retry) capped(d time.Duration) time.Duration {
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

func (r Retry) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
