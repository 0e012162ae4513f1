package loracache

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy wraps network calls: wait = Multiplier * 2^attempt seconds,
// clamped to [MinWait, MaxWait], until Deadline has elapsed. The last error
// is returned once the budget is spent.
type RetryPolicy struct {
	Multiplier float64
	MinWait    time.Duration
	MaxWait    time.Duration
	Deadline   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Multiplier: 1,
		MinWait:    4 * time.Second,
		MaxWait:    10 * time.Second,
		Deadline:   120 * time.Second,
	}
}

type policyBackOff struct {
	policy  RetryPolicy
	attempt int
	started time.Time
	now     func() time.Time
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
	b.started = b.now()
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++

	wait := time.Duration(b.policy.Multiplier * math.Pow(2, float64(b.attempt)) * float64(time.Second))
	if wait < b.policy.MinWait {
		wait = b.policy.MinWait
	}
	if b.policy.MaxWait > 0 && wait > b.policy.MaxWait {
		wait = b.policy.MaxWait
	}

	if b.policy.Deadline > 0 && b.now().Sub(b.started)+wait > b.policy.Deadline {
		return backoff.Stop
	}

	return wait
}

func (p RetryPolicy) backOff() *policyBackOff {
	b := &policyBackOff{policy: p, now: time.Now}
	b.Reset()

	return b
}

// Do runs fn until it succeeds, returns a permanent error, the context ends
// or the deadline is spent.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying")
	}

	return backoff.RetryNotify(fn, backoff.WithContext(p.backOff(), ctx), notify)
}

// Retry is Do for functions returning a value.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, op, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})

	return result, err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return backoff.Permanent(err)
}
