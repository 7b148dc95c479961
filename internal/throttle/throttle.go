// Package throttle paces successive catalog mutations.
package throttle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Throttle is called once after every attempted mutation.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Mode selects a Throttle implementation.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeTokenBucket Mode = "token_bucket"
	ModeNone        Mode = "none"
)

// Config configures the throttle between mutation calls.
type Config struct {
	Mode    Mode `yaml:"mode" mapstructure:"mode"`
	DelayMS int  `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// DefaultDelay is the pause between two mutation calls.
const DefaultDelay = 120 * time.Millisecond

// New builds the throttle described by cfg.
func New(cfg Config) (Throttle, error) {
	delay := DefaultDelay
	if cfg.DelayMS > 0 {
		delay = time.Duration(cfg.DelayMS) * time.Millisecond
	}
	switch cfg.Mode {
	case "", ModeFixed:
		return NewFixedDelay(delay, nil), nil
	case ModeTokenBucket:
		return NewTokenBucket(delay), nil
	case ModeNone:
		return None{}, nil
	default:
		return nil, eris.Errorf("throttle: unknown mode %q", cfg.Mode)
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// FixedDelay pauses for the same duration after every call.
type FixedDelay struct {
	delay time.Duration
	sleep Sleeper
}

// NewFixedDelay creates a FixedDelay. A nil sleeper uses real timers.
func NewFixedDelay(delay time.Duration, sleeper Sleeper) *FixedDelay {
	if sleeper == nil {
		sleeper = timerSleeper{}
	}
	return &FixedDelay{delay: delay, sleep: sleeper}
}

// Wait sleeps for the configured delay.
func (f *FixedDelay) Wait(ctx context.Context) error {
	return f.sleep.Sleep(ctx, f.delay)
}

// TokenBucket spaces calls at least one interval apart without sleeping
// when the previous call was already long enough ago.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows one call per interval with a burst of one.
func NewTokenBucket(interval time.Duration) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the bucket has a token.
func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// None never waits. Used in tests and for dry runs against fakes.
type None struct{}

// Wait returns immediately unless ctx is already done.
func (None) Wait(ctx context.Context) error {
	return ctx.Err()
}
