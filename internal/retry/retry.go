// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // wait before the second attempt
	MaxDelay     time.Duration // cap for a single wait
	Multiplier   float64
	Jitter       float64 // randomization factor in [0,1); 0 keeps waits deterministic
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	return c
}

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, wait time.Duration)

// Permanent marks err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the attempts are
// used up, or ctx ends. It reports how many times fn ran. A permanent error is
// returned unwrapped.
func Do(ctx context.Context, cfg Config, fn func() error, notify Notify) (int, error) {
	cfg = cfg.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialDelay
	eb.MaxInterval = cfg.MaxDelay
	eb.Multiplier = cfg.Multiplier
	eb.RandomizationFactor = cfg.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1)), ctx)

	attempts := 0
	op := func() error {
		attempts++
		return fn()
	}
	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) { notify(err, wait) }
	}
	err := backoff.RetryNotify(op, b, n)
	return attempts, err
}
