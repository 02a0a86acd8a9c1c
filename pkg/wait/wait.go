// Package wait implements the bounded polling loop behind every
// eventually-consistent assertion and actionability check.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// Defaults for Options.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInitial  = 50 * time.Millisecond
	DefaultMax      = 500 * time.Millisecond
	multiplier      = 1.5
	randomizeFactor = 0.2
)

// Options configures a polling loop.
type Options struct {
	Timeout time.Duration // Total window; zero means DefaultTimeout
	Initial time.Duration // First delay between checks
	Max     time.Duration // Delay cap
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Initial <= 0 {
		o.Initial = DefaultInitial
	}
	if o.Max <= 0 {
		o.Max = DefaultMax
	}
	if o.Max < o.Initial {
		o.Max = o.Initial
	}
	return o
}

// CheckFunc is evaluated until it reports done. A non-nil error is
// remembered and the check retried, unless it is wrapped with Permanent.
type CheckFunc func(ctx context.Context) (bool, error)

// TimeoutError is returned when the window elapses without success.
type TimeoutError struct {
	Timeout time.Duration
	Checks  int
	Last    error // Last error seen from the check, if any
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("timed out after %s (%d checks): %v", e.Timeout, e.Checks, e.Last)
	}
	return fmt.Sprintf("timed out after %s (%d checks)", e.Timeout, e.Checks)
}

func (e *TimeoutError) Unwrap() error { return e.Last }

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable: Until stops and returns it as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTimeout reports whether err came from an elapsed polling window.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Until polls check until it returns true, a permanent error occurs, ctx is
// done or the timeout elapses. The check always runs at least once, even
// with an already expired window.
func Until(ctx context.Context, opts Options, check CheckFunc) error {
	opts = opts.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.Initial
	b.MaxInterval = opts.Max
	b.Multiplier = multiplier
	b.RandomizationFactor = randomizeFactor
	b.MaxElapsedTime = 0 // the deadline below bounds the loop
	b.Reset()

	deadline := time.Now().Add(opts.Timeout)
	checks := 0
	var last error

	for {
		checks++
		done, err := check(ctx)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			last = err
		} else if done {
			return nil
		} else {
			last = nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &TimeoutError{Timeout: opts.Timeout, Checks: checks, Last: last}
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop || delay > remaining {
			delay = remaining
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
