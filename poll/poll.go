// Package poll waits for eventually-consistent conditions.
//
// An action reports "not yet" and "wrong" the same way, by returning an
// error. Await retries on a fixed interval and, once the attempt budget is
// spent, calls the action one last time outside the retry loop so the caller
// gets that call's own error instead of a generic timeout.
package poll

import (
	"errors"
	"time"
)

// Options bounds a wait. Zero values are valid: MaxAttempts 0 still runs the
// action once.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// OnAttempt, when set, observes every guarded attempt that failed.
	OnAttempt func(attempt int, err error)
}

var (
	MessageOptions      = Options{Interval: 100 * time.Millisecond, MaxAttempts: 100}
	APIOptions          = Options{Interval: 50 * time.Millisecond, MaxAttempts: 100}
	DatabaseOptions     = Options{Interval: 500 * time.Millisecond, MaxAttempts: 15}
	ManyMessagesOptions = Options{Interval: time.Second, MaxAttempts: 20}
)

// PermanentError stops a wait immediately.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Await returns the wrapped error
// as soon as it sees it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// sleep is swapped in tests.
var sleep = time.Sleep

// Await runs action until it returns nil or the budget is spent.
func Await(action func() error, opts Options) error {
	interval := opts.Interval
	if interval < 0 {
		interval = 0
	}
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := action()
		if err == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt, err)
		}
		sleep(interval)
	}
	err := action()
	var perm *PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// AwaitAsync runs Await on its own goroutine. The returned channel yields
// exactly one value and is then closed.
func AwaitAsync(action func() error, opts Options) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- Await(action, opts)
	}()
	return done
}

// Value is Await for actions that produce a result, e.g. an API read that
// must eventually match.
func Value[T any](action func() (T, error), opts Options) (T, error) {
	var out T
	err := Await(func() error {
		v, err := action()
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts)
	return out, err
}
