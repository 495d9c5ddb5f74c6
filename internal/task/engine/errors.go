package engine

import (
	"errors"
	"time"
)

var (
	ErrDisabled    = errors.New("task engine disabled")
	ErrStopped     = errors.New("task engine stopped")
	ErrStopping    = errors.New("task engine stopping")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("task skipped: previous run still active")
)

// NoRetry marks err as permanent: the engine records it and does not
// schedule another attempt. Reminder fires use it so a phase is delivered
// at most once.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

func IsNoRetry(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type permanentError struct{ error }

func (e *permanentError) Error() string { return "no-retry: " + e.error.Error() }
func (e *permanentError) Unwrap() error { return e.error }

// RetryAfterError suggests how long to wait before the next attempt. The
// hint is capped by TaskOptions.RetryMaxDelay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return &delayedError{error: err, after: max(after, 0)}
}

type delayedError struct {
	error
	after time.Duration
}

func (e *delayedError) Error() string             { return "retry after " + e.after.String() + ": " + e.error.Error() }
func (e *delayedError) Unwrap() error             { return e.error }
func (e *delayedError) RetryAfter() time.Duration { return e.after }
