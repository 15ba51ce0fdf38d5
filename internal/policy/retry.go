package policy

import (
	"fmt"
	"time"
)

// Status is a job lifecycle state. FailureTransition only ever returns
// StatusFailed or StatusDead; the rest belong to the job runner.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDead      Status = "dead"
)

// Transition is the next intended state of a job that just failed.
// AvailableAt is set if and only if Status is StatusFailed.
type Transition struct {
	Status      Status     `json:"status"`
	AvailableAt *time.Time `json:"available_at"`
}

// RetryPolicy is a capped exponential backoff: Base for the first attempt,
// doubling per attempt, never above Max.
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultRetryPolicy waits 1m after the first failure, 2m, 4m, ... up to 1h.
var DefaultRetryPolicy = RetryPolicy{Base: time.Minute, Max: time.Hour}

// Backoff returns the delay before a job that has failed attempts times may
// run again. It is strictly positive and non-decreasing in attempts.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Minute
	}
	ceiling := p.Max
	if ceiling < base {
		ceiling = base
	}

	d := base
	for i := 1; i < attempts; i++ {
		if d >= ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	return min(d, ceiling)
}

// FailureTransition decides what happens to a job after its attempts-th
// attempt failed. Once attempts reaches maxAttempts the job is dead for any
// now; otherwise it is failed and may be redelivered at now+Backoff(attempts).
func (p RetryPolicy) FailureTransition(attempts, maxAttempts int, now time.Time) (Transition, error) {
	if maxAttempts <= 0 {
		return Transition{}, fmt.Errorf("%w: maxAttempts must be positive, got %d", ErrInvalidArgument, maxAttempts)
	}
	if attempts < 0 {
		return Transition{}, fmt.Errorf("%w: attempts must not be negative, got %d", ErrInvalidArgument, attempts)
	}

	if attempts >= maxAttempts {
		return Transition{Status: StatusDead}, nil
	}
	at := now.Add(p.Backoff(attempts))
	return Transition{Status: StatusFailed, AvailableAt: &at}, nil
}

// FailureTransition applies DefaultRetryPolicy.
func FailureTransition(attempts, maxAttempts int, now time.Time) (Transition, error) {
	return DefaultRetryPolicy.FailureTransition(attempts, maxAttempts, now)
}
