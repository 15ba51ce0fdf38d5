package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/store"
)

// EnqueueJob adds a pending job. maxAttempts of 0 uses the engine default.
func (e *Engine) EnqueueJob(kind, payload string, maxAttempts int) (*store.Job, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: job kind is required", policy.ErrInvalidArgument)
	}
	if maxAttempts == 0 {
		maxAttempts = e.MaxAttempts
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("%w: maxAttempts must be positive, got %d", policy.ErrInvalidArgument, maxAttempts)
	}
	return e.DB.EnqueueJob(kind, payload, maxAttempts, e.now())
}

// ClaimJob hands out the oldest due job, or nil if none is due.
func (e *Engine) ClaimJob() (*store.Job, error) {
	return e.DB.ClaimJob(e.now())
}

// CompleteJob marks a claimed job as succeeded.
func (e *Engine) CompleteJob(id string) error {
	if err := e.DB.CompleteJob(id, e.now()); err != nil {
		return err
	}
	e.Metrics.Succeeded()
	return nil
}

// FailJob records a failed attempt and persists the retry decision: the job
// is rescheduled with backoff, or dead once its attempts are exhausted.
func (e *Engine) FailJob(id, reason string) (*store.Job, policy.Transition, error) {
	job, err := e.DB.GetJob(id)
	if err != nil {
		return nil, policy.Transition{}, err
	}
	if job == nil {
		return nil, policy.Transition{}, fmt.Errorf("fail job %s: %w", id, ErrJobNotFound)
	}
	if job.Status != policy.StatusRunning {
		return nil, policy.Transition{}, fmt.Errorf("fail job %s (status %s): %w", id, job.Status, store.ErrJobNotRunning)
	}

	now := e.now()
	tr, err := e.Retry.FailureTransition(job.Attempts, job.MaxAttempts, now)
	if err != nil {
		return nil, policy.Transition{}, err
	}
	if err := e.DB.ApplyTransition(id, tr, reason, now); err != nil {
		return nil, policy.Transition{}, err
	}

	var delay time.Duration
	if tr.AvailableAt != nil {
		delay = tr.AvailableAt.Sub(now)
	}
	e.Metrics.Transition(string(tr.Status), delay)
	if tr.Status == policy.StatusDead {
		log.Printf("job %s (%s) dead after %d attempts: %s", id, job.Kind, job.Attempts, reason)
	}

	updated, err := e.DB.GetJob(id)
	if err != nil {
		return nil, tr, err
	}
	return updated, tr, nil
}

// GetJob returns a job by ID.
func (e *Engine) GetJob(id string) (*store.Job, error) {
	job, err := e.DB.GetJob(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	return job, nil
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
