package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/store"
)

func TestJobRetryLifecycle(t *testing.T) {
	e, clock := testEngine(t)

	job, err := e.EnqueueJob("fetch-banners", "", 3)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	// Attempt 1 fails: retry in 1m.
	claimed, _ := e.ClaimJob()
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claim = %+v", claimed)
	}
	updated, tr, err := e.FailJob(job.ID, "timeout")
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if tr.Status != policy.StatusFailed || !tr.AvailableAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("transition = %s @ %v, want failed @ %v", tr.Status, tr.AvailableAt, t0.Add(time.Minute))
	}
	if updated.Status != policy.StatusFailed || updated.LastError != "timeout" {
		t.Errorf("stored job = %+v", updated)
	}

	// Not released before the backoff elapses.
	clock.Advance(59 * time.Second)
	if n, _ := e.ReleaseDue(); n != 0 {
		t.Errorf("released %d early", n)
	}
	if j, _ := e.ClaimJob(); j != nil {
		t.Errorf("claimed failed job before release: %+v", j)
	}

	clock.Advance(time.Second)
	if n, _ := e.ReleaseDue(); n != 1 {
		t.Fatalf("released %d, want 1", n)
	}

	// Attempt 2 fails: retry in 2m.
	e.ClaimJob()
	now := clock.Now()
	_, tr, err = e.FailJob(job.ID, "timeout")
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if !tr.AvailableAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("second backoff = %v, want %v", tr.AvailableAt, now.Add(2*time.Minute))
	}

	// Attempt 3 fails: dead.
	clock.Advance(2 * time.Minute)
	e.ReleaseDue()
	claimed, _ = e.ClaimJob()
	if claimed == nil || claimed.Attempts != 3 {
		t.Fatalf("third claim = %+v", claimed)
	}
	updated, tr, err = e.FailJob(job.ID, "still broken")
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if tr.Status != policy.StatusDead || tr.AvailableAt != nil {
		t.Errorf("transition = %+v, want dead", tr)
	}
	if updated.Status != policy.StatusDead || updated.AvailableAt != nil {
		t.Errorf("stored job = %+v", updated)
	}

	clock.Advance(24 * time.Hour)
	if n, _ := e.ReleaseDue(); n != 0 {
		t.Errorf("released %d dead jobs", n)
	}
}

func TestCompleteJob(t *testing.T) {
	e, _ := testEngine(t)

	job, _ := e.EnqueueJob("fetch-banners", "", 0)
	if job.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want engine default 3", job.MaxAttempts)
	}

	e.ClaimJob()
	if err := e.CompleteJob(job.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got, _ := e.GetJob(job.ID)
	if got.Status != policy.StatusSucceeded {
		t.Errorf("Status = %q, want succeeded", got.Status)
	}
}

func TestFailJobErrors(t *testing.T) {
	e, _ := testEngine(t)

	if _, _, err := e.FailJob("missing", "x"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("missing job: err = %v, want ErrJobNotFound", err)
	}

	job, _ := e.EnqueueJob("fetch-banners", "", 3)
	if _, _, err := e.FailJob(job.ID, "x"); !errors.Is(err, store.ErrJobNotRunning) {
		t.Errorf("pending job: err = %v, want ErrJobNotRunning", err)
	}
}

func TestEnqueueJobValidation(t *testing.T) {
	e, _ := testEngine(t)

	if _, err := e.EnqueueJob("", "", 3); !errors.Is(err, policy.ErrInvalidArgument) {
		t.Errorf("empty kind: err = %v", err)
	}
	if _, err := e.EnqueueJob("k", "", -1); !errors.Is(err, policy.ErrInvalidArgument) {
		t.Errorf("negative max: err = %v", err)
	}
}

func TestGetJobMissing(t *testing.T) {
	e, _ := testEngine(t)

	if _, err := e.GetJob("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestStartRedeliveryReleasesOnStartup(t *testing.T) {
	e, clock := testEngine(t)

	job, _ := e.EnqueueJob("fetch-banners", "", 3)
	e.ClaimJob()
	e.FailJob(job.ID, "x")
	clock.Advance(time.Hour)

	e.StartRedelivery(time.Hour)
	e.Stop()
	e.Stop() // second Stop must not panic

	got, _ := e.GetJob(job.ID)
	if got.Status != policy.StatusPending {
		t.Errorf("Status = %q, want pending after startup release", got.Status)
	}
}
