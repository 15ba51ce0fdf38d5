package store

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
)

func TestEnqueueAndGetJob(t *testing.T) {
	db := testDB(t)

	j, err := db.EnqueueJob("fetch-banners", `{"channel":"nutrition"}`, 3, t0)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if j.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := db.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil {
		t.Fatal("expected job, got nil")
	}
	if got.Status != policy.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Attempts != 0 || got.MaxAttempts != 3 {
		t.Errorf("attempts = %d/%d, want 0/3", got.Attempts, got.MaxAttempts)
	}
	if got.Payload != `{"channel":"nutrition"}` {
		t.Errorf("Payload = %q", got.Payload)
	}
	if got.AvailableAt == nil || *got.AvailableAt != t0.UnixMilli() {
		t.Errorf("AvailableAt = %v, want %d", got.AvailableAt, t0.UnixMilli())
	}
}

func TestEnqueueJobRejectsBadMaxAttempts(t *testing.T) {
	db := testDB(t)

	if _, err := db.EnqueueJob("x", "", 0, t0); err == nil {
		t.Error("expected error for max attempts 0")
	}
}

func TestGetJobMissing(t *testing.T) {
	db := testDB(t)

	j, err := db.GetJob("nope")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j != nil {
		t.Errorf("expected nil, got %+v", j)
	}
}

func TestClaimJob(t *testing.T) {
	db := testDB(t)

	first, _ := db.EnqueueJob("a", "", 3, t0)
	db.EnqueueJob("b", "", 3, t0.Add(time.Minute))

	j, err := db.ClaimJob(t0)
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if j == nil || j.ID != first.ID {
		t.Fatalf("claimed %+v, want %s", j, first.ID)
	}
	if j.Status != policy.StatusRunning || j.Attempts != 1 {
		t.Errorf("claimed job = %s/%d, want running/1", j.Status, j.Attempts)
	}

	// Second job is not yet due.
	j, err = db.ClaimJob(t0)
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if j != nil {
		t.Errorf("expected nothing due, got %+v", j)
	}

	j, _ = db.ClaimJob(t0.Add(time.Minute))
	if j == nil || j.Kind != "b" {
		t.Errorf("expected job b to be due, got %+v", j)
	}
}

func TestClaimJobConcurrentClaimersNeverShareAJob(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bleu.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	const jobs = 50
	for i := 0; i < jobs; i++ {
		if _, err := db.EnqueueJob("fetch", "", 3, t0); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < jobs*2; i++ {
				j, err := db.ClaimJob(t0)
				if err != nil {
					continue // busy; try again
				}
				if j == nil {
					return
				}
				mu.Lock()
				claimed[j.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Drain anything a worker gave up on.
	for {
		j, err := db.ClaimJob(t0)
		if err != nil {
			t.Fatalf("ClaimJob: %v", err)
		}
		if j == nil {
			break
		}
		claimed[j.ID]++
	}

	if len(claimed) != jobs {
		t.Errorf("claimed %d distinct jobs, want %d", len(claimed), jobs)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("job %s handed out %d times", id, n)
		}
	}

	running, err := db.ListJobs(policy.StatusRunning, jobs*2)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	for _, j := range running {
		if j.Attempts != 1 {
			t.Errorf("job %s attempts = %d, want 1", j.ID, j.Attempts)
		}
	}
}

func TestCompleteJob(t *testing.T) {
	db := testDB(t)

	j, _ := db.EnqueueJob("a", "", 3, t0)

	if err := db.CompleteJob(j.ID, t0); !errors.Is(err, ErrJobNotRunning) {
		t.Errorf("complete pending job: err = %v, want ErrJobNotRunning", err)
	}

	db.ClaimJob(t0)
	if err := db.CompleteJob(j.ID, t0.Add(time.Second)); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	got, _ := db.GetJob(j.ID)
	if got.Status != policy.StatusSucceeded {
		t.Errorf("Status = %q, want succeeded", got.Status)
	}
	if got.AvailableAt != nil {
		t.Errorf("AvailableAt = %v, want nil", *got.AvailableAt)
	}
}

func TestApplyTransitionFailedThenRelease(t *testing.T) {
	db := testDB(t)

	j, _ := db.EnqueueJob("a", "", 3, t0)
	db.ClaimJob(t0)

	retryAt := t0.Add(time.Minute)
	tr := policy.Transition{Status: policy.StatusFailed, AvailableAt: &retryAt}
	if err := db.ApplyTransition(j.ID, tr, "upstream 503", t0); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}

	got, _ := db.GetJob(j.ID)
	if got.Status != policy.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.AvailableAt == nil || *got.AvailableAt != retryAt.UnixMilli() {
		t.Errorf("AvailableAt = %v, want %d", got.AvailableAt, retryAt.UnixMilli())
	}
	if got.LastError != "upstream 503" {
		t.Errorf("LastError = %q", got.LastError)
	}

	// Not yet due.
	n, err := db.ReleaseDueJobs(t0.Add(30 * time.Second))
	if err != nil {
		t.Fatalf("ReleaseDueJobs: %v", err)
	}
	if n != 0 {
		t.Errorf("released %d before due, want 0", n)
	}

	n, _ = db.ReleaseDueJobs(retryAt)
	if n != 1 {
		t.Errorf("released %d at due time, want 1", n)
	}

	claimed, _ := db.ClaimJob(retryAt)
	if claimed == nil || claimed.ID != j.ID || claimed.Attempts != 2 {
		t.Errorf("reclaimed %+v, want %s with 2 attempts", claimed, j.ID)
	}
}

func TestApplyTransitionDead(t *testing.T) {
	db := testDB(t)

	j, _ := db.EnqueueJob("a", "", 1, t0)
	db.ClaimJob(t0)

	if err := db.ApplyTransition(j.ID, policy.Transition{Status: policy.StatusDead}, "boom", t0); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}

	got, _ := db.GetJob(j.ID)
	if got.Status != policy.StatusDead {
		t.Errorf("Status = %q, want dead", got.Status)
	}
	if got.AvailableAt != nil {
		t.Errorf("AvailableAt = %d, want nil", *got.AvailableAt)
	}

	// Dead jobs are never released.
	n, _ := db.ReleaseDueJobs(t0.AddDate(1, 0, 0))
	if n != 0 {
		t.Errorf("released %d dead jobs, want 0", n)
	}
}

func TestApplyTransitionRequiresRunning(t *testing.T) {
	db := testDB(t)

	j, _ := db.EnqueueJob("a", "", 3, t0)
	err := db.ApplyTransition(j.ID, policy.Transition{Status: policy.StatusDead}, "", t0)
	if !errors.Is(err, ErrJobNotRunning) {
		t.Errorf("err = %v, want ErrJobNotRunning", err)
	}
}

func TestListAndCountJobs(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		db.EnqueueJob("a", "", 3, t0.Add(time.Duration(i)*time.Second))
	}
	db.ClaimJob(t0.Add(time.Hour))

	all, err := db.ListJobs("", 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d jobs, want 3", len(all))
	}

	pending, _ := db.ListJobs(policy.StatusPending, 10)
	if len(pending) != 2 {
		t.Errorf("got %d pending jobs, want 2", len(pending))
	}

	limited, _ := db.ListJobs("", 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}

	counts, err := db.CountJobsByStatus()
	if err != nil {
		t.Fatalf("CountJobsByStatus: %v", err)
	}
	if counts[policy.StatusPending] != 2 || counts[policy.StatusRunning] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
