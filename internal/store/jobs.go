package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/google/uuid"
)

// ErrJobNotRunning is returned when a completion or failure is reported for a
// job that is not currently claimed.
var ErrJobNotRunning = errors.New("job not running")

// Job is a background ingestion job and its retry state.
type Job struct {
	ID          string
	Kind        string
	Payload     string
	Status      policy.Status
	Attempts    int
	MaxAttempts int
	AvailableAt *int64
	LastError   string
	CreatedAt   int64
	UpdatedAt   int64
}

const jobColumns = `id, kind, payload, status, attempts, max_attempts, available_at, COALESCE(last_error, ''), created_at, updated_at`

// EnqueueJob inserts a pending job that is immediately available.
func (db *DB) EnqueueJob(kind, payload string, maxAttempts int, now time.Time) (*Job, error) {
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("enqueue job: max attempts must be positive, got %d", maxAttempts)
	}

	ts := now.UnixMilli()
	job := &Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     payload,
		Status:      policy.StatusPending,
		MaxAttempts: maxAttempts,
		AvailableAt: &ts,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	_, err := db.Exec(`
		INSERT INTO jobs (id, kind, payload, status, attempts, max_attempts, available_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)
	`, job.ID, kind, payload, string(job.Status), maxAttempts, ts, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// GetJob returns a job by ID, or nil if it does not exist.
func (db *DB) GetJob(id string) (*Job, error) {
	row := db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns jobs newest first. An empty status lists every job.
func (db *DB) ListJobs(status policy.Status, limit int) ([]Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = db.Query(`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
	} else {
		rows, err = db.Query(`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC, id LIMIT ?`, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ClaimJob moves the oldest due pending job to running and counts the
// attempt. Returns nil when nothing is due.
func (db *DB) ClaimJob(now time.Time) (*Job, error) {
	ts := now.UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`
		SELECT id FROM jobs
		WHERE status = 'pending' AND (available_at IS NULL OR available_at <= ?)
		ORDER BY available_at, created_at, id
		LIMIT 1
	`, ts).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select due job: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, ts, id)
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}
	if claimed == 0 {
		// Another claimer took it first.
		return nil, nil
	}

	j, err := scanJob(tx.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload job %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return j, nil
}

// CompleteJob marks a running job as succeeded.
func (db *DB) CompleteJob(id string, now time.Time) error {
	result, err := db.Exec(`
		UPDATE jobs SET status = 'succeeded', available_at = NULL, last_error = NULL, updated_at = ?
		WHERE id = ? AND status = 'running'
	`, now.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("complete job %s: %w", id, ErrJobNotRunning)
	}
	return nil
}

// ApplyTransition persists a failure decision for a running job.
func (db *DB) ApplyTransition(id string, tr policy.Transition, lastError string, now time.Time) error {
	var availableAt *int64
	if tr.AvailableAt != nil {
		ms := tr.AvailableAt.UnixMilli()
		availableAt = &ms
	}

	result, err := db.Exec(`
		UPDATE jobs SET status = ?, available_at = ?, last_error = NULLIF(?, ''), updated_at = ?
		WHERE id = ? AND status = 'running'
	`, string(tr.Status), availableAt, lastError, now.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("apply transition %s: %w", id, ErrJobNotRunning)
	}
	return nil
}

// ReleaseDueJobs returns failed jobs whose available_at has passed to the
// pending queue. Dead jobs are never released.
func (db *DB) ReleaseDueJobs(now time.Time) (int, error) {
	ts := now.UnixMilli()
	result, err := db.Exec(`
		UPDATE jobs SET status = 'pending', updated_at = ?
		WHERE status = 'failed' AND available_at IS NOT NULL AND available_at <= ?
	`, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("release due jobs: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// CountJobsByStatus returns the number of jobs in each status.
func (db *DB) CountJobsByStatus() (map[policy.Status]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[policy.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[policy.Status(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var status string
	if err := row.Scan(&j.ID, &j.Kind, &j.Payload, &status, &j.Attempts, &j.MaxAttempts,
		&j.AvailableAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = policy.Status(status)
	return &j, nil
}
