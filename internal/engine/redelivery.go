package engine

// Redelivery:
//   - failed jobs return to pending once available_at <= now
//   - dead jobs are never released; they wait for manual inspection
//   - runs on server startup + every worker.redelivery_interval
//   - the release UPDATE is idempotent, so several servers may share a DB

import (
	"log"
	"time"
)

// ReleaseDue releases every failed job whose backoff has elapsed.
func (e *Engine) ReleaseDue() (int, error) {
	n, err := e.DB.ReleaseDueJobs(e.now())
	if err != nil {
		return 0, err
	}
	e.Metrics.Redelivered(n)
	return n, nil
}

// StartRedelivery runs ReleaseDue on startup and then every interval.
func (e *Engine) StartRedelivery(interval time.Duration) {
	e.releaseAndLog()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.releaseAndLog()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) releaseAndLog() {
	if n, err := e.ReleaseDue(); err != nil {
		log.Printf("redelivery error: %v", err)
	} else if n > 0 {
		log.Printf("redelivery: released %d jobs", n)
	}
}
