package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/dsvikstrand/bleu/internal/metrics"
	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/store"
)

// ErrJobNotFound is returned when an operation names a job that does not exist.
var ErrJobNotFound = errors.New("job not found")

// Engine applies policy decisions to the store. It owns persistence and the
// clock; the policy package stays pure.
type Engine struct {
	DB           *store.DB
	Retry        policy.RetryPolicy
	RetentionCap int
	MaxAttempts  int
	Metrics      *metrics.Collector

	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an Engine with the default retry policy, a retention cap of 5
// and 3 attempts per job.
func New(db *store.DB) *Engine {
	return &Engine{
		DB:           db,
		Retry:        policy.DefaultRetryPolicy,
		RetentionCap: 5,
		MaxAttempts:  3,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// SetMetrics configures the decision metrics collector.
func (e *Engine) SetMetrics(m *metrics.Collector) {
	e.Metrics = m
}

// SetClock replaces the time source. Tests use it to pin "now".
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}
