package review

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// ErrInvalidTransition is returned when a run is moved out of order.
var ErrInvalidTransition = errors.New("invalid review run transition")

// Run tracks one review through pending, running and a terminal status.
// Terminal statuses are final and a run cannot be restarted.
type Run struct {
	mu       sync.Mutex
	status   models.ReviewStatus
	started  time.Time
	finished time.Time
}

// NewRun creates a pending run.
func NewRun() *Run {
	return &Run{status: models.StatusPending}
}

// Start moves a pending run to running.
func (r *Run) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.status, models.StatusRunning)
	}
	r.status = models.StatusRunning
	r.started = time.Now()
	return nil
}

// Finish moves a running run to a terminal status.
func (r *Run) Finish(status models.ReviewStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.StatusRunning || !status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.status, status)
	}
	r.status = status
	r.finished = time.Now()
	return nil
}

func (r *Run) Status() models.ReviewStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Duration is the time spent running, up to now if not finished.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.started.IsZero():
		return 0
	case r.finished.IsZero():
		return time.Since(r.started)
	default:
		return r.finished.Sub(r.started)
	}
}

// ComputeStatus derives the run status from the non-summary agent results:
// failed when none succeeded, partial when some failed, completed otherwise.
func ComputeStatus(results []models.AgentResult) models.ReviewStatus {
	succeeded := 0
	for _, r := range results {
		if r.Succeeded {
			succeeded++
		}
	}
	switch {
	case succeeded == 0:
		return models.StatusFailed
	case succeeded < len(results):
		return models.StatusPartial
	default:
		return models.StatusCompleted
	}
}
