// Package worker runs the periodic write-behind jobs that drain the audit
// queues into their backends.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Job is one periodic flush.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Interval time.Duration
	Logger   zerolog.Logger
}

// Manager runs registered jobs every interval on a single goroutine.
type Manager struct {
	deps Dependencies

	mu   sync.Mutex
	jobs []Job

	lastWrite atomic.Int64
	runs      atomic.Int64
	wg        sync.WaitGroup
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Interval <= 0 {
		deps.Interval = 2 * time.Second
	}
	return &Manager{deps: deps}
}

// Add registers a job. Jobs run in registration order.
func (m *Manager) Add(name string, run func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, Job{Name: name, Run: run})
}

// RunOnce runs every job once and returns the first error. A failing job
// does not stop the ones after it.
func (m *Manager) RunOnce(ctx context.Context) error {
	m.mu.Lock()
	jobs := append([]Job(nil), m.jobs...)
	m.mu.Unlock()

	start := time.Now()
	var first error
	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			m.deps.Logger.Error().Err(err).Str("job", job.Name).Msg("Flush failed")
			if first == nil {
				first = fmt.Errorf("%s: %w", job.Name, err)
			}
		}
	}
	m.lastWrite.Store(int64(time.Since(start)))
	m.runs.Add(1)
	return first
}

// Start runs the jobs every interval until ctx is done, then runs them a
// final time so nothing queued is lost.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// ctx is already cancelled; the final pass gets its own deadline
				final, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				_ = m.RunOnce(final)
				cancel()
				m.deps.Logger.Debug().Msg("Worker stopped")
				return
			case <-ticker.C:
				_ = m.RunOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the goroutine started by Start has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Runs returns how many flush cycles have completed.
func (m *Manager) Runs() int64 {
	return m.runs.Load()
}

// GetLastWriteDuration returns the duration of the last flush cycle.
func (m *Manager) GetLastWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}
