package job

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"sitecheck/internal/checker"
	"sitecheck/internal/clock/system"
	"sitecheck/internal/id/uuid"
	"sitecheck/internal/logging"
	"sitecheck/internal/metrics"
)

// sessionTimeout expires UI heartbeat sessions that stopped reporting.
const sessionTimeout = 10 * time.Second

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Snapshot is the public status view of one job.
type Snapshot struct {
	ID            string `json:"id"`
	Status        Status `json:"status"`
	QueuePosition int    `json:"queue_position"`
	Total         int    `json:"total"`
	Completed     int    `json:"completed"`
	Error         string `json:"error,omitempty"`
	HasResults    bool   `json:"has_results"`
}

// Stats summarizes manager-wide load.
type Stats struct {
	ActiveUsers   int `json:"active_users"`
	Running       int `json:"running"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Manager owns every job for its lifetime. It admits at most maxConcurrent
// jobs into the running state; the rest wait in FIFO order. All shared
// state lives under one mutex so admission decisions are atomic with
// respect to concurrent create/complete/stop calls.
type Manager struct {
	mu            sync.Mutex
	jobs          map[string]*Job
	queue         []string
	maxConcurrent int
	sessions      map[string]time.Time
	clock         Clock
	ids           *uuid.Generator
	logger        *zap.Logger
}

// NewManager builds a Manager with the given global running-jobs bound.
func NewManager(maxConcurrent int, logger *zap.Logger) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		jobs:          make(map[string]*Job),
		maxConcurrent: maxConcurrent,
		sessions:      make(map[string]time.Time),
		clock:         system.New(),
		ids:           uuid.New(),
		logger:        logger,
	}
}

// Create registers a new job at the end of the queue and attempts
// admission. Runtime options are clamped before use.
func (m *Manager) Create(urls []string, opts checker.CheckOptions, runtime checker.RuntimeOptions) *Job {
	id := m.ids.NewID()
	j := newJob(id, urls, opts, runtime, m.onJobComplete, logging.ForJob(m.logger, id))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id] = j
	m.queue = append(m.queue, id)
	m.updatePositionsLocked()
	m.admitLocked()

	m.logger.Info("job created",
		zap.String("job_id", id),
		zap.Int("urls", len(urls)),
		zap.Int("queue_position", j.QueuePosition()),
	)
	return j
}

// Get returns the job or nil when the id is unknown.
func (m *Manager) Get(id string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

// Stop requests cancellation. A still-queued job is removed from the FIFO
// and finalized immediately; a running job stops cooperatively at its next
// URL boundary. Returns false for an unknown id.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return false
	}
	j.Cancel()

	for i, queued := range m.queue {
		if queued == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			j.markStopped()
			metrics.ObserveJob(string(StatusStopped))
			break
		}
	}
	m.updatePositionsLocked()
	m.admitLocked()

	m.logger.Info("job stop requested", zap.String("job_id", id))
	return true
}

// StatusSnapshot renders the public view of a job.
func (m *Manager) StatusSnapshot(j *Job) Snapshot {
	return Snapshot{
		ID:            j.ID,
		Status:        j.Status(),
		QueuePosition: j.QueuePosition(),
		Total:         j.Total(),
		Completed:     j.Completed(),
		Error:         j.Err(),
		HasResults:    j.HasResults(),
	}
}

// Results returns the job's rows sorted by original submission index, or
// nil when the id is unknown. A known job with no rows yet yields an empty
// non-nil slice.
func (m *Manager) Results(id string) []checker.Row {
	j := m.Get(id)
	if j == nil {
		return nil
	}
	rows := j.Rows()
	if rows == nil {
		rows = []checker.Row{}
	}
	return rows
}

// Heartbeat records activity for a UI session.
func (m *Manager) Heartbeat(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = m.clock.Now()
}

// GetStats returns current load numbers.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupSessionsLocked()
	return Stats{
		ActiveUsers:   len(m.sessions),
		Running:       m.runningLocked(),
		Queued:        len(m.queue),
		MaxConcurrent: m.maxConcurrent,
	}
}

// onJobComplete is the single completion notification; it frees a running
// slot, so admission runs again.
func (m *Manager) onJobComplete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admitLocked()
	m.logger.Debug("job completion processed", zap.String("job_id", id))
}

func (m *Manager) runningLocked() int {
	running := 0
	for _, j := range m.jobs {
		if j.Status() == StatusRunning {
			running++
		}
	}
	return running
}

// admitLocked starts queued jobs from the front of the FIFO while under the
// running bound. Caller must hold m.mu.
func (m *Manager) admitLocked() {
	running := m.runningLocked()
	for running < m.maxConcurrent && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]
		j := m.jobs[id]
		if j == nil || j.Status() != StatusQueued {
			// Stopped or otherwise finalized while waiting; drop it.
			m.updatePositionsLocked()
			continue
		}
		j.markRunning()
		j.start()
		running++
		m.updatePositionsLocked()
	}
	metrics.SetRunningJobs(running)
	metrics.SetQueuedJobs(len(m.queue))
}

// updatePositionsLocked recomputes 1-based queue ranks. Caller must hold
// m.mu.
func (m *Manager) updatePositionsLocked() {
	for i, id := range m.queue {
		if j := m.jobs[id]; j != nil && j.Status() == StatusQueued {
			j.setQueuePosition(i + 1)
		}
	}
}

func (m *Manager) cleanupSessionsLocked() {
	cutoff := m.clock.Now().Add(-sessionTimeout)
	for id, last := range m.sessions {
		if last.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
