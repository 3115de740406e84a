// Package job implements the batch execution engine: one Job runs the check
// pipeline over its URL list under a concurrency cap, and the Manager
// serializes whole jobs through a FIFO queue.
package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"sitecheck/internal/checker"
	"sitecheck/internal/metrics"
)

// Status is the lifecycle state of a job.
type Status string

// Job states. Completed, Error and Stopped are terminal; no transition
// leaves a terminal state.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusStopped:
		return true
	default:
		return false
	}
}

type indexedRow struct {
	index int
	row   checker.Row
}

// Job owns one batch of URLs and their results. Shared fields are guarded
// by mu; the cancel flag is polled cooperatively at the URL boundaries, so a
// stop request takes effect no later than the next URL, never mid-fetch.
type Job struct {
	ID        string
	CreatedAt time.Time

	urls    []string
	opts    checker.CheckOptions
	runtime checker.RuntimeOptions

	mu        sync.Mutex
	status    Status
	queuePos  int
	completed int
	results   []indexedRow
	errText   string

	cancelled  atomic.Bool
	onComplete func(id string)
	notifyOnce sync.Once
	logger     *zap.Logger
}

func newJob(id string, urls []string, opts checker.CheckOptions, runtime checker.RuntimeOptions, onComplete func(string), logger *zap.Logger) *Job {
	return &Job{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		urls:       urls,
		opts:       opts,
		runtime:    runtime.Clamp(),
		status:     StatusQueued,
		onComplete: onComplete,
		logger:     logger,
	}
}

// Total returns the number of URLs in the batch.
func (j *Job) Total() int {
	return len(j.urls)
}

// Status returns the current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Completed returns the count of finished URLs. Monotonic, never exceeds
// Total.
func (j *Job) Completed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completed
}

// QueuePosition returns the 1-based rank among queued jobs, 0 when the job
// is not waiting in the queue.
func (j *Job) QueuePosition() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.queuePos
}

// Err returns the terminal error text, empty unless the job driver failed.
func (j *Job) Err() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errText
}

// HasResults reports whether any row has been committed yet.
func (j *Job) HasResults() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.results) > 0
}

// Cancel sets the cooperative cancel flag. In-flight URLs run to
// completion; no new URL starts afterward.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether a stop was requested.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Rows returns the committed rows sorted by original submission index.
func (j *Job) Rows() []checker.Row {
	j.mu.Lock()
	defer j.mu.Unlock()
	sorted := make([]indexedRow, len(j.results))
	copy(sorted, j.results)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].index < sorted[b].index
	})
	rows := make([]checker.Row, len(sorted))
	for i, item := range sorted {
		rows[i] = item.row
	}
	return rows
}

// Options returns the job's check configuration.
func (j *Job) Options() checker.CheckOptions {
	return j.opts
}

// setQueuePosition is called by the Manager under its own lock.
func (j *Job) setQueuePosition(pos int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.queuePos = pos
}

// markRunning transitions queued → running. The Manager calls this before
// launching the run goroutine so its running count stays accurate.
func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.queuePos = 0
}

// markStopped finalizes a job that was cancelled while still queued and
// never got a goroutine.
func (j *Job) markStopped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.status = StatusStopped
	j.queuePos = 0
}

// start launches the execution goroutine. Must only be called once, by the
// Manager, after markRunning.
func (j *Job) start() {
	go j.run()
}

func (j *Job) run() {
	defer j.finish()

	fetcher := checker.NewFetcher(j.runtime, j.logger)
	pipeline := checker.NewPipeline(fetcher, j.opts, j.logger)
	sem := semaphore.NewWeighted(int64(j.runtime.Concurrency))
	ctx := context.Background()

	var wg sync.WaitGroup
	for idx, raw := range j.urls {
		if j.Cancelled() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if j.Cancelled() {
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func(idx int, raw string) {
			defer wg.Done()
			defer sem.Release(1)
			started := time.Now()
			row := pipeline.Run(ctx, raw)
			metrics.ObserveURLDuration(time.Since(started))
			metrics.ObserveURL(urlOutcome(row))
			j.commit(idx, row)
		}(idx, raw)
	}
	wg.Wait()
}

// finish decides the terminal state, records it exactly once and fires the
// completion notification the Manager uses to advance its queue.
func (j *Job) finish() {
	if rec := recover(); rec != nil {
		j.mu.Lock()
		j.errText = fmt.Sprintf("job driver failure: %v", rec)
		j.mu.Unlock()
		j.logger.Error("job driver panicked", zap.Any("panic", rec))
	}

	j.mu.Lock()
	if !j.status.IsTerminal() {
		switch {
		case j.errText != "":
			j.status = StatusError
		case j.Cancelled():
			j.status = StatusStopped
		default:
			j.status = StatusCompleted
		}
	}
	status := j.status
	j.mu.Unlock()

	metrics.ObserveJob(string(status))
	j.logger.Info("job finished",
		zap.String("status", string(status)),
		zap.Int("total", j.Total()),
		zap.Int("completed", j.Completed()),
	)
	j.notify()
}

func (j *Job) notify() {
	j.notifyOnce.Do(func() {
		if j.onComplete != nil {
			j.onComplete(j.ID)
		}
	})
}

func (j *Job) commit(idx int, row checker.Row) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, indexedRow{index: idx, row: row})
	j.completed++
}

func urlOutcome(row checker.Row) string {
	switch row[checker.ColStatusCode] {
	case checker.MarkInvalidAddress:
		return "invalid"
	case checker.MarkNoResponse:
		return "no_response"
	default:
		return "checked"
	}
}
