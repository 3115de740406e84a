package job

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sitecheck/internal/checker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedServer blocks every request until release is closed.
func gatedServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(srv.Close)
	var once sync.Once
	return srv, func() { once.Do(func() { close(release) }) }
}

func gatedRuntime() checker.RuntimeOptions {
	// Generous timeout so a gated request never times out mid-test.
	return checker.RuntimeOptions{TimeoutSeconds: 120, Retries: 0, Concurrency: 1}
}

func TestManagerAdmitsUpToBound(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	a := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	b := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())

	require.Equal(t, StatusRunning, a.Status())
	require.Equal(t, StatusQueued, b.Status())
	require.Equal(t, 1, b.QueuePosition())
	require.Zero(t, a.QueuePosition())

	release()
	require.Equal(t, StatusCompleted, waitTerminal(t, a))
	require.Equal(t, StatusCompleted, waitTerminal(t, b))
}

func TestManagerQueueIsFIFO(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	b := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	c := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())

	require.Equal(t, 1, b.QueuePosition())
	require.Equal(t, 2, c.QueuePosition())
}

func TestManagerStopWhileQueued(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	a := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	b := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	c := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())

	require.True(t, m.Stop(b.ID))

	// A queued stop finalizes immediately, without waiting for a turn.
	require.Equal(t, StatusStopped, b.Status())
	require.Zero(t, b.QueuePosition())
	require.Zero(t, b.Completed())
	require.Equal(t, 1, c.QueuePosition(), "positions close over the removed job")

	release()
	require.Equal(t, StatusCompleted, waitTerminal(t, a))
	require.Equal(t, StatusCompleted, waitTerminal(t, c))
}

func TestManagerStopUnknownID(t *testing.T) {
	t.Parallel()

	m := NewManager(1, nil)
	require.False(t, m.Stop("no-such-job"))
}

func TestManagerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	b := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())

	require.True(t, m.Stop(b.ID))
	require.True(t, m.Stop(b.ID))
	require.Equal(t, StatusStopped, b.Status())
}

func TestManagerResults(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	require.Nil(t, m.Results("no-such-job"))

	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	queued := m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())

	rows := m.Results(queued.ID)
	require.NotNil(t, rows, "a known job yields an empty slice, never nil")
	require.Empty(t, rows)
}

func TestManagerSnapshot(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	b := m.Create([]string{srv.URL, srv.URL}, statusOnlyOptions(), gatedRuntime())

	snap := m.StatusSnapshot(b)
	require.Equal(t, b.ID, snap.ID)
	require.Equal(t, StatusQueued, snap.Status)
	require.Equal(t, 1, snap.QueuePosition)
	require.Equal(t, 2, snap.Total)
	require.Zero(t, snap.Completed)
	require.False(t, snap.HasResults)
	require.Empty(t, snap.Error)
}

func TestManagerSessionExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	m := NewManager(2, nil)
	m.clock = clock

	m.Heartbeat("stale")
	clock.advance(sessionTimeout + time.Second)
	m.Heartbeat("fresh")

	stats := m.GetStats()
	require.Equal(t, 1, stats.ActiveUsers, "sessions past the timeout are dropped")
	require.Equal(t, 2, stats.MaxConcurrent)
	require.Zero(t, stats.Running)
	require.Zero(t, stats.Queued)
}

func TestManagerStatsCountQueue(t *testing.T) {
	t.Parallel()

	srv, release := gatedServer(t)
	defer release()

	m := NewManager(1, nil)
	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())
	_ = m.Create([]string{srv.URL}, statusOnlyOptions(), gatedRuntime())

	stats := m.GetStats()
	require.Equal(t, 1, stats.Running)
	require.Equal(t, 2, stats.Queued)
}

func TestNewManagerBoundFloor(t *testing.T) {
	t.Parallel()

	m := NewManager(0, nil)
	require.Equal(t, 1, m.GetStats().MaxConcurrent)
}
