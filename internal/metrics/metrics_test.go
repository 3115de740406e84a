package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserversAreNilSafeBeforeInit(t *testing.T) {
	// Collectors may be unregistered when a package is used in isolation.
	require.NotPanics(t, func() {
		ObserveJob("completed")
		ObserveURL("checked")
		ObserveURLDuration(time.Second)
		SetRunningJobs(1)
		SetQueuedJobs(0)
		ObserveAPIRequest("GET", "/healthz", time.Millisecond)
	})
}

func TestInitIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Init()
		Init()
	})
	require.NotNil(t, jobsTotal)
	require.NotNil(t, Handler())

	require.NotPanics(t, func() {
		ObserveJob("completed")
		ObserveURL("checked")
		ObserveURLDuration(250 * time.Millisecond)
		SetRunningJobs(2)
		SetQueuedJobs(3)
		ObserveAPIRequest("POST", "/v1/jobs", 5*time.Millisecond)
	})
}
