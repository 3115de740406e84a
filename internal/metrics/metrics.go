// Package metrics exposes Prometheus collectors for the check service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal          *prometheus.CounterVec
	urlsCheckedTotal   *prometheus.CounterVec
	runningJobs        prometheus.Gauge
	queuedJobs         prometheus.Gauge
	urlCheckDuration   prometheus.Histogram
	apiRequestDuration *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_jobs_total",
				Help: "Total number of jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		urlsCheckedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_urls_checked_total",
				Help: "Total number of URLs processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runningJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecheck_running_jobs",
				Help: "Number of jobs currently running.",
			},
		)

		queuedJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecheck_queued_jobs",
				Help: "Number of jobs waiting in the queue.",
			},
		)

		urlCheckDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitecheck_url_check_duration_seconds",
				Help:    "Histogram of per-URL pipeline durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		apiRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitecheck_api_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob counts one finished job by terminal status.
func ObserveJob(status string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveURL counts one processed URL by outcome.
func ObserveURL(outcome string) {
	if urlsCheckedTotal != nil {
		urlsCheckedTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveURLDuration records how long one URL pipeline took.
func ObserveURLDuration(d time.Duration) {
	if urlCheckDuration != nil {
		urlCheckDuration.Observe(d.Seconds())
	}
}

// SetRunningJobs updates the running-jobs gauge.
func SetRunningJobs(n int) {
	if runningJobs != nil {
		runningJobs.Set(float64(n))
	}
}

// SetQueuedJobs updates the queued-jobs gauge.
func SetQueuedJobs(n int) {
	if queuedJobs != nil {
		queuedJobs.Set(float64(n))
	}
}

// ObserveAPIRequest records an API request latency.
func ObserveAPIRequest(method, route string, duration time.Duration) {
	if apiRequestDuration != nil {
		apiRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}
