package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RequestsTotal counts interview/feedback requests by outcome.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "assistant",
		Name:      "requests_total",
		Help:      "Total number of interview and feedback requests, labeled by endpoint and result.",
	}, []string{"endpoint", "result"})

	// RunDurationSeconds is the time spent on the provider pipeline of one request.
	RunDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "assistant",
		Name:      "run_duration_seconds",
		Help:      "Time from assistant resolution to the end of the streaming run.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"endpoint", "result"})

	// AssistantResolutionsTotal counts how the assistant id was obtained.
	AssistantResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "assistant",
		Name:      "resolutions_total",
		Help:      "Assistant id resolutions, labeled by source (static, cache, found, created, error).",
	}, []string{"source"})

	ThreadsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "assistant",
		Name:      "threads_created_total",
		Help:      "Total number of conversation threads created with the provider.",
	})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the per-client rate limiter.",
	})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RunDurationSeconds,
			AssistantResolutionsTotal,
			ThreadsCreatedTotal,
			RateLimitedTotal,
		)
	})
}
