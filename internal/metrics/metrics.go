package metrics

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "allocation"

var (
	runsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Count of allocation runs by final status.",
		},
		[]string{"status"},
	)
	collectedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "collected_amount_total",
			Help:      "Sum of collected amounts processed by completed runs.",
		},
	)
	allocatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "allocated_amount_total",
			Help:      "Sum of amounts allocated to submission rows by completed runs.",
		},
	)
	leftoverCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "leftover_amount_total",
			Help:      "Sum of collected amounts left unallocated by completed runs.",
		},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of allocation runs, from file parsing to persisted results.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
)

var (
	registry        = prometheus.NewRegistry()
	registerMetrics sync.Once
)

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		registry.MustRegister(runsCounter)
		registry.MustRegister(collectedCounter)
		registry.MustRegister(allocatedCounter)
		registry.MustRegister(leftoverCounter)
		registry.MustRegister(runDuration)
	})
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordCompletedRun records a run that produced an allocation.
func RecordCompletedRun(d time.Duration, collected, allocated, leftover float64) {
	runsCounter.WithLabelValues("completed").Inc()
	// Counter.Add panics on negative values.
	collectedCounter.Add(math.Max(0, collected))
	allocatedCounter.Add(math.Max(0, allocated))
	leftoverCounter.Add(math.Max(0, leftover))
	runDuration.Observe(d.Seconds())
}

// RecordFailedRun records a run aborted by an error.
func RecordFailedRun(d time.Duration) {
	runsCounter.WithLabelValues("failed").Inc()
	runDuration.Observe(d.Seconds())
}
