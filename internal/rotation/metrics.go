package rotation

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	phaseStartedTotal   *prometheus.CounterVec
	phaseCompletedTotal *prometheus.CounterVec
	phaseDuration       *prometheus.HistogramVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics initializes the Prometheus phase metrics. Call once at startup
// when metrics are enabled; recording is a no-op otherwise.
func InitMetrics() {
	metricsOnce.Do(func() {
		phaseStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfrotate_phase_started_total",
				Help: "Total number of rotation phase invocations started",
			},
			[]string{"step"},
		)

		phaseCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfrotate_phase_completed_total",
				Help: "Total number of rotation phase invocations completed",
			},
			[]string{"step", "status"},
		)

		phaseDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cfrotate_phase_duration_seconds",
				Help:    "Duration of rotation phase invocations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"step"},
		)

		metricsRegistered = true
	})
}

func recordPhaseStarted(step Step) {
	if !metricsRegistered {
		return
	}
	phaseStartedTotal.WithLabelValues(string(step)).Inc()
}

func recordPhaseCompleted(step Step, err error, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	phaseCompletedTotal.WithLabelValues(string(step), status).Inc()
	phaseDuration.WithLabelValues(string(step)).Observe(elapsed.Seconds())
}
