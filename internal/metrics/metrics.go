// Package metrics exposes Prometheus instrumentation for playlist generation,
// timeline queries, viewer sessions, and source resolution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation Metrics
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airwave_generation_duration_seconds",
			Help:    "Duration of playlist generation and extension runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"reason"}, // "start", "extend", "refresh", "invalidate", "preview"
	)

	GenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_generation_errors_total",
			Help: "Total number of failed playlist generation runs",
		},
		[]string{"reason"},
	)

	GeneratedItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwave_generated_items_total",
			Help: "Total number of playlist items produced by the generator",
		},
	)

	// Timeline Metrics
	PositionQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_position_queries_total",
			Help: "Total number of timeline position queries by outcome",
		},
		[]string{"result"}, // "hit", "extended", "finished", "rejected", "error"
	)

	SnapshotItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airwave_snapshot_items",
			Help: "Number of items in each channel's published playlist snapshot",
		},
		[]string{"channel_id"},
	)

	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airwave_active_sessions",
			Help: "Current number of running channel timeline sessions",
		},
	)

	Viewers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airwave_viewers",
			Help: "Current number of viewers joined to each channel",
		},
		[]string{"channel_id"},
	)

	// Source Resolution Metrics
	SourceResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_source_resolutions_total",
			Help: "Total number of source URL resolutions by kind and outcome",
		},
		[]string{"kind", "result"}, // result: "success", "failure", "rejected", "cached"
	)

	SourceResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airwave_source_resolution_duration_seconds",
			Help:    "Duration of source URL resolutions in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airwave_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordGeneration records a generation run
func RecordGeneration(reason string, duration time.Duration, items int, err error) {
	GenerationDuration.WithLabelValues(reason).Observe(duration.Seconds())
	if err != nil {
		GenerationErrors.WithLabelValues(reason).Inc()
		return
	}
	GeneratedItems.Add(float64(items))
}

// RecordPositionQuery records the outcome of a timeline position query
func RecordPositionQuery(result string) {
	PositionQueries.WithLabelValues(result).Inc()
}

// RecordSourceResolution records a source resolution attempt
func RecordSourceResolution(kind, result string, duration time.Duration) {
	SourceResolutions.WithLabelValues(kind, result).Inc()
	if duration > 0 {
		SourceResolutionDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// SetViewers updates the viewer gauge for a channel
func SetViewers(channelID string, n int) {
	Viewers.WithLabelValues(channelID).Set(float64(n))
}

// ForgetChannel drops per-channel series once a session stops
func ForgetChannel(channelID string) {
	Viewers.DeleteLabelValues(channelID)
	SnapshotItems.DeleteLabelValues(channelID)
}
