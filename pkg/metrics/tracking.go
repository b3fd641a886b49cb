package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pollFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "source_fetches_total",
			Help:      "Status source fetches by source and outcome",
		},
		[]string{"source", "outcome"}, // success, error, stale
	)

	pollFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "source_fetch_duration_seconds",
			Help:      "Time taken by one status source fetch",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	publishedStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "published_stage_total",
			Help:      "Stage advances published to clients",
		},
		[]string{"stage"},
	)

	activeTrackers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "active_trackers",
			Help:      "Number of transfers currently being polled",
		},
	)

	sendAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "send",
			Name:      "attempts_total",
			Help:      "Send attempts by final state",
		},
		[]string{"source", "destination", "state"},
	)

	sendFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "send",
			Name:      "legacy_fallbacks_total",
			Help:      "Raw legacy transaction fallbacks after a node state gap",
		},
		[]string{"source", "outcome"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests to aggregator and scanner APIs by status class",
		},
		[]string{"upstream", "status"},
	)
)

// TrackingMetrics records status polling activity.
type TrackingMetrics struct{}

func NewTrackingMetrics() *TrackingMetrics {
	return &TrackingMetrics{}
}

// RecordFetch records one source fetch.
func (m *TrackingMetrics) RecordFetch(source, outcome string, duration time.Duration) {
	pollFetchesTotal.WithLabelValues(source, outcome).Inc()
	pollFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordStageAdvance records a published stage change.
func (m *TrackingMetrics) RecordStageAdvance(stage string) {
	publishedStageTotal.WithLabelValues(stage).Inc()
}

func (m *TrackingMetrics) TrackerStarted() { activeTrackers.Inc() }

func (m *TrackingMetrics) TrackerStopped() { activeTrackers.Dec() }

// SendMetrics records send attempts.
type SendMetrics struct{}

func NewSendMetrics() *SendMetrics {
	return &SendMetrics{}
}

func (m *SendMetrics) RecordAttempt(source, destination, state string) {
	sendAttemptsTotal.WithLabelValues(source, destination, state).Inc()
}

func (m *SendMetrics) RecordFallback(source string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	sendFallbacksTotal.WithLabelValues(source, outcome).Inc()
}

// RecordUpstream records one upstream HTTP call; status 0 means transport failure.
func RecordUpstream(upstream string, status int) {
	class := "network_error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 200:
		class = "2xx"
	}
	upstreamRequestsTotal.WithLabelValues(upstream, class).Inc()
}
