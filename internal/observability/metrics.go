package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "registrations_total",
		Help:      "Face registrations by outcome",
	}, []string{"outcome"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "verifications_total",
		Help:      "Face verifications by outcome (match, no_match, or an error class)",
	}, []string{"outcome"})

	EngineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "engine_duration_seconds",
		Help:      "Duration of face engine calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"op"})

	RegisteredIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "registered_identities",
		Help:      "Number of identities in the embedding store",
	})

	EventsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "events_recorded_total",
		Help:      "Face events persisted by the recorder",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
