package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetdeck_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// FramesIngested counts camera frames accepted or rejected at the ingest edge.
	FramesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetdeck_frames_ingested_total",
			Help: "Total number of camera frame uploads by result",
		},
		[]string{"result"},
	)

	// FrameBytes tracks the size of accepted camera frames.
	FrameBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetdeck_frame_bytes",
			Help:    "Size distribution of accepted camera frames",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// RelaySessions tracks currently open relay sessions.
	RelaySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetdeck_relay_sessions",
			Help: "Number of open camera relay sessions",
		},
	)

	// RelayAuthorizations counts relay token checks by outcome (valid|invalid).
	RelayAuthorizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetdeck_relay_authorizations_total",
			Help: "Total number of relay authorization checks",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks active dashboard sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetdeck_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// RealtimeClients tracks connected dashboard websocket clients.
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetdeck_realtime_clients",
			Help: "Number of connected realtime dashboard clients",
		},
	)

	// TelemetryReports counts telemetry ingestion events per device type.
	TelemetryReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetdeck_telemetry_reports_total",
			Help: "Total number of telemetry reports ingested",
		},
		[]string{"device_type"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetdeck_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
