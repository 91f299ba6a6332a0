package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling / ingest
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeromon_readings_total",
			Help: "Total number of readings ingested",
		},
		[]string{"source"},
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aeromon_poll_duration_seconds",
			Help:    "Time taken to fetch a reading from the upstream source",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	PollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aeromon_poll_errors_total",
			Help: "Total number of failed upstream fetches",
		},
	)

	// Alerting
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeromon_alerts_fired_total",
			Help: "Total number of alerts created",
		},
		[]string{"severity"},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aeromon_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by deduplication",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeromon_store_errors_total",
			Help: "Total number of durable store failures by operation",
		},
		[]string{"op"},
	)

	// Broadcast
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aeromon_ws_clients",
			Help: "Number of currently connected websocket clients",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aeromon_broadcast_dropped_total",
			Help: "Total number of clients dropped for stalled send buffers",
		},
	)
)
