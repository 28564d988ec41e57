package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publisher metrics
var (
	// EnvelopesPublished counts emissions by event name.
	EnvelopesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatstatus_envelopes_published_total",
			Help: "Total status envelopes emitted by event",
		},
		[]string{"event"},
	)

	// EnvelopeBytes tracks the encoded size of broadcast envelopes.
	EnvelopeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beatstatus_envelope_bytes",
			Help:    "Encoded size of broadcast envelopes in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		},
	)
)

// Hub metrics
var (
	SubscribersCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beatstatus_subscribers_current",
			Help: "Number of live stream subscribers",
		},
	)

	// SubscribersEvicted counts subscriber removals by reason
	// (closed, slow, shutdown).
	SubscribersEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatstatus_subscribers_evicted_total",
			Help: "Total subscribers removed by reason",
		},
		[]string{"reason"},
	)

	WriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beatstatus_websocket_write_failures_total",
			Help: "Total failed websocket writes and pings",
		},
	)
)

// Mirror metrics
var (
	MirrorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatstatus_mirror_errors_total",
			Help: "Total redis mirror failures by operation",
		},
		[]string{"operation"},
	)
)
