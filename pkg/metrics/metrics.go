// Package metrics exposes Prometheus collectors for encoder activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry holds every semroute collector.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		EncodeTotal, EncodeDuration, EncodeRetries,
		DocumentsEncoded, VocabularySize,
	)
}

// EncodeTotal counts Encode calls by encoder and outcome.
var EncodeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "semroute_encode_total",
		Help: "Encode calls by encoder and status.",
	},
	[]string{"encoder", "status"}, // ok | error kind
)

// EncodeDuration measures Encode latency including retries and backoff.
var EncodeDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "semroute_encode_duration_seconds",
		Help:    "Encode latency in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"encoder"},
)

// EncodeRetries counts attempts that were retried after a provider error.
var EncodeRetries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "semroute_encode_retries_total",
		Help: "Retried embedding attempts by encoder and provider error kind.",
	},
	[]string{"encoder", "kind"},
)

// DocumentsEncoded counts documents successfully turned into vectors.
var DocumentsEncoded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "semroute_documents_encoded_total",
		Help: "Documents successfully encoded.",
	},
	[]string{"encoder"},
)

// VocabularySize reports the size of the most recently fitted vocabulary.
var VocabularySize = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "semroute_vocabulary_size",
		Help: "Number of terms in the fitted vocabulary.",
	},
	[]string{"encoder"},
)

// ObserveEncode records the outcome of one Encode call.
func ObserveEncode(encoder, status string, docs int, start time.Time) {
	EncodeTotal.WithLabelValues(encoder, status).Inc()
	EncodeDuration.WithLabelValues(encoder).Observe(time.Since(start).Seconds())
	if status == StatusOK {
		DocumentsEncoded.WithLabelValues(encoder).Add(float64(docs))
	}
}

// StatusOK is the status label of a successful call.
const StatusOK = "ok"

// Handler serves DefaultRegistry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
