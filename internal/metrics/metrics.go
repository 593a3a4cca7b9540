// Package metrics provides Prometheus metrics for the ingest pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the service-wide Prometheus registry.
var Registry = prometheus.NewRegistry()

// Ingest result labels.
const (
	ResultCreated       = "created"
	ResultUpdated       = "updated"
	ResultDecodeError   = "decode_error"
	ResultInvalid       = "invalid"
	ResultMeterNotFound = "meter_not_found"
	ResultStorageError  = "storage_error"
)

var (
	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submeter_ingest_total",
			Help: "Ingest requests by source and result",
		},
		[]string{"source", "result"},
	)

	ingestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "submeter_ingest_duration_seconds",
			Help:    "Ingest request duration by source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(ingestTotal, ingestDuration)
}

// ObserveIngest records one ingest attempt.
func ObserveIngest(source, result string, duration time.Duration) {
	ingestTotal.WithLabelValues(source, result).Inc()
	ingestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// Handler returns an HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
