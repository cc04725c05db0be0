package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "route"})

	UpstreamLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "upstream_logins_total",
		Help:      "Torrent client login attempts by outcome.",
	}, []string{"outcome"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "upstream_requests_total",
		Help:      "Torrent client API calls by operation and outcome.",
	}, []string{"op", "outcome"})

	StreamResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "stream_responses_total",
		Help:      "Stream responses by status code.",
	}, []string{"status"})

	StreamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "stream_bytes_total",
		Help:      "Total bytes written to stream clients.",
	})

	StreamAbortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "stream_client_aborts_total",
		Help:      "Streams terminated early by the client.",
	})

	AdapterRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "adapter_requests_total",
		Help:      "Library and indexer API calls by service and outcome.",
	}, []string{"service", "outcome"})

	ExpediteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "expedite_total",
		Help:      "Priority expedite requests by outcome (sent, skipped, coalesced, failed).",
	}, []string{"outcome"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpstreamLoginsTotal,
		UpstreamRequestsTotal,
		StreamResponsesTotal,
		StreamBytesTotal,
		StreamAbortsTotal,
		ExpediteTotal,
		AdapterRequestsTotal,
	)
}
