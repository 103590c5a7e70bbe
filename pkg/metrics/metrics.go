// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package metrics exposes Prometheus collectors for the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	RequestRelayed        = "relayed"
	RequestEmptyResponse  = "empty_response"
	RequestTransportError = "transport_error"
)

// Event outcomes.
const (
	EventRelayed = "relayed"
	EventIgnored = "ignored"
	EventInvalid = "invalid"
)

// Stream connection outcomes.
const (
	StreamConnected = "connected"
	StreamFailed    = "failed"
)

var (
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_bridge_requests_total",
			Help: "Host requests forwarded to the command endpoint",
		},
		[]string{"outcome"},
	)

	hostParseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mcp_bridge_host_parse_errors_total",
			Help: "Host lines dropped because they were not valid JSON",
		},
	)

	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_bridge_events_total",
			Help: "Event stream frames received from the upstream",
		},
		[]string{"outcome"},
	)

	streamConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_bridge_stream_connects_total",
			Help: "Event stream connection attempts",
		},
		[]string{"outcome"},
	)

	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mcp_bridge_request_duration_seconds",
			Help:    "Command endpoint round trip duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	upstreamOwned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcp_bridge_upstream_owned",
			Help: "1 when the bridge spawned the upstream, 0 when it reused one",
		},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(requests, hostParseErrors, events, streamConnects, requestDuration, upstreamOwned)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRequest counts a forwarded host request and its round trip time.
func RecordRequest(outcome string, d time.Duration) {
	requests.WithLabelValues(outcome).Inc()
	requestDuration.Observe(d.Seconds())
}

// RecordHostParseError counts an unparseable host line.
func RecordHostParseError() {
	hostParseErrors.Inc()
}

// RecordEvent counts an event stream frame.
func RecordEvent(outcome string) {
	events.WithLabelValues(outcome).Inc()
}

// RecordStreamConnect counts an event stream connection attempt.
func RecordStreamConnect(outcome string) {
	streamConnects.WithLabelValues(outcome).Inc()
}

// SetUpstreamOwned records whether the upstream process belongs to the bridge.
func SetUpstreamOwned(owned bool) {
	if owned {
		upstreamOwned.Set(1)
		return
	}
	upstreamOwned.Set(0)
}
