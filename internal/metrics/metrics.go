// Package metrics exposes Prometheus instrumentation for the broadcast
// hub: channel/listener gauges, fire and eviction counters, and HTTP
// outcome counts for the subscriber endpoint. Metrics are served on a
// listener separate from the public mount, mirroring how this family of
// services keeps operational surfaces off the request path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_broadcast_active_channels",
			Help: "Number of channels currently present in the registry",
		},
	)

	Listeners = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sse_broadcast_listeners",
			Help: "Number of attached listeners per channel",
		},
		[]string{"channel"},
	)

	EventsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_broadcast_events_fired_total",
			Help: "Total number of fire calls that found an active channel",
		},
		[]string{"channel"},
	)

	ListenerEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_broadcast_listener_evictions_total",
			Help: "Total number of listener evictions by reason",
		},
		[]string{"channel", "reason"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_broadcast_http_requests_total",
			Help: "Total number of subscriber endpoint requests by outcome status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(ActiveChannels)
	prometheus.MustRegister(Listeners)
	prometheus.MustRegister(EventsFiredTotal)
	prometheus.MustRegister(ListenerEvictionsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler returns the HTTP handler that exposes metrics in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Eviction reasons recorded against ListenerEvictionsTotal.
const (
	ReasonKeepFalse  = "keep_false"
	ReasonException  = "exception"
	ReasonWriteError = "write_error"
	ReasonShutdown   = "shutdown"
)

// Recorder implements broadcast.Metrics and sse.Metrics on top of the
// package-level collectors.
type Recorder struct{}

// NewRecorder returns a Recorder wired to the package-level collectors.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordFire increments the fired-event counter for channel.
func (Recorder) RecordFire(channel string) {
	EventsFiredTotal.WithLabelValues(channel).Inc()
}

// RecordEviction increments the eviction counter for channel and reason.
func (Recorder) RecordEviction(channel, reason string) {
	ListenerEvictionsTotal.WithLabelValues(channel, reason).Inc()
}

// RecordHTTPStatus increments the HTTP outcome counter for status.
func (Recorder) RecordHTTPStatus(status int) {
	HTTPRequestsTotal.WithLabelValues(http.StatusText(status)).Inc()
}
