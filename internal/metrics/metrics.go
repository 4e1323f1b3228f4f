package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Packet outcomes recorded per stream.
const (
	OutcomeRead      = "read"
	OutcomeWritten   = "written"
	OutcomeMalformed = "malformed"
)

// Metrics holds Prometheus collectors for capture sessions, the sync engine
// and the daemon API. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	packetsTotal   *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
	streamFailures *prometheus.CounterVec
	sessionsTotal  *prometheus.CounterVec
	recordingLive  prometheus.Gauge
	syncRunsTotal  *prometheus.CounterVec
	syncMatches    *prometheus.CounterVec
	syncGaps       *prometheus.CounterVec
	linkUp         prometheus.Gauge
	recordings     *prometheus.GaugeVec
	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		packetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holocap_packets_total",
			Help: "Packets handled per stream and outcome (read, written, malformed)",
		}, []string{"stream", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "holocap_transfer_queue_depth",
			Help: "Items waiting in each stream's transfer queue",
		}, []string{"stream"}),
		streamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holocap_stream_failures_total",
			Help: "Streams that ended early, by error kind",
		}, []string{"stream", "kind"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holocap_sessions_total",
			Help: "Recording sessions by result",
		}, []string{"result"}),
		recordingLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holocap_recording_active",
			Help: "1 while a recording session is running",
		}),
		syncRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holocap_sync_runs_total",
			Help: "Synchronization runs by result",
		}, []string{"result"}),
		syncMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holocap_sync_ordinals_total",
			Help: "Base ordinals per synchronized stream, matched or unmatched",
		}, []string{"stream", "result"}),
		syncGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holocap_sync_gaps_total",
			Help: "Inter-frame gaps detected per stream",
		}, []string{"stream"}),
		linkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holocap_device_link_up",
			Help: "1 when the device network interface reports link up",
		}),
		recordings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "holocap_recordings",
			Help: "Catalogued recordings by status",
		}, []string{"status"}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holocap_api_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holocap_api_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
	}

	registry.MustRegister(
		m.packetsTotal,
		m.queueDepth,
		m.streamFailures,
		m.sessionsTotal,
		m.recordingLive,
		m.syncRunsTotal,
		m.syncMatches,
		m.syncGaps,
		m.linkUp,
		m.recordings,
		m.requestsTotal,
		m.errorsTotal,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom gatherers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Packet counts one packet outcome for stream.
func (m *Metrics) Packet(stream, outcome string) {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues(stream, outcome).Inc()
}

// SetQueueDepth records the current transfer queue depth for stream.
func (m *Metrics) SetQueueDepth(stream string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(stream).Set(float64(depth))
}

// StreamFailed counts a stream that ended early.
func (m *Metrics) StreamFailed(stream, kind string) {
	if m == nil {
		return
	}
	m.streamFailures.WithLabelValues(stream, kind).Inc()
}

// SessionStarted marks a recording as live.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.recordingLive.Set(1)
}

// SessionFinished clears the live gauge and counts the session result.
func (m *Metrics) SessionFinished(result string) {
	if m == nil {
		return
	}
	m.recordingLive.Set(0)
	m.sessionsTotal.WithLabelValues(result).Inc()
}

// SyncRun counts one synchronization run by result.
func (m *Metrics) SyncRun(result string) {
	if m == nil {
		return
	}
	m.syncRunsTotal.WithLabelValues(result).Inc()
}

// SyncStream adds one stream's correspondence totals.
func (m *Metrics) SyncStream(stream string, matched, unmatched, gaps int) {
	if m == nil {
		return
	}
	m.syncMatches.WithLabelValues(stream, "matched").Add(float64(matched))
	m.syncMatches.WithLabelValues(stream, "unmatched").Add(float64(unmatched))
	m.syncGaps.WithLabelValues(stream).Add(float64(gaps))
}

// SetLinkUp records the device link state.
func (m *Metrics) SetLinkUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.linkUp.Set(1)
		return
	}
	m.linkUp.Set(0)
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the API error counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// SetRecordings replaces the per-status catalogue gauge.
func (m *Metrics) SetRecordings(counts map[string]int) {
	if m == nil {
		return
	}
	m.recordings.Reset()
	for status, count := range counts {
		m.recordings.WithLabelValues(status).Set(float64(count))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// refresh is called before each scrape to update sampled gauges.
func (m *Metrics) Handler(refresh func()) http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresh != nil {
			refresh()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
