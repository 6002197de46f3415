// ABOUTME: Prometheus collectors for the stream engine and a traffic-counting stall detector.
// ABOUTME: All recording methods are safe to call on a nil *Metrics.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coven_link"

// Attempt outcomes recorded by RecordAttempt.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFatal   = "fatal"
)

// Metrics groups every collector exported by coven-link.
type Metrics struct {
	registry *prometheus.Registry

	inboundMessages  *prometheus.CounterVec
	serverHeartbeats prometheus.Counter
	streamsEnded     prometheus.Counter
	attempts         *prometheus.CounterVec
	execTotal        *prometheus.CounterVec
	execDuration     *prometheus.HistogramVec
	execRunning      prometheus.Gauge
	blobOps          *prometheus.CounterVec
	checkpoints      *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound server messages by case label.",
		}, []string{"label"}),
		serverHeartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_heartbeats_total",
			Help:      "Heartbeat updates received from the server.",
		}),
		streamsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_ended_total",
			Help:      "Inbound streams that ended cleanly.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_attempts_total",
			Help:      "Run attempts by outcome.",
		}, []string{"outcome"}),
		execTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exec_total",
			Help:      "Exec requests handled by resource and status.",
		}, []string{"resource", "status"}),
		execDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exec_duration_seconds",
			Help:      "Exec handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		execRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exec_running",
			Help:      "Exec handlers currently running.",
		}),
		blobOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operations_total",
			Help:      "Blob store operations served to the server.",
		}, []string{"op", "status"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoints handled by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.inboundMessages,
		m.serverHeartbeats,
		m.streamsEnded,
		m.attempts,
		m.execTotal,
		m.execDuration,
		m.execRunning,
		m.blobOps,
		m.checkpoints,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordAttempt counts one run attempt.
func (m *Metrics) RecordAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

// ExecStarted marks an exec handler as running and returns a func that records its completion.
func (m *Metrics) ExecStarted(resource string) func(error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.execRunning.Inc()
	return func(err error) {
		m.execRunning.Dec()
		m.execDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
		m.execTotal.WithLabelValues(resource, status(err)).Inc()
	}
}

// RecordBlob counts one blob get or set.
func (m *Metrics) RecordBlob(op string, err error) {
	if m == nil {
		return
	}
	m.blobOps.WithLabelValues(op, status(err)).Inc()
}

// RecordCheckpoint counts one handled checkpoint.
func (m *Metrics) RecordCheckpoint(err error) {
	if m == nil {
		return
	}
	m.checkpoints.WithLabelValues(status(err)).Inc()
}

// Detector is a stall detector that only counts traffic.
type Detector struct {
	m *Metrics
}

// Detector returns a stall detector backed by these collectors.
func (m *Metrics) Detector() *Detector {
	return &Detector{m: m}
}

// ServerHeartbeat counts a server keep-alive.
func (d *Detector) ServerHeartbeat() {
	if d.m == nil {
		return
	}
	d.m.serverHeartbeats.Inc()
}

// Reset counts an inbound message under its label.
func (d *Detector) Reset(_, label string) {
	if d.m == nil {
		return
	}
	d.m.inboundMessages.WithLabelValues(label).Inc()
}

// StreamEnded counts a clean end of the inbound stream.
func (d *Detector) StreamEnded() {
	if d.m == nil {
		return
	}
	d.m.streamsEnded.Inc()
}
