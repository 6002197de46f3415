// ABOUTME: Tests for the Prometheus collectors and the counting detector.
// ABOUTME: Uses prometheus/testutil to read counter values.

package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordAttempt(OutcomeRetry)
	m.RecordBlob("get", nil)
	m.RecordCheckpoint(errors.New("x"))
	m.ExecStarted("read")(nil)

	d := m.Detector()
	d.ServerHeartbeat()
	d.Reset("inbound_message", "kvServerMessage:getBlobArgs")
	d.StreamEnded()
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.RecordAttempt(OutcomeRetry)
	m.RecordAttempt(OutcomeRetry)
	m.RecordAttempt(OutcomeSuccess)
	m.RecordBlob("set", errors.New("disk full"))
	m.RecordCheckpoint(nil)

	done := m.ExecStarted("shell")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.execRunning))
	done(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.execRunning))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues(OutcomeRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blobOps.WithLabelValues("set", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkpoints.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.execTotal.WithLabelValues("shell", "ok")))
}

func TestDetectorCounts(t *testing.T) {
	m := New()
	d := m.Detector()
	d.ServerHeartbeat()
	d.Reset("inbound_message", "heartbeat")
	d.Reset("inbound_message", "execServerMessage:readArgs")
	d.Reset("inbound_message", "execServerMessage:readArgs")
	d.StreamEnded()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.serverHeartbeats))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inboundMessages.WithLabelValues("execServerMessage:readArgs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamsEnded))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.RecordAttempt(OutcomeFatal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `coven_link_run_attempts_total{outcome="fatal"} 1`))
}
