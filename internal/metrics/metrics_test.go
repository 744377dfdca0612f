package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCheck(t *testing.T) {
	m := New()
	m.ObserveCheck(OutcomeOK)
	m.ObserveCheck(OutcomeOK)
	m.ObserveCheck("SignatureInvalid")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("SignatureInvalid")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheck(OutcomeOK)
	m.ObserveTransport("activate", time.Second)
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCheck(OutcomeOK)
	m.ObserveTransport("getkey", 150*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `keyverify_checks_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), `keyverify_transport_seconds_count{method="getkey"} 1`)
}
