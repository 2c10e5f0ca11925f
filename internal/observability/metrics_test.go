package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestGateDecisionCounter(t *testing.T) {
	m := NewMetrics()

	m.GateDecision("allowed")
	m.GateDecision("allowed")
	m.GateDecision("denied")

	require.Equal(t, float64(2), testutil.ToFloat64(m.gateDecisions.WithLabelValues("allowed")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.gateDecisions.WithLabelValues("denied")))
	require.Equal(t, float64(0), testutil.ToFloat64(m.gateDecisions.WithLabelValues("unprotected")))
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(m.requestsTotal.WithLabelValues("/healthz", "418")))
}

func TestMetricsEndpointExposesSeries(t *testing.T) {
	m := NewMetrics()
	m.GateDecision("denied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `rolegate_gate_decisions_total{outcome="denied"} 1`)
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.GateDecision("allowed")

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
