// ABOUTME: Tests for the Prometheus observer and metrics handler
// ABOUTME: Uses a private registry per test

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/backend/backendtest"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeOK, Classify(nil))
	assert.Equal(t, OutcomeTransport, Classify(&backend.TransportError{Op: "x", Err: errors.New("refused")}))
	assert.Equal(t, OutcomeStatus, Classify(&backend.StatusError{Op: "x", StatusCode: 500}))
	assert.Equal(t, OutcomeAPI, Classify(&backend.APIError{Op: "x", Message: "nope"}))
	assert.Equal(t, OutcomeOther, Classify(errors.New("other")))
}

func TestObserveRequest_ThroughClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	srv := backendtest.New(t)
	srv.AddAccount("a@b.com", "x", map[string]any{"db_name": "tenant1"})
	c, err := backend.New(srv.URL, backend.WithObserver(m))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)
	_, err = c.Login(ctx, "a@b.com", "wrong")
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "posible_backend_requests_total", map[string]string{"op": "login", "outcome": OutcomeOK}))
	assert.Equal(t, 1.0, counterValue(t, reg, "posible_backend_requests_total", map[string]string{"outcome": OutcomeStatus}))
}

func TestObserveLoginAndDegraded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveLogin(true)
	m.ObserveLogin(false)
	m.ObserveLogin(false)
	m.ObserveDegraded([]string{"users"})
	m.SetActiveSessions(3)

	assert.Equal(t, 1.0, counterValue(t, reg, "posible_console_logins_total", map[string]string{"result": "success"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "posible_console_logins_total", map[string]string{"result": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "posible_dashboard_degraded_figures_total", map[string]string{"figure": "users"}))

	families, err := reg.Gather()
	require.NoError(t, err)
	var sessions float64
	for _, mf := range families {
		if mf.GetName() == "posible_console_active_sessions" {
			sessions = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 3.0, sessions)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRequest("session", http.StatusOK, nil, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `posible_backend_requests_total{op="session",outcome="ok"} 1`)
	assert.Contains(t, string(body), "posible_backend_request_duration_seconds")
}
