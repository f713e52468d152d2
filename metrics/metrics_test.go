package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Transition("send", "ok")
	m.Notification("newChatRequest", "offline")
	m.SetOnline(3)
	assert.Nil(t, m.Registry())

	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Transition("send", "ok")
	m.Transition("send", "ok")
	m.Transition("accept", "forbidden")
	m.SetOnline(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("send", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.online))

	r := mux.NewRouter()
	r.Use(m.Instrument)
	r.HandleFunc("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/abc", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/users/{id}", "GET", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "chat_request_transitions_total"))
	assert.True(t, strings.Contains(body, "push_online_users 2"))
}
