package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/content/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/content/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/content/{id}", "404")))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.WebhookEvent("stripe", "customer.subscription.updated", "processed")
	m.ProviderCall("stripe", nil)
	m.ProviderCall("stripe", errors.New("boom"))
	m.SetBreakerState("openai", "open")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("stripe", "customer.subscription.updated", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("stripe", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("stripe", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("openai")))

	m.SetBreakerState("openai", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerState.WithLabelValues("openai")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WebhookEvent("stripe", "x", "failed")
		m.ProviderCall("stripe", nil)
		m.SetBreakerState("stripe", "open")
	})
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}
