// Package metrics собирает prometheus метрики HTTP слоя, вебхуков и провайдеров.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uxerra"

// Metrics набор метрик приложения. Методы безопасны для nil получателя.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	webhookEvents *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by provider, type and processing status.",
		}, []string{"provider", "type", "status"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Outbound provider API calls by outcome.",
		}, []string{"provider", "outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_breaker_open",
			Help:      "1 when the provider circuit breaker is open.",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.webhookEvents, m.providerCalls, m.breakerState)
	return m
}

// Middleware считает запросы и время ответа по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// WebhookEvent учитывает обработанное событие вебхука.
func (m *Metrics) WebhookEvent(provider, eventType, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, eventType, status).Inc()
}

// ProviderCall учитывает вызов внешнего API.
func (m *Metrics) ProviderCall(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
}

// SetBreakerState реализует breaker.StateRecorder.
func (m *Metrics) SetBreakerState(name string, state string) {
	if m == nil {
		return
	}
	value := 0.0
	if state == "open" {
		value = 1
	}
	m.breakerState.WithLabelValues(name).Set(value)
}
