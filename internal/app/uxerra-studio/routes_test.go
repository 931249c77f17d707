package uxerrastudio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	adminhandler "github.com/uxerra/studio-api/internal/http/handlers/admin"
	authhandler "github.com/uxerra/studio-api/internal/http/handlers/auth"
	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/jwt"
	"github.com/uxerra/studio-api/internal/metrics"
	"github.com/uxerra/studio-api/internal/models"
	adminservice "github.com/uxerra/studio-api/internal/services/admin"
)

// tokens принимает токены вида "<role>:<userID>".
type tokens struct{}

func (tokens) ParseToken(tok string) (*jwt.CustomClaims, error) {
	role, id, ok := strings.Cut(tok, ":")
	if !ok {
		return nil, errors.New("bad token")
	}
	return &jwt.CustomClaims{UserID: id, Role: role}, nil
}

type noKeys struct{}

func (noKeys) Authenticate(context.Context, string) (*models.User, *models.APIKey, error) {
	return nil, nil, apperr.New(apperr.ErrUnauthorized, "invalid api key")
}

type freePlan struct{}

func (freePlan) GetSubscription(_ context.Context, userID string) (*models.Subscription, error) {
	return &models.Subscription{UserID: userID, Plan: models.PlanFree, Status: models.SubscriptionActive}, nil
}

type healthyAdmin struct{}

func (healthyAdmin) Dashboard(context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{Users: 3}, nil
}

func (healthyAdmin) Health(context.Context) *models.HealthReport {
	return &models.HealthReport{Status: adminservice.HealthOK}
}

type rejectingAuth struct{}

func (rejectingAuth) Register(context.Context, models.RegisterRequest) (*models.AuthResult, error) {
	return nil, apperr.New(apperr.ErrConflict, "email already registered")
}

func (rejectingAuth) Login(context.Context, models.LoginRequest) (*models.AuthResult, error) {
	return nil, apperr.New(apperr.ErrUnauthorized, "invalid email or password")
}

func (rejectingAuth) Profile(context.Context, string) (*models.User, error) {
	return &models.User{ID: "u1"}, nil
}

func newTestRouter() http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	h := Handlers{
		Auth:  authhandler.New(log, rejectingAuth{}, false),
		Admin: adminhandler.New(log, nil, healthyAdmin{}, false),
	}
	l := Limiters{
		API:     middlewarectx.NewRateLimiter("api", 100, time.Minute),
		Auth:    middlewarectx.NewRateLimiter("auth", 2, time.Hour),
		AI:      middlewarectx.NewRateLimiter("ai", 10, time.Hour),
		Webhook: middlewarectx.NewRateLimiter("webhook", 10, time.Minute),
	}
	g := Guards{Tokens: tokens{}, Keys: noKeys{}, Subscriptions: freePlan{}}

	r := chi.NewRouter()
	RegisterRoutes(r, log, h, g, l, metrics.New(reg), reg)
	return r
}

func TestRoutes_AccessControl(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound},
		{name: "profile needs credentials", method: http.MethodGet, path: "/api/auth/profile", wantStatus: http.StatusUnauthorized},
		{
			name: "profile with token", method: http.MethodGet, path: "/api/auth/profile",
			headers: map[string]string{"Authorization": "Bearer USER:u1"}, wantStatus: http.StatusOK,
		},
		{
			name: "bad api key", method: http.MethodGet, path: "/api/users/me",
			headers: map[string]string{"X-API-Key": "ux_nope"}, wantStatus: http.StatusUnauthorized,
		},
		{
			name: "admin route as user", method: http.MethodGet, path: "/api/admin/dashboard",
			headers: map[string]string{"Authorization": "Bearer USER:u1"}, wantStatus: http.StatusForbidden,
		},
		{
			name: "admin route as admin", method: http.MethodGet, path: "/api/admin/dashboard",
			headers: map[string]string{"Authorization": "Bearer ADMIN:a1"}, wantStatus: http.StatusOK,
		},
		{
			name: "admin health", method: http.MethodGet, path: "/api/admin/health",
			headers: map[string]string{"Authorization": "Bearer ADMIN:a1"}, wantStatus: http.StatusOK,
		},
		{
			name: "generation on free plan", method: http.MethodPost, path: "/api/content/generate",
			headers: map[string]string{"Authorization": "Bearer USER:u1"}, wantStatus: http.StatusForbidden,
		},
		{
			name: "branding generation on free plan", method: http.MethodPost,
			path:    "/api/branding/9d4a3a51-2c1b-4f8e-a0a6-3f0d2b7c1e44/generate",
			headers: map[string]string{"Authorization": "Bearer USER:u1"}, wantStatus: http.StatusForbidden,
		},
		{
			name: "webhook journal as user", method: http.MethodGet, path: "/api/webhooks/events",
			headers: map[string]string{"Authorization": "Bearer USER:u1"}, wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRoutes_AuthRateLimit(t *testing.T) {
	router := newTestRouter()

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"a@b.co","password":"wrong"}`))
		req.RemoteAddr = "198.51.100.4:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}
