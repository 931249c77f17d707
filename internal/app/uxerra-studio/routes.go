// Package uxerrastudio собирает HTTP API: зависимости, маршруты и сервер.
package uxerrastudio

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация swagger спецификации для /docs.
	_ "github.com/uxerra/studio-api/docs"

	"github.com/uxerra/studio-api/internal/http/handlers/admin"
	"github.com/uxerra/studio-api/internal/http/handlers/apikeys"
	"github.com/uxerra/studio-api/internal/http/handlers/audit"
	"github.com/uxerra/studio-api/internal/http/handlers/auth"
	"github.com/uxerra/studio-api/internal/http/handlers/branding"
	"github.com/uxerra/studio-api/internal/http/handlers/content"
	"github.com/uxerra/studio-api/internal/http/handlers/newsletter"
	"github.com/uxerra/studio-api/internal/http/handlers/subscriptions"
	"github.com/uxerra/studio-api/internal/http/handlers/users"
	"github.com/uxerra/studio-api/internal/http/handlers/webhooks"
	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/metrics"
	"github.com/uxerra/studio-api/internal/models"
)

// Handlers обработчики всех областей API.
type Handlers struct {
	Auth          *auth.Handler
	Users         *users.Handler
	Subscriptions *subscriptions.Handler
	Branding      *branding.Handler
	Content       *content.Handler
	Newsletter    *newsletter.Handler
	APIKeys       *apikeys.Handler
	Audit         *audit.Handler
	Admin         *admin.Handler
	Webhooks      *webhooks.Handler
}

// Limiters ограничители частоты запросов по IP.
type Limiters struct {
	API     *middlewarectx.RateLimiter
	Auth    *middlewarectx.RateLimiter
	AI      *middlewarectx.RateLimiter
	Webhook *middlewarectx.RateLimiter
}

// All все ограничители, для периодической очистки.
func (l Limiters) All() []*middlewarectx.RateLimiter {
	return []*middlewarectx.RateLimiter{l.API, l.Auth, l.AI, l.Webhook}
}

// Guards middleware доступа.
type Guards struct {
	Tokens        middlewarectx.TokenParser
	Keys          middlewarectx.KeyAuthenticator
	Subscriptions middlewarectx.SubscriptionGetter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	h Handlers,
	g Guards,
	l Limiters,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middlewarectx.ClientInfo,
		middleware.Logger,
		middleware.Recoverer,
		m.Middleware,
		render.SetContentType(render.ContentTypeJSON),
	)

	authenticated := middlewarectx.Auth(g.Tokens, g.Keys, logger)
	adminOnly := middlewarectx.RequireRole(models.RoleAdmin, logger)
	paid := middlewarectx.RequirePaidPlan(g.Subscriptions, logger)
	aiLimit := l.AI.Middleware(logger)

	r.Get("/health", h.Admin.Liveness)

	r.Route("/api", func(r chi.Router) {
		// Вебхуки провайдеров: без аутентификации, со своим лимитом
		r.Route("/webhooks", func(r chi.Router) {
			r.With(l.Webhook.Middleware(logger)).Post("/stripe", h.Webhooks.Stripe)
			r.With(l.Webhook.Middleware(logger)).Post("/mailerlite", h.Webhooks.MailerLite)
			r.Group(func(r chi.Router) {
				r.Use(l.API.Middleware(logger), authenticated, adminOnly)
				r.Get("/events", h.Webhooks.ListEvents)
				r.Get("/events/{id}", h.Webhooks.GetEvent)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(l.API.Middleware(logger))

			// Открытые конечные точки
			r.Group(func(r chi.Router) {
				r.Use(l.Auth.Middleware(logger))
				r.Post("/auth/register", h.Auth.Register)
				r.Post("/auth/login", h.Auth.Login)
			})
			r.Post("/newsletter/subscribe", h.Newsletter.Subscribe)
			r.Post("/newsletter/unsubscribe", h.Newsletter.Unsubscribe)

			// Группа с аутентификацией по JWT или API ключу
			r.Group(func(r chi.Router) {
				r.Use(authenticated)

				r.Get("/auth/profile", h.Auth.Profile)

				r.Route("/users/me", func(r chi.Router) {
					r.Get("/", h.Users.Me)
					r.Put("/", h.Users.Update)
					r.Delete("/", h.Users.Delete)
					r.Post("/change-password", h.Users.ChangePassword)
				})

				r.Route("/subscriptions", func(r chi.Router) {
					r.Get("/", h.Subscriptions.Get)
					r.Post("/create-checkout-session", h.Subscriptions.Checkout)
					r.Post("/create-portal-session", h.Subscriptions.Portal)
					r.Post("/cancel", h.Subscriptions.Cancel)
				})

				r.Route("/branding", func(r chi.Router) {
					r.Post("/", h.Branding.Create)
					r.Get("/", h.Branding.List)
					r.Get("/{id}", h.Branding.Get)
					r.Put("/{id}", h.Branding.Update)
					r.Delete("/{id}", h.Branding.Delete)
					r.With(paid, aiLimit).Post("/{id}/generate", h.Branding.Generate)
				})

				r.Route("/content", func(r chi.Router) {
					r.With(paid, aiLimit).Post("/generate", h.Content.Generate)
					r.Get("/", h.Content.List)
					r.Get("/{id}", h.Content.Get)
					r.Put("/{id}", h.Content.Update)
					r.Delete("/{id}", h.Content.Delete)
					r.With(paid, aiLimit).Post("/{id}/regenerate", h.Content.Regenerate)
				})

				r.Route("/api-keys", func(r chi.Router) {
					r.Post("/", h.APIKeys.Create)
					r.Get("/", h.APIKeys.List)
					r.Get("/{id}", h.APIKeys.Get)
					r.Put("/{id}", h.APIKeys.Update)
					r.Delete("/{id}", h.APIKeys.Delete)
					r.Post("/{id}/regenerate", h.APIKeys.Regenerate)
				})

				// Только для администратора
				r.Group(func(r chi.Router) {
					r.Use(adminOnly)

					r.Route("/newsletter/subscribers", func(r chi.Router) {
						r.Get("/", h.Newsletter.List)
						r.Get("/{email}", h.Newsletter.Get)
						r.Put("/{email}", h.Newsletter.Update)
						r.Delete("/{email}", h.Newsletter.Delete)
					})

					r.Route("/audit", func(r chi.Router) {
						r.Get("/", h.Audit.List)
						r.Get("/user/{userId}", h.Audit.ByUser)
						r.Get("/resource/{resource}/{resourceId}", h.Audit.ByResource)
						r.Get("/{id}", h.Audit.Get)
					})

					r.Route("/admin", func(r chi.Router) {
						r.Get("/users", h.Admin.ListUsers)
						r.Post("/users", h.Admin.CreateUser)
						r.Get("/users/{id}", h.Admin.GetUser)
						r.Put("/users/{id}", h.Admin.UpdateUser)
						r.Delete("/users/{id}", h.Admin.DeleteUser)
						r.Get("/dashboard", h.Admin.Dashboard)
						r.Get("/health", h.Admin.Health)
					})
				})
			})
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, r, http.StatusNotFound, "route not found")
	})
}
