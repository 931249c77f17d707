package uxerrastudio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/uxerra/studio-api/internal/cache"
	"github.com/uxerra/studio-api/internal/config"
	adminhandler "github.com/uxerra/studio-api/internal/http/handlers/admin"
	apikeyshandler "github.com/uxerra/studio-api/internal/http/handlers/apikeys"
	audithandler "github.com/uxerra/studio-api/internal/http/handlers/audit"
	authhandler "github.com/uxerra/studio-api/internal/http/handlers/auth"
	brandinghandler "github.com/uxerra/studio-api/internal/http/handlers/branding"
	contenthandler "github.com/uxerra/studio-api/internal/http/handlers/content"
	newsletterhandler "github.com/uxerra/studio-api/internal/http/handlers/newsletter"
	subscriptionshandler "github.com/uxerra/studio-api/internal/http/handlers/subscriptions"
	usershandler "github.com/uxerra/studio-api/internal/http/handlers/users"
	webhookshandler "github.com/uxerra/studio-api/internal/http/handlers/webhooks"
	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/lib/jwt"
	"github.com/uxerra/studio-api/internal/lib/rabbitmq"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/mailerlite"
	"github.com/uxerra/studio-api/internal/metrics"
	"github.com/uxerra/studio-api/internal/migrations"
	"github.com/uxerra/studio-api/internal/openai"
	"github.com/uxerra/studio-api/internal/paymentprovider"
	adminservice "github.com/uxerra/studio-api/internal/services/admin"
	apikeysservice "github.com/uxerra/studio-api/internal/services/apikeys"
	auditservice "github.com/uxerra/studio-api/internal/services/audit"
	authservice "github.com/uxerra/studio-api/internal/services/auth"
	billingservice "github.com/uxerra/studio-api/internal/services/billing"
	brandingservice "github.com/uxerra/studio-api/internal/services/branding"
	contentservice "github.com/uxerra/studio-api/internal/services/content"
	newsletterservice "github.com/uxerra/studio-api/internal/services/newsletter"
	usersservice "github.com/uxerra/studio-api/internal/services/users"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

const (
	shutdownTimeout = 15 * time.Second
	cleanupInterval = 10 * time.Minute
)

// App HTTP сервер API со всеми зависимостями.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
	limiters Limiters
}

// New подключает хранилище, применяет миграции и собирает сервисы.
// Redis и RabbitMQ необязательны: пустой адрес или ошибка подключения
// отключают кеш и публикацию уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	app := &App{logger: logger, db: db}

	var cachePinger, rabbitPinger adminservice.Pinger
	if cfg.AddressRedis != "" {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis unavailable, cache disabled", sl.Err(err))
		} else {
			cachePinger = app.cache
		}
	}

	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err == nil {
			app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.GetNotificationQueues())
			if err != nil {
				_ = app.conn.Close()
				app.conn = nil
			}
		}
		if err != nil {
			logger.Warn("rabbitmq unavailable, billing notices disabled", sl.Err(err))
		} else {
			publisher = rabbitmq.NewPublisher(app.ch)
			rabbitPinger = publisher
		}
	}

	stripe := paymentprovider.NewClient(cfg.StripeSecretKey, logger, paymentprovider.WithRecorder(m))
	ai := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger, openai.WithRecorder(m))
	mailer := mailerlite.NewClient(cfg.MailerLiteAPIKey, cfg.MailerLiteGroupID, logger, mailerlite.WithRecorder(m))

	auditService := auditservice.New(db, logger)
	billingService := billingservice.New(db, stripe, app.cache, publisher, auditService, m, logger, billingservice.Options{
		AppURL:        cfg.AppURL,
		WebhookSecret: cfg.StripeWebhookSecret,
		Plans:         cfg.Plans(),
	})
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.New(db, jwtMaker, auditService, logger)
	usersService := usersservice.New(db, billingService, auditService, logger)
	brandingService := brandingservice.New(db, ai, logger)
	contentService := contentservice.New(db, ai, cfg.OpenAIModel, logger)
	apiKeysService := apikeysservice.New(db, auditService, logger)
	newsletterService := newsletterservice.New(db, mailer, m, cfg.MailerLiteWebhookSecret, logger)
	adminService := adminservice.New(db, app.cache, adminservice.Deps{
		Redis:    cachePinger,
		RabbitMQ: rabbitPinger,
		Providers: map[string]bool{
			"stripe":     stripe.Configured(),
			"openai":     ai.Configured(),
			"mailerlite": mailer.Configured(),
		},
	}, logger)

	expose := cfg.Env != config.EnvProd
	handlers := Handlers{
		Auth:          authhandler.New(logger, authService, expose),
		Users:         usershandler.New(logger, usersService, expose),
		Subscriptions: subscriptionshandler.New(logger, billingService, expose),
		Branding:      brandinghandler.New(logger, brandingService, expose),
		Content:       contenthandler.New(logger, contentService, expose),
		Newsletter:    newsletterhandler.New(logger, newsletterService, expose),
		APIKeys:       apikeyshandler.New(logger, apiKeysService, expose),
		Audit:         audithandler.New(logger, auditService, expose),
		Admin:         adminhandler.New(logger, usersService, adminService, expose),
		Webhooks:      webhookshandler.New(logger, billingService, newsletterService, adminService, expose),
	}
	app.limiters = Limiters{
		API:     middlewarectx.NewRateLimiter("api", cfg.APIMax, cfg.APIWindow),
		Auth:    middlewarectx.NewRateLimiter("auth", cfg.AuthMax, cfg.AuthWindow),
		AI:      middlewarectx.NewRateLimiter("ai", cfg.AIMax, cfg.AIWindow),
		Webhook: middlewarectx.NewRateLimiter("webhook", cfg.WebhookMax, cfg.WebhookWindow),
	}
	guards := Guards{Tokens: jwtMaker, Keys: apiKeysService, Subscriptions: billingService}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, handlers, guards, app.limiters, m, registry)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: 2 * cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()
	go a.cleanupLimiters(ctx)

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, l := range a.limiters.All() {
				l.Cleanup()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis client", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
