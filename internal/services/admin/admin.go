// Package admin сводка и состояние сервиса для администраторов, а также
// просмотр журнала вебхуков.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uxerra/studio-api/internal/cache"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// Состояния зависимостей в отчете о здоровье.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"

	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

const pingTimeout = 2 * time.Second

// Repository агрегаты и журнал вебхуков.
type Repository interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, provider, status string, limit, offset int) ([]*models.WebhookEvent, int, error)
	Ping(ctx context.Context) error
}

// Cache кеш сводки.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Pinger зависимость, доступность которой попадает в отчет.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps необязательные зависимости. Nil означает, что зависимость не настроена.
type Deps struct {
	Redis     Pinger
	RabbitMQ  Pinger
	Providers map[string]bool
}

// Service сервис админ панели.
type Service struct {
	repo  Repository
	cache Cache
	deps  Deps
	log   *slog.Logger
}

// New создает Service.
func New(repo Repository, c Cache, deps Deps, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: c, deps: deps, log: log}
}

// Dashboard сводка, кешируется на минуту.
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	const op = "services.admin.Dashboard"
	log := s.log.With(slog.String("op", op))

	var stats models.DashboardStats
	found, err := s.cache.Get(ctx, cache.DashboardKey, &stats)
	if err != nil {
		log.Warn("dashboard cache read failed", sl.Err(err))
	}
	if found {
		return &stats, nil
	}

	fresh, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.cache.Set(ctx, cache.DashboardKey, fresh, cache.DashboardTTL); err != nil {
		log.Warn("dashboard cache write failed", sl.Err(err))
	}
	return fresh, nil
}

// Health опрашивает базу, Redis и RabbitMQ. Недоступная база дает HealthDown,
// недоступный Redis или брокер дает HealthDegraded.
func (s *Service) Health(ctx context.Context) *models.HealthReport {
	report := &models.HealthReport{
		Status:       HealthOK,
		Dependencies: map[string]string{},
		Providers:    map[string]bool{},
	}
	for name, configured := range s.deps.Providers {
		report.Providers[name] = configured
	}

	report.Dependencies["database"] = s.ping(ctx, "database", s.repo)
	report.Dependencies["redis"] = s.ping(ctx, "redis", s.deps.Redis)
	report.Dependencies["rabbitmq"] = s.ping(ctx, "rabbitmq", s.deps.RabbitMQ)

	switch {
	case report.Dependencies["database"] != StatusUp:
		report.Status = HealthDown
	case report.Dependencies["redis"] == StatusDown, report.Dependencies["rabbitmq"] == StatusDown:
		report.Status = HealthDegraded
	}
	return report
}

func (s *Service) ping(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return StatusDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		s.log.Warn("dependency is down", slog.String("dependency", name), sl.Err(err))
		return StatusDown
	}
	return StatusUp
}

// ListWebhookEvents страница журнала вебхуков.
func (s *Service) ListWebhookEvents(ctx context.Context, provider, status string, page, limit int) (*models.Page[*models.WebhookEvent], error) {
	const op = "services.admin.ListWebhookEvents"
	switch provider {
	case "", models.ProviderStripe, models.ProviderMailerLite:
	default:
		return nil, apperr.New(apperr.ErrValidation, "unknown provider")
	}
	switch status {
	case "", models.WebhookReceived, models.WebhookProcessed, models.WebhookFailed:
	default:
		return nil, apperr.New(apperr.ErrValidation, "unknown status")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	items, total, err := s.repo.ListWebhookEvents(ctx, provider, status, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Page[*models.WebhookEvent]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// GetWebhookEvent событие журнала по id.
func (s *Service) GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	const op = "services.admin.GetWebhookEvent"
	e, err := s.repo.GetWebhookEvent(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "webhook event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}
