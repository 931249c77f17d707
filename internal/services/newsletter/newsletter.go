// Package newsletter ведет подписчиков рассылки и синхронизирует их
// с MailerLite в обе стороны: вызовы API и входящие вебхуки.
package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/mailerlite"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

const maxPageSize = 100

// Repository хранилище подписчиков и журнал вебхуков.
type Repository interface {
	UpsertNewsletterSubscriber(ctx context.Context, sub models.NewsletterSubscriber) (*models.NewsletterSubscriber, error)
	GetNewsletterSubscriber(ctx context.Context, email string) (*models.NewsletterSubscriber, error)
	ListNewsletterSubscribers(ctx context.Context, status string, limit, offset int) ([]*models.NewsletterSubscriber, int, error)
	UpdateNewsletterSubscriber(ctx context.Context, sub models.NewsletterSubscriber) (*models.NewsletterSubscriber, error)
	SetNewsletterSubscriberStatus(ctx context.Context, email, status string) error
	DeleteNewsletterSubscriber(ctx context.Context, email string) error

	CreateWebhookEvent(ctx context.Context, e models.WebhookEvent) (string, error)
	MarkWebhookEventProcessed(ctx context.Context, id string) error
	MarkWebhookEventFailed(ctx context.Context, id, errText string) error
}

// Provider API рассылок.
type Provider interface {
	Subscribe(ctx context.Context, s mailerlite.Subscriber) error
	Unsubscribe(ctx context.Context, email string) error
	UpdateSubscriber(ctx context.Context, email, name string, fields map[string]any) error
	GroupID() string
}

// Recorder метрики вебхуков.
type Recorder interface {
	WebhookEvent(provider, eventType, status string)
}

// Service сервис рассылки.
type Service struct {
	repo          Repository
	provider      Provider
	metrics       Recorder
	webhookSecret string
	log           *slog.Logger
}

// New создает Service.
func New(repo Repository, provider Provider, metrics Recorder, webhookSecret string, log *slog.Logger) *Service {
	return &Service{repo: repo, provider: provider, metrics: metrics, webhookSecret: webhookSecret, log: log}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Subscribe добавляет адрес в MailerLite и сохраняет его как active.
// Уже активный подписчик дает 409.
func (s *Service) Subscribe(ctx context.Context, req models.SubscribeRequest) (*models.NewsletterSubscriber, error) {
	const op = "services.newsletter.Subscribe"
	email := normalize(req.Email)
	log := s.log.With(slog.String("op", op))

	existing, err := s.repo.GetNewsletterSubscriber(ctx, email)
	switch {
	case err == nil && existing.Status == models.NewsletterActive:
		return nil, apperr.New(apperr.ErrConflict, "email is already subscribed")
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.provider.Subscribe(ctx, mailerlite.Subscriber{Email: email, Name: req.Name, Fields: req.Fields}); err != nil {
		log.Error("mailerlite subscribe failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, mailerlite.AppError(err))
	}

	groups := req.Groups
	if g := s.provider.GroupID(); g != "" && !slices.Contains(groups, g) {
		groups = append(slices.Clone(groups), g)
	}
	sub, err := s.repo.UpsertNewsletterSubscriber(ctx, models.NewsletterSubscriber{
		Email:  email,
		Name:   req.Name,
		Status: models.NewsletterActive,
		Groups: groups,
		Fields: req.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("newsletter subscriber added", slog.String("subscriber_id", sub.ID))
	return sub, nil
}

// Unsubscribe отписывает известный адрес.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	const op = "services.newsletter.Unsubscribe"
	email = normalize(email)

	if _, err := s.Get(ctx, email); err != nil {
		return err
	}
	if err := s.provider.Unsubscribe(ctx, email); err != nil {
		s.log.Error("mailerlite unsubscribe failed", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, mailerlite.AppError(err))
	}
	if err := s.repo.SetNewsletterSubscriberStatus(ctx, email, models.NewsletterUnsubscribed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// List страница подписчиков, опционально с фильтром по статусу.
func (s *Service) List(ctx context.Context, status string, page, limit int) (*models.Page[*models.NewsletterSubscriber], error) {
	const op = "services.newsletter.List"
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = 20
	}
	items, total, err := s.repo.ListNewsletterSubscribers(ctx, status, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Page[*models.NewsletterSubscriber]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Get подписчик по email.
func (s *Service) Get(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	const op = "services.newsletter.Get"
	sub, err := s.repo.GetNewsletterSubscriber(ctx, normalize(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "subscriber not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// Update правка подписчика администратором. Имя и поля уходят в MailerLite,
// переход в unsubscribed отписывает адрес у провайдера.
func (s *Service) Update(ctx context.Context, email string, req models.UpdateSubscriberRequest) (*models.NewsletterSubscriber, error) {
	const op = "services.newsletter.Update"
	sub, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	profileChanged := false
	if req.Name != nil && *req.Name != sub.Name {
		sub.Name = *req.Name
		profileChanged = true
	}
	if req.Fields != nil {
		sub.Fields = req.Fields
		profileChanged = true
	}
	if req.Groups != nil {
		sub.Groups = req.Groups
	}
	unsubscribe := req.Status != nil && *req.Status == models.NewsletterUnsubscribed && sub.Status != models.NewsletterUnsubscribed
	if req.Status != nil {
		sub.Status = *req.Status
	}

	if profileChanged {
		if err = s.provider.UpdateSubscriber(ctx, sub.Email, sub.Name, sub.Fields); err != nil {
			return nil, fmt.Errorf("%s: %w", op, mailerlite.AppError(err))
		}
	}
	if unsubscribe {
		if err = s.provider.Unsubscribe(ctx, sub.Email); err != nil {
			return nil, fmt.Errorf("%s: %w", op, mailerlite.AppError(err))
		}
	}

	updated, err := s.repo.UpdateNewsletterSubscriber(ctx, *sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Delete удаляет локальную запись подписчика.
func (s *Service) Delete(ctx context.Context, email string) error {
	const op = "services.newsletter.Delete"
	err := s.repo.DeleteNewsletterSubscriber(ctx, normalize(email))
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.ErrNotFound, "subscriber not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleWebhook принимает пачку событий MailerLite, журналирует ее одной
// записью и отражает статусы подписчиков локально.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.WebhookResult, error) {
	const op = "services.newsletter.HandleWebhook"
	log := s.log.With(slog.String("op", op))

	if s.webhookSecret == "" {
		log.Error("mailerlite webhook secret is not configured")
		return nil, apperr.New(apperr.ErrNotConfigured, "webhooks are not configured")
	}
	if !mailerlite.VerifySignature(s.webhookSecret, payload, signature) {
		log.Warn("mailerlite webhook signature rejected")
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid webhook signature")
	}

	var body mailerlite.WebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Events) == 0 {
		log.Warn("malformed mailerlite payload", sl.Err(err))
		return nil, apperr.New(apperr.ErrValidation, "malformed webhook payload")
	}
	eventType := body.Events[0].Type

	journalID, err := s.repo.CreateWebhookEvent(ctx, models.WebhookEvent{
		Provider: models.ProviderMailerLite,
		Type:     eventType,
		Payload:  payload,
	})
	if err != nil {
		log.Error("failed to journal webhook event", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var errs []error
	for _, ev := range body.Events {
		if err := s.mirror(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", ev.Type, ev.Data.Subscriber.Email, err))
		}
	}

	status := models.WebhookProcessed
	if dispatchErr := errors.Join(errs...); dispatchErr != nil {
		status = models.WebhookFailed
		log.Error("mailerlite event processing failed", sl.Err(dispatchErr))
		if err = s.repo.MarkWebhookEventFailed(ctx, journalID, dispatchErr.Error()); err != nil {
			log.Error("failed to mark webhook event failed", sl.Err(err))
		}
	} else if err = s.repo.MarkWebhookEventProcessed(ctx, journalID); err != nil {
		log.Error("failed to mark webhook event processed", sl.Err(err))
	}

	s.metrics.WebhookEvent(models.ProviderMailerLite, eventType, status)
	log.Info("mailerlite webhook handled", slog.Int("events", len(body.Events)), slog.String("status", status))
	return &models.WebhookResult{Received: true, EventID: journalID, Status: status}, nil
}

func (s *Service) mirror(ctx context.Context, ev mailerlite.WebhookEvent) error {
	email := normalize(ev.Data.Subscriber.Email)
	if email == "" {
		return errors.New("subscriber email is missing")
	}

	var status string
	switch ev.Type {
	case mailerlite.EventSubscriberCreate:
		sub := models.NewsletterSubscriber{
			Email:  email,
			Name:   ev.Data.Subscriber.Name,
			Status: models.NewsletterActive,
			Fields: ev.Data.Subscriber.Fields,
		}
		if existing, err := s.repo.GetNewsletterSubscriber(ctx, email); err == nil {
			sub.Groups = existing.Groups
		} else if g := s.provider.GroupID(); g != "" {
			sub.Groups = []string{g}
		}
		_, err := s.repo.UpsertNewsletterSubscriber(ctx, sub)
		return err
	case mailerlite.EventSubscriberUnsubscribe:
		status = models.NewsletterUnsubscribed
	case mailerlite.EventSubscriberBounced:
		status = models.NewsletterBounced
	default:
		return nil
	}

	err := s.repo.SetNewsletterSubscriberStatus(ctx, email, status)
	if errors.Is(err, repository.ErrNotFound) {
		// адрес подписан в обход API, локально отражать нечего
		return nil
	}
	return err
}
