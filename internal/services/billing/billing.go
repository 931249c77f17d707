// Package billing синхронизирует локальные подписки с платежным провайдером:
// checkout, портал, отмена и обработка вебхуков.
//
// Статус и конец периода подписки меняются только данными провайдера
// (вебхук) или явной отменой. Пользовательские ручки их не пишут.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uxerra/studio-api/internal/cache"
	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/rabbitmq"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/paymentprovider"
	"github.com/uxerra/studio-api/internal/services/audit"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// cacheRecheckDelay задержка повторного сброса кеша подписки после изменения.
const cacheRecheckDelay = 2 * time.Second

// Repository операции хранилища, нужные биллингу.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error

	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	CancelSubscriptionByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
	CancelSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)

	CreateWebhookEvent(ctx context.Context, e models.WebhookEvent) (string, error)
	MarkWebhookEventProcessed(ctx context.Context, id string) error
	MarkWebhookEventFailed(ctx context.Context, id, errText string) error
}

// Provider клиент платежного провайдера.
type Provider interface {
	Configured() bool
	CreateCustomer(ctx context.Context, email, name, userID string) (*paymentprovider.Customer, error)
	CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*paymentprovider.PortalSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
}

// Cache кеш подписок.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher публикует уведомления о смене подписки.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Auditor журнал действий.
type Auditor interface {
	Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any)
}

// Recorder метрики обработки вебхуков.
type Recorder interface {
	WebhookEvent(provider, eventType, status string)
}

// Options статическая конфигурация сервиса.
type Options struct {
	AppURL        string
	WebhookSecret string
	Plans         map[string]config.Plan
}

// Service сервис биллинга.
type Service struct {
	repo      Repository
	provider  Provider
	cache     Cache
	publisher Publisher
	auditor   Auditor
	metrics   Recorder
	log       *slog.Logger

	appURL        string
	webhookSecret string
	plans         map[string]config.Plan
	planByPrice   map[string]string
	now           func() time.Time
	// через recheckDelay ключ подписки сбрасывается повторно, 0 отключает
	recheckDelay time.Duration
}

// New создает Service. cache, publisher и metrics могут быть nil-получателями
// соответствующих типов: их методы безопасны для nil.
func New(
	repo Repository,
	provider Provider,
	c Cache,
	publisher Publisher,
	auditor Auditor,
	metrics Recorder,
	log *slog.Logger,
	opts Options,
) *Service {
	planByPrice := make(map[string]string, len(opts.Plans))
	for _, p := range opts.Plans {
		if p.PriceID != "" {
			planByPrice[p.PriceID] = p.Name
		}
	}
	return &Service{
		repo:          repo,
		provider:      provider,
		cache:         c,
		publisher:     publisher,
		auditor:       auditor,
		metrics:       metrics,
		log:           log,
		appURL:        strings.TrimRight(opts.AppURL, "/"),
		webhookSecret: opts.WebhookSecret,
		plans:         opts.Plans,
		planByPrice:   planByPrice,
		now:           time.Now,
		recheckDelay:  cacheRecheckDelay,
	}
}

// MapStatus переводит статус подписки провайдера в локальный.
func MapStatus(providerStatus string) string {
	switch providerStatus {
	case "active", "trialing":
		return models.SubscriptionActive
	case "canceled", "incomplete_expired":
		return models.SubscriptionCancelled
	default:
		return models.SubscriptionInactive
	}
}

// PlanForPrice возвращает тариф по цене провайдера. Неизвестная цена дает FREE.
func (s *Service) PlanForPrice(priceID string) string {
	if plan, ok := s.planByPrice[priceID]; ok {
		return plan
	}
	return models.PlanFree
}

// CreateCheckoutSession создает checkout сессию для оформления тарифа.
// Локальная подписка не создается: она появится из вебхука.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	const op = "services.billing.CreateCheckoutSession"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	plan, ok := s.plans[req.PlanID]
	if !ok {
		return nil, apperr.New(apperr.ErrValidation, "invalid plan")
	}
	if plan.PriceID == "" || !s.provider.Configured() {
		log.Warn("checkout requested but payments are not configured", slog.String("plan", req.PlanID))
		return nil, apperr.New(apperr.ErrNotConfigured, "payments are not configured")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.appURL + "/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.appURL + "/pricing"
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		CustomerID: customerID,
		PriceID:    plan.PriceID,
		UserID:     user.ID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, providerErr(err))
	}

	log.Info("checkout session created", slog.String("session_id", session.ID), slog.String("plan", req.PlanID))
	return &models.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	customer, err := s.provider.CreateCustomer(ctx, user.Email, user.Name, user.ID)
	if err != nil {
		return "", providerErr(err)
	}
	if err = s.repo.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		return "", err
	}
	user.StripeCustomerID = customer.ID
	return customer.ID, nil
}

// GetSubscription возвращает подписку пользователя, читая через кеш.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "services.billing.GetSubscription"
	key := cache.SubscriptionKey(userID)

	var cached models.Subscription
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("subscription cache read failed", slog.String("op", op), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "subscription not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.cache.Set(ctx, key, sub, cache.SubscriptionTTL); err != nil {
		s.log.Warn("subscription cache write failed", slog.String("op", op), sl.Err(err))
	}
	return sub, nil
}

// CancelSubscription отменяет подписку у провайдера, затем локально.
// Если провайдер вернул ошибку, локальная запись не меняется. Ответ 404
// значит, что у провайдера подписки уже нет, и отмена идет только локально.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "services.billing.CancelSubscription"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "subscription not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status == models.SubscriptionCancelled {
		return sub, nil
	}

	if sub.StripeSubscriptionID != "" {
		_, err = s.provider.CancelSubscription(ctx, sub.StripeSubscriptionID)
		switch {
		case paymentprovider.IsNotFound(err):
			log.Warn("subscription is unknown to provider, cancelling locally",
				slog.String("stripe_subscription_id", sub.StripeSubscriptionID))
		case err != nil:
			log.Error("provider rejected cancellation", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, providerErr(err))
		}
	}

	cancelled, err := s.repo.CancelSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.auditor.Record(ctx, userID, audit.ActionSubscriptionEnd, audit.ResourceSubscription, cancelled.ID, map[string]any{
		"stripeSubscriptionId": cancelled.StripeSubscriptionID,
	})
	s.afterChange(ctx, cancelled)
	log.Info("subscription cancelled", slog.String("subscription_id", cancelled.ID))
	return cancelled, nil
}

// CreatePortalSession создает сессию billing портала для управления оплатой.
func (s *Service) CreatePortalSession(ctx context.Context, userID, returnURL string) (*models.PortalSession, error) {
	const op = "services.billing.CreatePortalSession"

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.StripeCustomerID == "" {
		return nil, apperr.New(apperr.ErrNotFound, "no billing account found")
	}
	if !s.provider.Configured() {
		return nil, apperr.New(apperr.ErrNotConfigured, "payments are not configured")
	}

	session, err := s.provider.CreatePortalSession(ctx, user.StripeCustomerID, returnURL)
	if err != nil {
		s.log.Error("failed to create portal session", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, providerErr(err))
	}
	return &models.PortalSession{URL: session.URL}, nil
}

func (s *Service) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	}
	return user, err
}

// afterChange сбрасывает кеш и публикует уведомление. Ошибки не
// откатывают изменение: подписка уже записана.
func (s *Service) afterChange(ctx context.Context, sub *models.Subscription) {
	const op = "services.billing.afterChange"
	log := s.log.With(slog.String("op", op), slog.String("user_id", sub.UserID))

	key := cache.SubscriptionKey(sub.UserID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}
	if s.recheckDelay > 0 {
		// параллельный GetSubscription мог прочитать старую строку до коммита
		// и положить ее в кеш уже после первого сброса
		detached := context.WithoutCancel(ctx)
		time.AfterFunc(s.recheckDelay, func() {
			if err := s.cache.Invalidate(detached, key); err != nil {
				log.Warn("failed to re-invalidate subscription cache", sl.Err(err))
			}
		})
	}

	notice := models.BillingNotice{
		Kind:             models.NoticeStatusChanged,
		UserID:           sub.UserID,
		Status:           sub.Status,
		Plan:             sub.Plan,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
	if user, err := s.repo.GetUserByID(ctx, sub.UserID); err == nil {
		notice.Email, notice.Name = user.Email, user.Name
	} else {
		log.Warn("billing notice without recipient", sl.Err(err))
	}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingBilling, notice); err != nil {
		log.Error("failed to publish billing notice", sl.Err(err))
	}
}

// providerErr оставляет таксономию apperr (например, открытый breaker)
// и переводит ненастроенный клиент в 503. Остальное уходит как 500.
func providerErr(err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, paymentprovider.ErrNotConfigured):
		return apperr.New(apperr.ErrNotConfigured, "payments are not configured")
	default:
		return err
	}
}
