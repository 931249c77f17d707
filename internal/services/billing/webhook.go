package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/paymentprovider"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

var errOwnerNotFound = errors.New("subscription owner not found")

// HandleWebhookEvent проверяет подпись, журналирует событие и применяет его.
//
// Ошибка возвращается только если событие нельзя принять: неверная подпись
// (401, без записей в базу) или сбой записи в журнал (500, провайдер
// повторит доставку). Ошибки обработки фиксируются в журнале как failed.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) (*models.WebhookResult, error) {
	const op = "services.billing.HandleWebhookEvent"
	log := s.log.With(slog.String("op", op))

	if s.webhookSecret == "" {
		log.Error("stripe webhook secret is not configured")
		return nil, apperr.New(apperr.ErrNotConfigured, "webhooks are not configured")
	}

	event, err := paymentprovider.ConstructEvent(payload, signature, s.webhookSecret, s.now())
	switch {
	case isSignatureErr(err):
		log.Warn("webhook signature rejected", sl.Err(err))
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid webhook signature")
	case err != nil:
		log.Warn("malformed webhook payload", sl.Err(err))
		return nil, apperr.New(apperr.ErrValidation, "malformed webhook payload")
	}
	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	journalID, err := s.repo.CreateWebhookEvent(ctx, models.WebhookEvent{
		Provider:        models.ProviderStripe,
		ProviderEventID: event.ID,
		Type:            event.Type,
		Payload:         payload,
	})
	if err != nil {
		log.Error("failed to journal webhook event", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := models.WebhookProcessed
	if dispatchErr := s.dispatch(ctx, event); dispatchErr != nil {
		status = models.WebhookFailed
		log.Error("webhook event processing failed", sl.Err(dispatchErr))
		if err = s.repo.MarkWebhookEventFailed(ctx, journalID, dispatchErr.Error()); err != nil {
			log.Error("failed to mark webhook event failed", sl.Err(err))
		}
	} else if err = s.repo.MarkWebhookEventProcessed(ctx, journalID); err != nil {
		log.Error("failed to mark webhook event processed", sl.Err(err))
	}

	s.metrics.WebhookEvent(models.ProviderStripe, event.Type, status)
	log.Info("webhook event handled", slog.String("status", status))
	return &models.WebhookResult{Received: true, EventID: event.ID, Status: status}, nil
}

func (s *Service) dispatch(ctx context.Context, event *paymentprovider.Event) error {
	switch event.Type {
	case paymentprovider.EventSubscriptionCreated, paymentprovider.EventSubscriptionUpdated:
		sub, err := event.Subscription()
		if err != nil {
			return err
		}
		return s.syncSubscription(ctx, sub)
	case paymentprovider.EventSubscriptionDeleted:
		sub, err := event.Subscription()
		if err != nil {
			return err
		}
		return s.markDeleted(ctx, sub)
	default:
		return nil
	}
}

// syncSubscription перезаписывает локальную подписку данными провайдера.
// Запись, уже отмененная для того же внешнего id, остается CANCELLED.
// Событие по подписке, которую у пользователя сменила другая, пропускается.
func (s *Service) syncSubscription(ctx context.Context, sub *paymentprovider.Subscription) error {
	const op = "services.billing.syncSubscription"

	userID, err := s.resolveOwner(ctx, sub)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	row, err := s.repo.UpsertSubscription(ctx, models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        sub.PriceID(),
		Status:               MapStatus(sub.Status),
		Plan:                 s.PlanForPrice(sub.PriceID()),
		CurrentPeriodEnd:     sub.PeriodEnd(),
	})
	if errors.Is(err, repository.ErrSuperseded) {
		s.log.Info("event for superseded subscription ignored",
			slog.String("op", op), slog.String("user_id", userID), slog.String("subscription_id", sub.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.afterChange(ctx, row)
	return nil
}

func (s *Service) markDeleted(ctx context.Context, sub *paymentprovider.Subscription) error {
	const op = "services.billing.markDeleted"

	row, err := s.repo.CancelSubscriptionByStripeID(ctx, sub.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: unknown subscription %s", op, sub.ID)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.afterChange(ctx, row)
	return nil
}

// resolveOwner ищет владельца по metadata.user_id, затем по id клиента.
func (s *Service) resolveOwner(ctx context.Context, sub *paymentprovider.Subscription) (string, error) {
	if userID := sub.Metadata["user_id"]; userID != "" {
		user, err := s.repo.GetUserByID(ctx, userID)
		if err == nil {
			return user.ID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
	}
	if sub.Customer != "" {
		user, err := s.repo.GetUserByStripeCustomerID(ctx, sub.Customer)
		if err == nil {
			return user.ID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
	}
	return "", errOwnerNotFound
}

func isSignatureErr(err error) bool {
	return errors.Is(err, paymentprovider.ErrInvalidHeader) ||
		errors.Is(err, paymentprovider.ErrNoValidSignature) ||
		errors.Is(err, paymentprovider.ErrTooOld) ||
		errors.Is(err, paymentprovider.ErrNoWebhookSecret)
}
