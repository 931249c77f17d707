package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

const subscriptionColumns = `id, user_id, stripe_subscription_id, stripe_price_id, status, plan,
	current_period_end, created_at, updated_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		sub       models.Subscription
		stripeID  sql.NullString
		priceID   sql.NullString
		periodEnd sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &stripeID, &priceID, &sub.Status, &sub.Plan,
		&periodEnd, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.StripeSubscriptionID = stripeID.String
	sub.StripePriceID = priceID.String
	sub.CurrentPeriodEnd = timePtr(periodEnd)
	return &sub, nil
}

// GetSubscriptionByUserID возвращает подписку пользователя.
func (s *Storage) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByUserID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// GetSubscriptionByStripeID возвращает подписку по внешнему идентификатору.
func (s *Storage) GetSubscriptionByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByStripeID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, stripeID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// UpsertSubscription записывает состояние подписки по внешнему идентификатору.
// Существующая строка с тем же внешним id перезаписывается, кроме статуса
// CANCELLED, который не меняется. Если такой строки нет, строка пользователя
// создается, а заменяется только если она отменена или еще без внешнего id.
// Иначе событие относится к вытесненной подписке и возвращается ErrSuperseded.
// Обе операции в одной транзакции.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.UpsertSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updateQuery := `UPDATE subscriptions
			  SET stripe_price_id = $2,
			      status = CASE WHEN status = 'CANCELLED' THEN status ELSE $3 END,
			      plan = $4,
			      current_period_end = $5,
			      updated_at = NOW()
			  WHERE stripe_subscription_id = $1
			  RETURNING ` + subscriptionColumns
	saved, err := scanSubscription(tx.QueryRowContext(ctx, updateQuery,
		nullString(sub.StripeSubscriptionID), nullString(sub.StripePriceID),
		sub.Status, sub.Plan, nullTime(sub.CurrentPeriodEnd)))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapErr(op, err)
	}

	if saved == nil {
		insertQuery := `INSERT INTO subscriptions
				  (user_id, stripe_subscription_id, stripe_price_id, status, plan, current_period_end)
				  VALUES ($1, $2, $3, $4, $5, $6)
				  ON CONFLICT (user_id) DO UPDATE
				  SET stripe_subscription_id = EXCLUDED.stripe_subscription_id,
				      stripe_price_id = EXCLUDED.stripe_price_id,
				      status = EXCLUDED.status,
				      plan = EXCLUDED.plan,
				      current_period_end = EXCLUDED.current_period_end,
				      updated_at = NOW()
				  WHERE subscriptions.status = 'CANCELLED' OR subscriptions.stripe_subscription_id IS NULL
				  RETURNING ` + subscriptionColumns
		saved, err = scanSubscription(tx.QueryRowContext(ctx, insertQuery,
			sub.UserID, nullString(sub.StripeSubscriptionID), nullString(sub.StripePriceID),
			sub.Status, sub.Plan, nullTime(sub.CurrentPeriodEnd)))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSuperseded)
		}
		if err != nil {
			return nil, wrapErr(op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// CancelSubscriptionByStripeID переводит подписку в CANCELLED, не трогая
// дату окончания периода.
func (s *Storage) CancelSubscriptionByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	const op = "storage.CancelSubscriptionByStripeID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE subscriptions
			  SET status = 'CANCELLED', updated_at = NOW()
			  WHERE stripe_subscription_id = $1
			  RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, stripeID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// CancelSubscriptionByUserID переводит подписку пользователя в CANCELLED.
func (s *Storage) CancelSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.CancelSubscriptionByUserID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE subscriptions
			  SET status = 'CANCELLED', updated_at = NOW()
			  WHERE user_id = $1
			  RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}
