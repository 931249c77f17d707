package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/lib/password"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/migrations"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

const (
	demoEmail    = "demo@uxerra.pro"
	demoPassword = "demo1234"
	demoName     = "Demo Admin"
)

// SeedStore операции хранилища, нужные для демо данных.
type SeedStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	UpdateUser(ctx context.Context, user models.User) (*models.User, error)
	UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo admin with an active PRO subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Env == config.EnvProd {
				return errors.New("seed is disabled in prod")
			}
			logger := sl.New(cfg.Env, os.Stdout)

			db, err := repository.New(cfg.StorageConnectionString)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err = migrations.Run(db.DB); err != nil {
				return err
			}

			user, err := seed(cmd.Context(), db, time.Now())
			if err != nil {
				return err
			}
			logger.Info("demo user ready", slog.String("email", user.Email), slog.String("user_id", user.ID))
			return nil
		},
	}
}

// seed создает демо администратора или повышает существующего и выдает
// ему активную подписку PRO на 30 дней, если у него нет действующей
// подписки провайдера. Повторный запуск безопасен.
func seed(ctx context.Context, store SeedStore, now time.Time) (*models.User, error) {
	const op = "seed"

	user, err := store.GetUserByEmail(ctx, demoEmail)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, hashErr := password.GetHash(demoPassword)
		if hashErr != nil {
			return nil, fmt.Errorf("%s: %w", op, hashErr)
		}
		user, err = store.CreateUser(ctx, models.User{
			Email:        demoEmail,
			Name:         demoName,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case user.Role != models.RoleAdmin:
		user.Role = models.RoleAdmin
		if user, err = store.UpdateUser(ctx, *user); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	periodEnd := now.AddDate(0, 0, 30)
	if _, err = store.UpsertSubscription(ctx, models.Subscription{
		UserID:           user.ID,
		Status:           models.SubscriptionActive,
		Plan:             models.PlanPro,
		CurrentPeriodEnd: &periodEnd,
	}); err != nil && !errors.Is(err, repository.ErrSuperseded) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
