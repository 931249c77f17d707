package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
)

// SubscriptionGetter источник подписки пользователя.
type SubscriptionGetter interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// RequirePaidPlan пропускает только пользователей с активным PRO или AGENCY.
func RequirePaidPlan(subs SubscriptionGetter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFrom(r.Context())
			if userID == "" {
				response.Fail(w, r, http.StatusUnauthorized, "authentication required")
				return
			}

			sub, err := subs.GetSubscription(r.Context(), userID)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				log.Error("failed to get subscription", slog.String("user_id", userID), sl.Err(err))
				response.Fail(w, r, http.StatusInternalServerError, "internal server error")
				return
			}
			if !sub.IsActivePaid() {
				response.Fail(w, r, http.StatusForbidden, "an active PRO or AGENCY subscription is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
