// Package middlewarectx содержит HTTP middleware аутентификации и доступа.
//
// Auth принимает JWT в заголовке Authorization или API ключ в X-API-Key и
// кладет в контекст id и роль пользователя. RequireRole и RequirePaidPlan
// ограничивают доступ по роли и тарифу, RateLimit ограничивает частоту
// запросов с одного IP.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/jwt"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
)

// Key тип для ключей контекста HTTP запроса.
type Key string

const (
	// UserID ключ id пользователя в контексте.
	UserID Key = "user_id"
	// Role ключ роли пользователя в контексте.
	Role Key = "role"
	// APIKeyID ключ id API ключа, если запрос аутентифицирован ключом.
	APIKeyID Key = "api_key_id"

	// APIKeyHeader заголовок с API ключом.
	APIKeyHeader = "X-API-Key"
)

// TokenParser проверяет JWT.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// KeyAuthenticator проверяет API ключ.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, key string) (*models.User, *models.APIKey, error)
}

// UserIDFrom id пользователя из контекста.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}

// RoleFrom роль пользователя из контекста.
func RoleFrom(ctx context.Context) string {
	role, _ := ctx.Value(Role).(string)
	return role
}

// WithUser контекст с id и ролью пользователя.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, UserID, userID)
	return context.WithValue(ctx, Role, role)
}

// Auth возвращает middleware, который требует JWT или API ключ.
//
// При успехе в контекст попадают id пользователя и роль,
// иначе ответ 401 Unauthorized.
func Auth(tokens TokenParser, keys KeyAuthenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Auth"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
				if !ok || tokenStr == "" {
					log.Warn("malformed authorization header")
					response.Fail(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
					return
				}
				claims, err := tokens.ParseToken(tokenStr)
				if err != nil {
					log.Warn("invalid or expired token", sl.Err(err))
					response.Fail(w, r, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Role)))
				return
			}

			if key := r.Header.Get(APIKeyHeader); key != "" {
				user, apiKey, err := keys.Authenticate(r.Context(), key)
				if err != nil {
					log.Warn("api key rejected", sl.Err(err))
					response.Fail(w, r, http.StatusUnauthorized, "invalid or expired api key")
					return
				}
				ctx := WithUser(r.Context(), user.ID, user.Role)
				ctx = context.WithValue(ctx, APIKeyID, apiKey.ID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			log.Warn("no credentials provided")
			response.Fail(w, r, http.StatusUnauthorized, "authentication required")
		})
	}
}

// RequireRole пропускает только пользователей с ролью role, остальным 403.
func RequireRole(role string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFrom(r.Context()) != role {
				log.Warn("access denied",
					slog.String("user_id", UserIDFrom(r.Context())),
					slog.String("required_role", role),
				)
				response.Fail(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
