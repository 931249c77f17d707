// Package users реализует HTTP обработчики аккаунта текущего пользователя.
package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/http/request"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/models"
)

// Service операции над аккаунтом.
type Service interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error
	DeleteAccount(ctx context.Context, userID string) error
}

// Handler обрабатывает запросы /users/me.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	expose   bool
}

// New создает Handler.
func New(log *slog.Logger, service Service, expose bool) *Handler {
	return &Handler{log: log, service: service, validate: request.NewValidator(), expose: expose}
}

// Me godoc
// @Summary Текущий пользователь
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.User}
// @Failure 401 {object} response.ErrorResponse
// @Router /users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Me"
	log := request.Logger(h.log, r, op)

	user, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, user)
}

// Update godoc
// @Summary Обновление профиля
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateProfileRequest true "Новые данные профиля"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Router /users/me [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Update"
	log := request.Logger(h.log, r, op)

	var req models.UpdateProfileRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("profile updated", slog.String("user_id", user.ID))
	response.OK(w, r, user)
}

// ChangePassword godoc
// @Summary Смена пароля
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ChangePasswordRequest true "Текущий и новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse "Неверный текущий пароль"
// @Router /users/me/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.ChangePassword"
	log := request.Logger(h.log, r, op)

	var req models.ChangePasswordRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	if err := h.service.ChangePassword(r.Context(), middlewarectx.UserIDFrom(r.Context()), req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, map[string]string{"message": "password changed"})
}

// Delete godoc
// @Summary Удаление аккаунта
// @Description Отменяет подписку у платежного провайдера и удаляет пользователя.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorResponse "Провайдер недоступен"
// @Router /users/me [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Delete"
	log := request.Logger(h.log, r, op)

	userID := middlewarectx.UserIDFrom(r.Context())
	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("account deleted", slog.String("user_id", userID))
	response.OK(w, r, map[string]string{"message": "account deleted"})
}
