// Package apikeys реализует HTTP обработчики API ключей пользователя.
// Открытый ключ возвращается только при создании и перевыпуске.
package apikeys

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

// Service операции над API ключами.
type Service interface {
	Create(ctx context.Context, userID string, req models.CreateAPIKeyRequest) (*models.IssuedAPIKey, error)
	List(ctx context.Context, userID string) ([]*models.APIKey, error)
	Get(ctx context.Context, userID, id string) (*models.APIKey, error)
	Update(ctx context.Context, userID, id string, req models.UpdateAPIKeyRequest) (*models.APIKey, error)
	Delete(ctx context.Context, userID, id string) error
	Regenerate(ctx context.Context, userID, id string) (*models.IssuedAPIKey, error)
}

// Handler обрабатывает запросы /api-keys.
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

// Create godoc
// @Summary Создание API ключа
// @Tags API Keys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateAPIKeyRequest true "Имя, права и срок действия"
// @Success 201 {object} response.Response{data=models.IssuedAPIKey}
// @Failure 400 {object} response.ErrorResponse
// @Router /api-keys [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikeys.Create"
	log := request.Logger(h.log, r, op)

	var req models.CreateAPIKeyRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	key, err := h.service.Create(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("api key created", slog.String("key_id", key.ID), slog.String("prefix", key.KeyPrefix))
	response.Created(w, r, key)
}

// List godoc
// @Summary API ключи пользователя
// @Tags API Keys
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.APIKey}
// @Router /api-keys [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikeys.List"
	log := request.Logger(h.log, r, op)

	keys, err := h.service.List(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, keys)
}

// Get godoc
// @Summary API ключ
// @Tags API Keys
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID ключа"
// @Success 200 {object} response.Response{data=models.APIKey}
// @Failure 404 {object} response.ErrorResponse
// @Router /api-keys/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikeys.Get"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	key, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, key)
}

// Update godoc
// @Summary Обновление API ключа
// @Tags API Keys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID ключа"
// @Param request body models.UpdateAPIKeyRequest true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.APIKey}
// @Failure 404 {object} response.ErrorResponse
// @Router /api-keys/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikeys.Update"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	var req models.UpdateAPIKeyRequest
	if err = request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	key, err := h.service.Update(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, key)
}

// Delete godoc
// @Summary Удаление API ключа
// @Tags API Keys
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID ключа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api-keys/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikeys.Delete"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	if err = h.service.Delete(r.Context(), middlewarectx.UserIDFrom(r.Context()), id); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("api key deleted", slog.String("key_id", id))
	response.OK(w, r, map[string]string{"message": "api key deleted"})
}

// Regenerate godoc
// @Summary Перевыпуск API ключа
// @Description Старый ключ перестает работать сразу.
// @Tags API Keys
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID ключа"
// @Success 200 {object} response.Response{data=models.IssuedAPIKey}
// @Failure 404 {object} response.ErrorResponse
// @Router /api-keys/{id}/regenerate [post]
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikeys.Regenerate"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	key, err := h.service.Regenerate(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("api key regenerated", slog.String("key_id", id))
	response.OK(w, r, key)
}
