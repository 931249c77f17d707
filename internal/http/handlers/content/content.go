// Package content реализует HTTP обработчики сгенерированного контента.
package content

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/http/request"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/models"
)

// Service операции над контентом.
type Service interface {
	Generate(ctx context.Context, userID string, req models.GenerateContentRequest) (*models.GeneratedContent, error)
	Regenerate(ctx context.Context, userID, id string) (*models.GeneratedContent, error)
	List(ctx context.Context, userID, contentType string, page, limit int) (*models.Page[*models.GeneratedContent], error)
	Get(ctx context.Context, userID, id string) (*models.GeneratedContent, error)
	Update(ctx context.Context, userID, id string, req models.UpdateContentRequest) (*models.GeneratedContent, error)
	Delete(ctx context.Context, userID, id string) error
}

// Handler обрабатывает запросы /content.
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

// Generate godoc
// @Summary Генерация контента
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.GenerateContentRequest true "Параметры генерации"
// @Success 201 {object} response.Response{data=models.GeneratedContent}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse "Нужен платный тариф"
// @Failure 503 {object} response.ErrorResponse "Генерация недоступна"
// @Router /content/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.Generate"
	log := request.Logger(h.log, r, op)

	var req models.GenerateContentRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	c, err := h.service.Generate(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("content generated", slog.String("id", c.ID), slog.String("content_type", c.ContentType))
	response.Created(w, r, c)
}

// List godoc
// @Summary Контент пользователя
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param contentType query string false "Тип контента" Enums(landing_page, blog_post, email, social_post)
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Router /content [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.List"
	log := request.Logger(h.log, r, op)

	contentType := r.URL.Query().Get("contentType")
	if contentType != "" {
		if err := h.validate.Var(contentType, "oneof=landing_page blog_post email social_post"); err != nil {
			response.ServiceError(w, r, log, apperr.New(apperr.ErrValidation, "invalid contentType"), h.expose)
			return
		}
	}

	page, limit := request.Page(r)
	res, err := h.service.List(r.Context(), middlewarectx.UserIDFrom(r.Context()), contentType, page, limit)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, res)
}

// Get godoc
// @Summary Контент по ID
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID контента"
// @Success 200 {object} response.Response{data=models.GeneratedContent}
// @Failure 404 {object} response.ErrorResponse
// @Router /content/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.Get"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	c, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, c)
}

// Update godoc
// @Summary Правка контента
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID контента"
// @Param request body models.UpdateContentRequest true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.GeneratedContent}
// @Failure 404 {object} response.ErrorResponse
// @Router /content/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.Update"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	var req models.UpdateContentRequest
	if err = request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	c, err := h.service.Update(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, c)
}

// Delete godoc
// @Summary Удаление контента
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID контента"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /content/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.Delete"
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
	response.OK(w, r, map[string]string{"message": "content deleted"})
}

// Regenerate godoc
// @Summary Повторная генерация
// @Description Генерирует контент заново по сохраненному запросу.
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID контента"
// @Success 200 {object} response.Response{data=models.GeneratedContent}
// @Failure 403 {object} response.ErrorResponse "Нужен платный тариф"
// @Failure 404 {object} response.ErrorResponse
// @Router /content/{id}/regenerate [post]
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.Regenerate"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	c, err := h.service.Regenerate(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("content regenerated", slog.String("id", id))
	response.OK(w, r, c)
}
