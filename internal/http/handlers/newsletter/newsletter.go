// Package newsletter реализует HTTP обработчики подписки на рассылку и
// управления подписчиками.
package newsletter

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator"

	"github.com/uxerra/studio-api/internal/http/request"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/models"
)

// Service операции рассылки.
type Service interface {
	Subscribe(ctx context.Context, req models.SubscribeRequest) (*models.NewsletterSubscriber, error)
	Unsubscribe(ctx context.Context, email string) error
	List(ctx context.Context, status string, page, limit int) (*models.Page[*models.NewsletterSubscriber], error)
	Get(ctx context.Context, email string) (*models.NewsletterSubscriber, error)
	Update(ctx context.Context, email string, req models.UpdateSubscriberRequest) (*models.NewsletterSubscriber, error)
	Delete(ctx context.Context, email string) error
}

// Handler обрабатывает запросы /newsletter.
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

// emailParam email из пути. Невалидный email отклоняется до обращения к сервису.
func (h *Handler) emailParam(r *http.Request) (string, error) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || h.validate.Var(email, "required,email") != nil {
		return "", apperr.New(apperr.ErrValidation, "invalid email")
	}
	return email, nil
}

// Subscribe godoc
// @Summary Подписка на рассылку
// @Tags Newsletter
// @Accept json
// @Produce json
// @Param request body models.SubscribeRequest true "Подписчик"
// @Success 201 {object} response.Response{data=models.NewsletterSubscriber}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Уже подписан"
// @Failure 503 {object} response.ErrorResponse "Рассылка не настроена"
// @Router /newsletter/subscribe [post]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.newsletter.Subscribe"
	log := request.Logger(h.log, r, op)

	var req models.SubscribeRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("newsletter subscribed", slog.String("subscriber_id", sub.ID))
	response.Created(w, r, sub)
}

// Unsubscribe godoc
// @Summary Отписка от рассылки
// @Tags Newsletter
// @Accept json
// @Produce json
// @Param request body models.UnsubscribeRequest true "Email подписчика"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /newsletter/unsubscribe [post]
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.newsletter.Unsubscribe"
	log := request.Logger(h.log, r, op)

	var req models.UnsubscribeRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	if err := h.service.Unsubscribe(r.Context(), req.Email); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, map[string]string{"message": "unsubscribed"})
}

// List godoc
// @Summary Подписчики рассылки
// @Tags Newsletter
// @Produce json
// @Security BearerAuth
// @Param status query string false "Статус" Enums(active, unsubscribed, bounced)
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /newsletter/subscribers [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.newsletter.List"
	log := request.Logger(h.log, r, op)

	status := r.URL.Query().Get("status")
	if status != "" && h.validate.Var(status, "oneof=active unsubscribed bounced") != nil {
		response.ServiceError(w, r, log, apperr.New(apperr.ErrValidation, "invalid status"), h.expose)
		return
	}

	page, limit := request.Page(r)
	res, err := h.service.List(r.Context(), status, page, limit)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, res)
}

// Get godoc
// @Summary Подписчик
// @Tags Newsletter
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} response.Response{data=models.NewsletterSubscriber}
// @Failure 404 {object} response.ErrorResponse
// @Router /newsletter/subscribers/{email} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.newsletter.Get"
	log := request.Logger(h.log, r, op)

	email, err := h.emailParam(r)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	sub, err := h.service.Get(r.Context(), email)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, sub)
}

// Update godoc
// @Summary Обновление подписчика
// @Tags Newsletter
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Param request body models.UpdateSubscriberRequest true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.NewsletterSubscriber}
// @Failure 404 {object} response.ErrorResponse
// @Router /newsletter/subscribers/{email} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.newsletter.Update"
	log := request.Logger(h.log, r, op)

	email, err := h.emailParam(r)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	var req models.UpdateSubscriberRequest
	if err = request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	sub, err := h.service.Update(r.Context(), email, req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, sub)
}

// Delete godoc
// @Summary Удаление подписчика
// @Description Удаляет только локальную запись.
// @Tags Newsletter
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /newsletter/subscribers/{email} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.newsletter.Delete"
	log := request.Logger(h.log, r, op)

	email, err := h.emailParam(r)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	if err = h.service.Delete(r.Context(), email); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, map[string]string{"message": "subscriber deleted"})
}
