// Package subscriptions реализует HTTP обработчики подписки текущего
// пользователя: просмотр, checkout, портал клиента и отмену.
package subscriptions

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

// Service операции биллинга.
type Service interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	CreateCheckoutSession(ctx context.Context, userID string, req models.CheckoutRequest) (*models.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID, returnURL string) (*models.PortalSession, error)
	CancelSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Handler обрабатывает запросы /subscriptions.
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

// Get godoc
// @Summary Подписка текущего пользователя
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 404 {object} response.ErrorResponse
// @Router /subscriptions [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.Get"
	log := request.Logger(h.log, r, op)

	sub, err := h.service.GetSubscription(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, sub)
}

// Checkout godoc
// @Summary Создание checkout сессии
// @Description Возвращает ссылку на оплату выбранного тарифа у платежного провайдера.
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CheckoutRequest true "Тариф и адреса возврата"
// @Success 200 {object} response.Response{data=models.CheckoutSession}
// @Failure 400 {object} response.ErrorResponse "Неизвестный тариф"
// @Failure 503 {object} response.ErrorResponse "Платежи не настроены"
// @Router /subscriptions/create-checkout-session [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.Checkout"
	log := request.Logger(h.log, r, op)

	var req models.CheckoutRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	session, err := h.service.CreateCheckoutSession(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("checkout session created", slog.String("session_id", session.SessionID))
	response.OK(w, r, session)
}

// Portal godoc
// @Summary Создание сессии портала клиента
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PortalRequest true "Адрес возврата"
// @Success 200 {object} response.Response{data=models.PortalSession}
// @Failure 404 {object} response.ErrorResponse "Нет клиента у провайдера"
// @Router /subscriptions/create-portal-session [post]
func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.Portal"
	log := request.Logger(h.log, r, op)

	var req models.PortalRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	session, err := h.service.CreatePortalSession(r.Context(), middlewarectx.UserIDFrom(r.Context()), req.ReturnURL)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, session)
}

// Cancel godoc
// @Summary Отмена подписки
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /subscriptions/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.Cancel"
	log := request.Logger(h.log, r, op)

	userID := middlewarectx.UserIDFrom(r.Context())
	sub, err := h.service.CancelSubscription(r.Context(), userID)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("subscription cancelled", slog.String("user_id", userID))
	response.OK(w, r, sub)
}
