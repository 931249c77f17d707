// Package webhooks реализует HTTP обработчики входящих вебхуков платежного
// провайдера и сервиса рассылки, а также просмотр журнала вебхуков.
//
// Тело читается один раз, и те же байты идут в проверку подписи и в разбор.
package webhooks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/uxerra/studio-api/internal/http/request"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
)

const (
	// MaxPayloadSize предел тела вебхука.
	MaxPayloadSize = 64 << 10

	// StripeSignatureHeader заголовок подписи Stripe.
	StripeSignatureHeader = "Stripe-Signature"
	// MailerLiteSignatureHeader заголовок подписи MailerLite.
	MailerLiteSignatureHeader = "X-MailerLite-Signature"
)

// Processor обрабатывает подписанную доставку вебхука.
type Processor interface {
	HandleWebhookEvent(ctx context.Context, payload []byte, signature string) (*models.WebhookResult, error)
}

// NewsletterProcessor обрабатывает вебхуки сервиса рассылки.
type NewsletterProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.WebhookResult, error)
}

// Journal чтение журнала вебхуков.
type Journal interface {
	ListWebhookEvents(ctx context.Context, provider, status string, page, limit int) (*models.Page[*models.WebhookEvent], error)
	GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
}

// Handler обрабатывает запросы /webhooks.
type Handler struct {
	log        *slog.Logger
	billing    Processor
	newsletter NewsletterProcessor
	journal    Journal
	expose     bool
}

// New создает Handler.
func New(log *slog.Logger, billing Processor, newsletter NewsletterProcessor, journal Journal, expose bool) *Handler {
	return &Handler{
		log:        log,
		billing:    billing,
		newsletter: newsletter,
		journal:    journal,
		expose:     expose,
	}
}

// readPayload читает тело целиком. При ошибке ответ уже записан.
func readPayload(w http.ResponseWriter, r *http.Request, log *slog.Logger) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook payload too large", slog.Int64("limit", tooLarge.Limit))
			response.Fail(w, r, http.StatusRequestEntityTooLarge, "payload too large")
			return nil, false
		}
		log.Error("failed to read webhook payload", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return payload, true
}

// Stripe godoc
// @Summary Вебхук Stripe
// @Description Проверяет подпись, журналирует событие и синхронизирует подписку. Повторная доставка уже обработанного события возвращает 200.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись Stripe"
// @Success 200 {object} response.Response{data=models.WebhookResult}
// @Failure 400 {object} response.ErrorResponse "Некорректное событие"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 503 {object} response.ErrorResponse "Секрет не настроен"
// @Router /webhooks/stripe [post]
func (h *Handler) Stripe(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhooks.Stripe"
	log := request.Logger(h.log, r, op)

	payload, ok := readPayload(w, r, log)
	if !ok {
		return
	}

	res, err := h.billing.HandleWebhookEvent(r.Context(), payload, r.Header.Get(StripeSignatureHeader))
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("stripe webhook handled",
		slog.String("event_id", res.EventID),
		slog.String("status", res.Status),
	)
	response.OK(w, r, res)
}

// MailerLite godoc
// @Summary Вебхук MailerLite
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-MailerLite-Signature header string true "Подпись MailerLite"
// @Success 200 {object} response.Response{data=models.WebhookResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /webhooks/mailerlite [post]
func (h *Handler) MailerLite(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhooks.MailerLite"
	log := request.Logger(h.log, r, op)

	payload, ok := readPayload(w, r, log)
	if !ok {
		return
	}

	res, err := h.newsletter.HandleWebhook(r.Context(), payload, r.Header.Get(MailerLiteSignatureHeader))
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("mailerlite webhook handled", slog.String("event_id", res.EventID))
	response.OK(w, r, res)
}

// ListEvents godoc
// @Summary Журнал вебхуков
// @Tags Webhooks
// @Produce json
// @Security BearerAuth
// @Param provider query string false "Провайдер" Enums(stripe, mailerlite)
// @Param status query string false "Статус" Enums(received, processed, failed)
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /webhooks/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhooks.ListEvents"
	log := request.Logger(h.log, r, op)

	q := r.URL.Query()
	page, limit := request.Page(r)
	res, err := h.journal.ListWebhookEvents(r.Context(), q.Get("provider"), q.Get("status"), page, limit)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, res)
}

// GetEvent godoc
// @Summary Событие вебхука
// @Tags Webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID события"
// @Success 200 {object} response.Response{data=models.WebhookEvent}
// @Failure 404 {object} response.ErrorResponse
// @Router /webhooks/events/{id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhooks.GetEvent"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	event, err := h.journal.GetWebhookEvent(r.Context(), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, event)
}
