// Package audit реализует HTTP обработчики чтения журнала аудита.
// Все маршруты доступны только администратору.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator"

	"github.com/uxerra/studio-api/internal/http/request"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 100
	dateLayout   = "2006-01-02"
)

// Service чтение журнала.
type Service interface {
	Get(ctx context.Context, id string) (*models.AuditLog, error)
	List(ctx context.Context, f models.AuditFilter) (*models.Page[*models.AuditLog], error)
}

// Handler обрабатывает запросы /audit.
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

// parseFilter собирает фильтр из query параметров. Даты принимаются в RFC3339
// или как YYYY-MM-DD, limit ограничен сверху.
func parseFilter(q url.Values) (models.AuditFilter, error) {
	f := models.AuditFilter{
		UserID:     q.Get("userId"),
		Action:     q.Get("action"),
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resourceId"),
		Page:       1,
		Limit:      defaultLimit,
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return f, apperr.New(apperr.ErrValidation, "page must be a positive integer")
		}
		f.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return f, apperr.New(apperr.ErrValidation, "limit must be a positive integer")
		}
		f.Limit = min(limit, maxLimit)
	}

	var err error
	if f.StartDate, err = parseDate(q.Get("startDate")); err != nil {
		return f, apperr.New(apperr.ErrValidation, "invalid startDate")
	}
	if f.EndDate, err = parseDate(q.Get("endDate")); err != nil {
		return f, apperr.New(apperr.ErrValidation, "invalid endDate")
	}
	return f, nil
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, log *slog.Logger, f models.AuditFilter) {
	if err := h.validate.Struct(f); err != nil {
		response.ServiceError(w, r, log, apperr.New(apperr.ErrValidation, "invalid audit filter"), h.expose)
		return
	}
	res, err := h.service.List(r.Context(), f)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, res)
}

// List godoc
// @Summary Журнал аудита
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param userId query string false "ID пользователя"
// @Param action query string false "Действие"
// @Param resource query string false "Тип ресурса"
// @Param resourceId query string false "ID ресурса"
// @Param startDate query string false "С даты (RFC3339 или YYYY-MM-DD)"
// @Param endDate query string false "По дату (RFC3339 или YYYY-MM-DD)"
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы, не больше 100"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /audit [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.audit.List"
	log := request.Logger(h.log, r, op)

	f, err := parseFilter(r.URL.Query())
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	h.list(w, r, log, f)
}

// ByUser godoc
// @Summary Журнал аудита пользователя
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param userId path string true "ID пользователя"
// @Success 200 {object} response.Response
// @Router /audit/user/{userId} [get]
func (h *Handler) ByUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.audit.ByUser"
	log := request.Logger(h.log, r, op)

	userID, err := request.ID(r, "userId")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	f.UserID = userID
	h.list(w, r, log, f)
}

// ByResource godoc
// @Summary Журнал аудита ресурса
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Тип ресурса"
// @Param resourceId path string true "ID ресурса"
// @Success 200 {object} response.Response
// @Router /audit/resource/{resource}/{resourceId} [get]
func (h *Handler) ByResource(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.audit.ByResource"
	log := request.Logger(h.log, r, op)

	f, err := parseFilter(r.URL.Query())
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	f.Resource = chi.URLParam(r, "resource")
	f.ResourceID = chi.URLParam(r, "resourceId")
	h.list(w, r, log, f)
}

// Get godoc
// @Summary Запись журнала аудита
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID записи"
// @Success 200 {object} response.Response{data=models.AuditLog}
// @Failure 404 {object} response.ErrorResponse
// @Router /audit/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.audit.Get"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, entry)
}
