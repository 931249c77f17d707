// Package branding реализует HTTP обработчики брендинг пакетов.
//
// Пакеты принадлежат пользователю: чужой пакет неотличим от отсутствующего
// и дает 404. Генерация результата доступна только на платном тарифе,
// этот доступ проверяет middleware маршрута.
package branding

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

// Service операции над брендинг пакетами.
type Service interface {
	Create(ctx context.Context, userID string, req models.BrandingRequest) (*models.BrandingPackage, error)
	List(ctx context.Context, userID string, page, limit int) (*models.Page[*models.BrandingPackage], error)
	Get(ctx context.Context, userID, id string) (*models.BrandingPackage, error)
	Update(ctx context.Context, userID, id string, req models.BrandingUpdateRequest) (*models.BrandingPackage, error)
	Delete(ctx context.Context, userID, id string) error
	Generate(ctx context.Context, userID, id string) (*models.BrandingPackage, error)
}

// Handler обрабатывает запросы /branding.
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
// @Summary Создание брендинг пакета
// @Description Сохраняет бриф в статусе draft, результат создается отдельным вызовом generate.
// @Tags Branding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BrandingRequest true "Бриф"
// @Success 201 {object} response.Response{data=models.BrandingPackage}
// @Failure 400 {object} response.ErrorResponse
// @Router /branding [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.branding.Create"
	log := request.Logger(h.log, r, op)

	var req models.BrandingRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	pkg, err := h.service.Create(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("branding package created", slog.String("id", pkg.ID))
	response.Created(w, r, pkg)
}

// List godoc
// @Summary Брендинг пакеты пользователя
// @Tags Branding
// @Produce json
// @Security BearerAuth
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Router /branding [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.branding.List"
	log := request.Logger(h.log, r, op)

	page, limit := request.Page(r)
	res, err := h.service.List(r.Context(), middlewarectx.UserIDFrom(r.Context()), page, limit)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, res)
}

// Get godoc
// @Summary Брендинг пакет
// @Tags Branding
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response{data=models.BrandingPackage}
// @Failure 404 {object} response.ErrorResponse
// @Router /branding/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.branding.Get"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	pkg, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, pkg)
}

// Update godoc
// @Summary Обновление брифа
// @Tags Branding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пакета"
// @Param request body models.BrandingUpdateRequest true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.BrandingPackage}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /branding/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.branding.Update"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	var req models.BrandingUpdateRequest
	if err = request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	pkg, err := h.service.Update(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, pkg)
}

// Delete godoc
// @Summary Удаление брендинг пакета
// @Tags Branding
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /branding/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.branding.Delete"
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
	log.Info("branding package deleted", slog.String("id", id))
	response.OK(w, r, map[string]string{"message": "branding package deleted"})
}

// Generate godoc
// @Summary Генерация брендинга
// @Description Генерирует палитру, шрифты, стиль иллюстраций и шаблон сайта. Требует PRO или AGENCY.
// @Tags Branding
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response{data=models.BrandingPackage}
// @Failure 403 {object} response.ErrorResponse "Нужен платный тариф"
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse "Генерация недоступна"
// @Router /branding/{id}/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.branding.Generate"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	pkg, err := h.service.Generate(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("branding generated", slog.String("id", id))
	response.OK(w, r, pkg)
}
