// Package admin реализует HTTP обработчики администратора: управление
// пользователями, сводку и состояние зависимостей.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/http/request"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/models"
	adminservice "github.com/uxerra/studio-api/internal/services/admin"
)

// UserService управление пользователями.
type UserService interface {
	List(ctx context.Context, page, limit int) (*models.Page[*models.User], error)
	Get(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, adminID string, req models.AdminCreateUserRequest) (*models.User, error)
	Update(ctx context.Context, adminID, userID string, req models.AdminUpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, adminID, userID string) error
}

// Service сводка и состояние сервиса.
type Service interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
	Health(ctx context.Context) *models.HealthReport
}

// Handler обрабатывает запросы /admin и /health.
type Handler struct {
	log      *slog.Logger
	users    UserService
	service  Service
	validate *validator.Validate
	expose   bool
}

// New создает Handler.
func New(log *slog.Logger, users UserService, service Service, expose bool) *Handler {
	return &Handler{log: log, users: users, service: service, validate: request.NewValidator(), expose: expose}
}

// ListUsers godoc
// @Summary Пользователи
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.ListUsers"
	log := request.Logger(h.log, r, op)

	page, limit := request.Page(r)
	res, err := h.users.List(r.Context(), page, limit)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, res)
}

// GetUser godoc
// @Summary Пользователь
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.GetUser"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, user)
}

// CreateUser godoc
// @Summary Создание пользователя
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.AdminCreateUserRequest true "Пользователь"
// @Success 201 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /admin/users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.CreateUser"
	log := request.Logger(h.log, r, op)

	var req models.AdminCreateUserRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	user, err := h.users.Create(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("user created by admin", slog.String("user_id", user.ID))
	response.Created(w, r, user)
}

// UpdateUser godoc
// @Summary Обновление пользователя
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Param request body models.AdminUpdateUserRequest true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.UpdateUser"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	var req models.AdminUpdateUserRequest
	if err = request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	user, err := h.users.Update(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, user)
}

// DeleteUser godoc
// @Summary Удаление пользователя
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нельзя удалить себя"
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.DeleteUser"
	log := request.Logger(h.log, r, op)

	id, err := request.ID(r, "id")
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	if err = h.users.Delete(r.Context(), middlewarectx.UserIDFrom(r.Context()), id); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	log.Info("user deleted by admin", slog.String("user_id", id))
	response.OK(w, r, map[string]string{"message": "user deleted"})
}

// Dashboard godoc
// @Summary Сводка
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.DashboardStats}
// @Router /admin/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Dashboard"
	log := request.Logger(h.log, r, op)

	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, stats)
}

// Health godoc
// @Summary Состояние зависимостей
// @Description База данных, Redis, RabbitMQ и настроенные провайдеры. 503, если база недоступна.
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response{data=models.HealthReport}
// @Failure 503 {object} response.Response{data=models.HealthReport}
// @Router /admin/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.service.Health(r.Context())
	status := http.StatusOK
	if report.Status == adminservice.HealthDown {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, response.OKWithData(report))
}

// Liveness godoc
// @Summary Проверка работоспособности
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	report := h.service.Health(r.Context())
	status := http.StatusOK
	if report.Status == adminservice.HealthDown {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, response.OKWithData(map[string]string{"status": report.Status}))
}
