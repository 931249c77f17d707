// Package auth реализует HTTP обработчики регистрации, входа и профиля.
//
// Регистрация и вход возвращают пользователя и JWT, профиль доступен
// только аутентифицированному пользователю.
package auth

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

// Service описывает бизнес-логику аутентификации.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// Handler обрабатывает запросы /auth.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис аутентификации
	validate *validator.Validate // Валидатор входных данных
	expose   bool                // Показывать текст внутренних ошибок
}

// New создает Handler. expose включает текст внутренних ошибок в ответах.
func New(log *slog.Logger, service Service, expose bool) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: request.NewValidator(),
		expose:   expose,
	}
}

// Register godoc
// @Summary Регистрация пользователя
// @Description Создает пользователя с бесплатной подпиской и возвращает JWT.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Данные пользователя"
// @Success 201 {object} response.Response{data=models.AuthResult}
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := request.Logger(h.log, r, op)

	var req models.RegisterRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	log.Info("user registered", slog.String("user_id", res.User.ID))
	response.Created(w, r, res)
}

// Login godoc
// @Summary Вход пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Учетные данные"
// @Success 200 {object} response.Response{data=models.AuthResult}
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := request.Logger(h.log, r, op)

	var req models.LoginRequest
	if err := request.Decode(r, h.validate, &req); err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}

	log.Info("login success", slog.String("user_id", res.User.ID))
	response.OK(w, r, res)
}

// Profile godoc
// @Summary Профиль текущего пользователя
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.User}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /auth/profile [get]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Profile"
	log := request.Logger(h.log, r, op)

	user, err := h.service.Profile(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		response.ServiceError(w, r, log, err, h.expose)
		return
	}
	response.OK(w, r, user)
}
