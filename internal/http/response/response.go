// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON ответов HTTP обработчиков: успешных ответов, ошибок
// сервисов и сообщений валидации.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
)

// Response описывает стандартную структуру JSON ответа сервера.
// Поле Status: статус запроса ("OK" или "Error").
// Поле Error: текст ошибки (при неуспехе).
// Поле Data: данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"

	internalMessage = "internal server error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// JSON пишет ответ с кодом status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// OK пишет 200 с данными.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, OKWithData(data))
}

// Created пишет 201 с данными.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusCreated, OKWithData(data))
}

// Fail пишет ошибку с кодом status.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	JSON(w, r, status, Error(msg))
}

// ServiceError переводит ошибку сервиса в HTTP ответ по таксономии apperr.
// Текст внутренних ошибок попадает в ответ только при expose.
func ServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, expose bool) {
	status := apperr.Status(err)
	msg := apperr.Message(err, internalMessage)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), sl.Err(err))
		var appErr *apperr.Error
		if expose && !errors.As(err, &appErr) {
			msg = err.Error()
		}
	} else {
		log.Warn("request rejected", slog.Int("status", status), sl.Err(err))
	}
	Fail(w, r, status, msg)
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко читаемый текст, объединенный через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	return Error(ValidationMessage(errs))
}

// ValidationMessage текст ошибок валидации.
func ValidationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := lowerFirst(err.Field())
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", field))
		case "url":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid url", field))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid uuid", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", field, err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", field, err.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", field, err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return strings.Join(msgs, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
