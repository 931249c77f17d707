// Package apperr описывает таксономию ошибок сервиса и их HTTP статусы.
//
// Сервисы возвращают ошибки через New, указывая вид ошибки и сообщение,
// которое можно показать клиенту. Обработчики получают статус через Status.
package apperr

import (
	"errors"
	"net/http"
)

// Виды ошибок.
var (
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrRateLimited   = errors.New("too many requests")
	ErrNotConfigured = errors.New("service not configured")
	ErrUnavailable   = errors.New("service temporarily unavailable")
)

// Error ошибка с видом и публичным сообщением.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// New создает ошибку заданного вида.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Status возвращает HTTP статус для ошибки. Неизвестные ошибки дают 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message возвращает сообщение для клиента или fallback для внутренних ошибок.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return fallback
}
