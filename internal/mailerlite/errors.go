package mailerlite

import (
	"errors"
	"net/http"

	"github.com/uxerra/studio-api/internal/lib/apperr"
)

// AppError переводит ошибки клиента в apperr. Отказ MailerLite по данным
// подписчика становится ошибкой валидации, остальное недоступностью.
func AppError(err error) error {
	var (
		appErr *apperr.Error
		apiErr *APIError
	)
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrNotConfigured):
		return apperr.New(apperr.ErrNotConfigured, "newsletter is not configured")
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
		return apperr.New(apperr.ErrValidation, apiErr.Message)
	default:
		return apperr.New(apperr.ErrUnavailable, "newsletter provider is unavailable")
	}
}
