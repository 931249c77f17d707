package openai

import (
	"errors"

	"github.com/uxerra/studio-api/internal/lib/apperr"
)

// AppError переводит ошибки клиента в таксономию apperr для ответа API.
// Ошибки, уже относящиеся к apperr (открытый breaker), не меняются.
func AppError(err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrNotConfigured):
		return apperr.New(apperr.ErrNotConfigured, "AI generation is not configured")
	case errors.Is(err, ErrEmptyCompletion):
		return apperr.New(apperr.ErrUnavailable, "no content generated, try again")
	default:
		return err
	}
}
