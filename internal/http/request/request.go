// Package request разбирает тело, параметры пути и пагинацию запросов.
package request

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/apperr"
)

// MaxBodySize предел тела обычных запросов.
const MaxBodySize = 1 << 20

// NewValidator валидатор, который называет поля по json тегам.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode читает JSON тело в dst и проверяет его тегами validate.
// Ошибки возвращаются как apperr.ErrValidation.
func Decode(r *http.Request, v *validator.Validate, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodySize)
	if err := render.DecodeJSON(body, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.ErrValidation, "request body is empty")
		}
		return apperr.New(apperr.ErrValidation, "invalid request body")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperr.New(apperr.ErrValidation, response.ValidationMessage(verrs))
		}
		return apperr.New(apperr.ErrValidation, err.Error())
	}
	return nil
}

// ID параметр пути name, который должен быть UUID.
func ID(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.New(apperr.ErrValidation, "invalid "+name)
	}
	return id.String(), nil
}

// Page параметры page и limit. Отсутствующие или некорректные значения
// дают 0, умолчания выставляют сервисы.
func Page(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}

// Logger логгер операции op с request id запроса.
func Logger(base *slog.Logger, r *http.Request, op string) *slog.Logger {
	return base.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}
