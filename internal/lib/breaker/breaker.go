// Package breaker настраивает circuit breaker для клиентов внешних провайдеров.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/uxerra/studio-api/internal/lib/apperr"
)

// StateRecorder получает изменения состояния breaker (метрики).
type StateRecorder interface {
	SetBreakerState(name string, state string)
}

// Settings параметры breaker.
type Settings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultSettings возвращает параметры по умолчанию: размыкание после
// пяти ошибок подряд, повторная проба через 30 секунд.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// New создает breaker для провайдера name. isSuccessful решает, какие ошибки
// не считаются отказом провайдера (например, ответы 4xx).
func New[T any](name string, s Settings, log *slog.Logger, rec StateRecorder, isSuccessful func(error) bool) *gobreaker.CircuitBreaker[T] {
	if log == nil {
		log = slog.Default()
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if rec != nil {
				rec.SetBreakerState(name, to.String())
			}
		},
		IsSuccessful: isSuccessful,
	})
}

// Wrap превращает отказ открытого breaker в apperr.ErrUnavailable,
// остальные ошибки возвращает без изменений.
func Wrap(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", name, apperr.New(apperr.ErrUnavailable, name+" is temporarily unavailable"))
	}
	return err
}
