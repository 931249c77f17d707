// Package mailerlite клиент API рассылок MailerLite v2 и разбор его вебхуков.
package mailerlite

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/uxerra/studio-api/internal/lib/breaker"
)

const (
	providerName   = "mailerlite"
	defaultBaseURL = "https://api.mailerlite.com/api/v2"
)

// Типы событий вебхука.
const (
	EventSubscriberCreate      = "subscriber.create"
	EventSubscriberUnsubscribe = "subscriber.unsubscribe"
	EventSubscriberBounced     = "subscriber.bounced"
)

// ErrNotConfigured возвращается, если не задан API ключ.
var ErrNotConfigured = errors.New("mailerlite is not configured")

// Recorder получает метрики вызовов и состояния breaker.
type Recorder interface {
	breaker.StateRecorder
	ProviderCall(provider string, err error)
}

// Subscriber подписчик в запросах к MailerLite.
type Subscriber struct {
	Email  string         `json:"email,omitempty"`
	Name   string         `json:"name,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Type   string         `json:"type,omitempty"`
}

// APIError ошибка, которую вернул MailerLite.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailerlite API error (%d): %s", e.StatusCode, e.Message)
}

// Client клиент MailerLite.
type Client struct {
	apiKey     string
	groupID    string
	apiURL     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	rec        Recorder
}

// Option настраивает Client.
type Option func(*Client)

// WithBaseURL подменяет адрес API (тесты).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithRecorder подключает метрики.
func WithRecorder(rec Recorder) Option {
	return func(c *Client) { c.rec = rec }
}

// NewClient создает клиент. groupID задает группу, в которую попадают новые подписчики.
func NewClient(apiKey, groupID string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		groupID:    groupID,
		apiURL:     defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = breaker.New[[]byte](providerName, breaker.DefaultSettings(), log, c.rec, isSuccessful)
	return c
}

// Configured сообщает, задан ли API ключ.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// GroupID группа по умолчанию.
func (c *Client) GroupID() string { return c.groupID }

func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		var buf bytes.Buffer
		if in != nil {
			if err := json.NewEncoder(&buf).Encode(in); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-MailerLite-ApiKey", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("mailerlite request failed: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read mailerlite response: %w", err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
			var envelope struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
				apiErr.Message = envelope.Error.Message
			}
			return nil, apiErr
		}
		return data, nil
	})
	if c.rec != nil {
		c.rec.ProviderCall(providerName, err)
	}
	if err != nil {
		return breaker.Wrap(providerName, err)
	}
	if out != nil && len(body) > 0 {
		if err = json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse mailerlite response: %w", err)
		}
	}
	return nil
}

// Subscribe добавляет подписчика в группу по умолчанию или в общий список,
// если группа не задана. Повторная подписка реактивирует адрес.
func (c *Client) Subscribe(ctx context.Context, s Subscriber) error {
	const op = "mailerlite.Subscribe"

	path := "/subscribers"
	if c.groupID != "" {
		path = "/groups/" + url.PathEscape(c.groupID) + "/subscribers"
	}
	s.Type = "active"
	payload := struct {
		Subscriber
		Resubscribe bool `json:"resubscribe"`
	}{Subscriber: s, Resubscribe: true}

	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Unsubscribe переводит подписчика в статус unsubscribed.
func (c *Client) Unsubscribe(ctx context.Context, email string) error {
	const op = "mailerlite.Unsubscribe"

	if err := c.do(ctx, http.MethodPut, "/subscribers/"+url.PathEscape(email),
		Subscriber{Type: "unsubscribed"}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateSubscriber обновляет имя и поля подписчика.
func (c *Client) UpdateSubscriber(ctx context.Context, email, name string, fields map[string]any) error {
	const op = "mailerlite.UpdateSubscriber"

	if err := c.do(ctx, http.MethodPut, "/subscribers/"+url.PathEscape(email),
		Subscriber{Name: name, Fields: fields}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// VerifySignature проверяет заголовок X-MailerLite-Signature:
// base64(HMAC-SHA256(secret, body)).
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// WebhookPayload тело вебхука MailerLite, события приходят пачкой.
type WebhookPayload struct {
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent событие вебхука.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Subscriber struct {
			ID     json.Number    `json:"id"`
			Email  string         `json:"email"`
			Name   string         `json:"name"`
			Fields map[string]any `json:"fields"`
		} `json:"subscriber"`
	} `json:"data"`
}
