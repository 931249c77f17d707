// Package paymentprovider клиент REST API Stripe: клиенты, checkout и
// billing portal сессии, отмена подписок и проверка подписи вебхуков.
package paymentprovider

import (
	"context"
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
	providerName   = "stripe"
	defaultBaseURL = "https://api.stripe.com/v1"
	maxResponse    = 1 << 20
)

// ErrNotConfigured возвращается, если не задан секретный ключ.
var ErrNotConfigured = errors.New("stripe is not configured")

// Recorder получает метрики вызовов и состояния breaker.
type Recorder interface {
	breaker.StateRecorder
	ProviderCall(provider string, err error)
}

// Client клиент Stripe.
type Client struct {
	secretKey  string
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

// NewClient создаёт клиент Stripe.
func NewClient(secretKey string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		secretKey:  secretKey,
		apiURL:     defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = breaker.New[[]byte](providerName, breaker.DefaultSettings(), log, c.rec, isSuccessful)
	return c
}

// Configured сообщает, задан ли секретный ключ.
func (c *Client) Configured() bool {
	return c != nil && c.secretKey != ""
}

// Ошибки 4xx означают проблему запроса, а не отказ провайдера.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}

func (c *Client) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.secretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := c.newRequest(ctx, method, path, form)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("stripe request failed: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
		if err != nil {
			return nil, fmt.Errorf("read stripe response: %w", err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: "unknown error"}
			var envelope struct {
				Error *APIError `json:"error"`
			}
			if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
				envelope.Error.StatusCode = resp.StatusCode
				apiErr = envelope.Error
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

	if out == nil {
		return nil
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse stripe response: %w", err)
	}
	return nil
}

// CreateCustomer создает клиента Stripe для пользователя.
func (c *Client) CreateCustomer(ctx context.Context, email, name, userID string) (*Customer, error) {
	const op = "paymentprovider.CreateCustomer"

	form := url.Values{}
	form.Set("email", email)
	if name != "" {
		form.Set("name", name)
	}
	form.Set("metadata[user_id]", userID)

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &customer); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if customer.ID == "" {
		return nil, fmt.Errorf("%s: missing customer id in response", op)
	}
	return &customer, nil
}

// CreateCheckoutSession создает checkout сессию в режиме подписки.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer", p.CustomerID)
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("client_reference_id", p.UserID)
	form.Set("subscription_data[metadata][user_id]", p.UserID)
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%s: missing session id in response", op)
	}
	return &session, nil
}

// CreatePortalSession создает сессию billing портала клиента.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	const op = "paymentprovider.CreatePortalSession"

	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var session PortalSession
	if err := c.do(ctx, http.MethodPost, "/billing_portal/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &session, nil
}

// CancelSubscription немедленно отменяет подписку.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.CancelSubscription"

	var sub Subscription
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}
