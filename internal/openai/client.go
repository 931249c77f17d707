// Package openai генерирует контент и фирменный стиль через Chat Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/uxerra/studio-api/internal/lib/breaker"
	"github.com/uxerra/studio-api/internal/models"
)

const (
	providerName       = "openai"
	defaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4-turbo-preview"
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
)

// ErrNotConfigured возвращается, если не задан API ключ.
var ErrNotConfigured = errors.New("openai is not configured")

// ErrEmptyCompletion модель не вернула содержимого.
var ErrEmptyCompletion = errors.New("no content generated")

// Recorder получает метрики вызовов и состояния breaker.
type Recorder interface {
	breaker.StateRecorder
	ProviderCall(provider string, err error)
}

// APIError ошибка, которую вернул OpenAI.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OpenAI API error (%d): %s", e.StatusCode, e.Message)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string    `json:"model"`
	Messages       []message `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Client клиент OpenAI.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	rec        Recorder
}

// Option настраивает Client.
type Option func(*Client)

// WithBaseURL подменяет адрес API (тесты).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRecorder подключает метрики.
func WithRecorder(rec Recorder) Option {
	return func(c *Client) { c.rec = rec }
}

// NewClient создает клиент. Пустая модель заменяется на DefaultModel.
func NewClient(apiKey, model string, log *slog.Logger, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
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

func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError &&
		apiErr.StatusCode != http.StatusTooManyRequests
}

// complete отправляет запрос и декодирует JSON ответа модели в out.
func (c *Client) complete(ctx context.Context, req chatRequest, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req.Model = c.model
	req.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	content, err := c.cb.Execute(func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
			var envelope struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Message != "" {
				apiErr.Message = envelope.Error.Message
				apiErr.Type = envelope.Error.Type
			}
			return nil, apiErr
		}

		var chat chatResponse
		if err := json.Unmarshal(respBody, &chat); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
			return nil, ErrEmptyCompletion
		}
		return []byte(chat.Choices[0].Message.Content), nil
	})
	if c.rec != nil {
		c.rec.ProviderCall(providerName, err)
	}
	if err != nil {
		return breaker.Wrap(providerName, err)
	}

	if err = json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return nil
}

// GenerateContent генерирует HTML превью и код для запроса пользователя.
func (c *Client) GenerateContent(ctx context.Context, in models.GenerateContentRequest) (*models.ContentResult, error) {
	const op = "openai.GenerateContent"

	maxTokens := in.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := in.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	system := fmt.Sprintf(`You are an expert web designer and developer. Create %s with a %s tone.
Respond with ONLY JSON in the following format:
{
  "html": "The rendered HTML preview",
  "code": "The full HTML code snippet"
}`, strings.ReplaceAll(in.ContentType, "_", " "), in.Tone)

	var result models.ContentResult
	err := c.complete(ctx, chatRequest{
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: in.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if result.HTML == "" && result.Code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCompletion)
	}
	return &result, nil
}

// GenerateBranding генерирует палитру, шрифты и описание стиля для пакета.
func (c *Client) GenerateBranding(ctx context.Context, p models.BrandingPackage) (*models.BrandingResult, error) {
	const op = "openai.GenerateBranding"

	var prompt strings.Builder
	prompt.WriteString("Generate a complete brand identity for a company with the following details:\n\n")
	fmt.Fprintf(&prompt, "Name: %s\nIndustry: %s\nPurpose/Goal: %s\nDescription: %s\nTarget Audience: %s\nPreferred Brand Style: %s\n",
		p.Name, p.Industry, p.Goal, p.Description, p.TargetAudience, p.Style)
	if p.ColorPreference != "" {
		fmt.Fprintf(&prompt, "Color Preferences: %s\n", p.ColorPreference)
	}
	prompt.WriteString(`
Please create a comprehensive brand identity package including:
1. A color palette with 5 colors in HEX format (primary, secondary, accent, and neutral colors)
2. Typography recommendations (primary and secondary fonts that work well together)
3. A description of the illustration style that would work well for this brand
4. A description of an appropriate website template/layout for this brand

Respond ONLY in JSON format with the following structure:
{
  "colorPalette": ["#HEX1", "#HEX2", "#HEX3", "#HEX4", "#HEX5"],
  "typography": {"primary": "Font Name", "secondary": "Font Name"},
  "illustrationStyle": "Detailed description of illustration style",
  "websiteTemplate": "Detailed description of website template/layout"
}`)

	var result models.BrandingResult
	err := c.complete(ctx, chatRequest{
		Messages: []message{
			{Role: "system", Content: "You are a professional brand identity designer and expert in creating cohesive brand packages. Respond only with JSON data in the requested format."},
			{Role: "user", Content: prompt.String()},
		},
		Temperature: defaultTemperature,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(result.ColorPalette) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCompletion)
	}
	return &result, nil
}
