package models

import (
	"encoding/json"
	"time"
)

// Провайдеры вебхуков.
const (
	ProviderStripe     = "stripe"
	ProviderMailerLite = "mailerlite"
)

// Статусы обработки вебхука.
const (
	WebhookReceived  = "received"
	WebhookProcessed = "processed"
	WebhookFailed    = "failed"
)

// WebhookEvent запись журнала входящих событий. Создается один раз при
// получении и ровно один раз меняет статус.
type WebhookEvent struct {
	ID              string          `json:"id"`
	Provider        string          `json:"provider"`
	ProviderEventID string          `json:"providerEventId,omitempty"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	Status          string          `json:"status"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

// WebhookResult ответ провайдеру после обработки вебхука.
type WebhookResult struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId"`
	Status   string `json:"status"`
}
