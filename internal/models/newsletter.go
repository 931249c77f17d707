package models

import "time"

// Статусы подписчика рассылки.
const (
	NewsletterActive       = "active"
	NewsletterUnsubscribed = "unsubscribed"
	NewsletterBounced      = "bounced"
)

// NewsletterSubscriber подписчик рассылки.
type NewsletterSubscriber struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Status    string         `json:"status"`
	Groups    []string       `json:"groups"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SubscribeRequest подписка на рассылку.
type SubscribeRequest struct {
	Email  string         `json:"email" validate:"required,email"`
	Name   string         `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Fields map[string]any `json:"fields,omitempty"`
	Groups []string       `json:"groups,omitempty"`
}

// UnsubscribeRequest отписка от рассылки.
type UnsubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateSubscriberRequest обновление подписчика администратором.
type UpdateSubscriberRequest struct {
	Name   *string        `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Status *string        `json:"status,omitempty" validate:"omitempty,oneof=active unsubscribed bounced"`
	Groups []string       `json:"groups,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}
