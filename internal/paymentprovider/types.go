package paymentprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Типы событий подписки.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event конверт события вебхука Stripe.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Subscription подписка в представлении Stripe.
type Subscription struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// SubscriptionItem позиция подписки.
type SubscriptionItem struct {
	ID               string `json:"id"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Price            struct {
		ID string `json:"id"`
	} `json:"price"`
}

// PriceID возвращает цену первой позиции.
func (s *Subscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// PeriodEnd возвращает конец текущего периода. В новых версиях API поле
// перенесено на позицию подписки.
func (s *Subscription) PeriodEnd() *time.Time {
	ts := s.CurrentPeriodEnd
	if ts == 0 && len(s.Items.Data) > 0 {
		ts = s.Items.Data[0].CurrentPeriodEnd
	}
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// Subscription декодирует объект события как подписку.
func (e *Event) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription object: %w", err)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("decode subscription object: missing id")
	}
	return &sub, nil
}

// CheckoutParams параметры checkout сессии.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession созданная checkout сессия.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Customer клиент Stripe.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PortalSession сессия billing портала.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// APIError ошибка, которую вернул Stripe.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound сообщает, что Stripe не знает запрошенный объект.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
