package models

import "time"

// Статусы локальной подписки.
const (
	SubscriptionActive    = "ACTIVE"
	SubscriptionInactive  = "INACTIVE"
	SubscriptionCancelled = "CANCELLED"
)

// Тарифы.
const (
	PlanFree   = "FREE"
	PlanPro    = "PRO"
	PlanAgency = "AGENCY"
)

// Subscription локальное зеркало подписки у платежного провайдера.
// Статус и дата окончания периода меняются только по данным провайдера
// или при явной отмене.
type Subscription struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId,omitempty"`
	StripePriceID        string     `json:"stripePriceId,omitempty"`
	Status               string     `json:"status"`
	Plan                 string     `json:"plan"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// IsActivePaid сообщает, дает ли подписка доступ к платным функциям.
func (s *Subscription) IsActivePaid() bool {
	return s != nil && s.Status == SubscriptionActive && (s.Plan == PlanPro || s.Plan == PlanAgency)
}

// CheckoutRequest запрос на создание checkout сессии.
type CheckoutRequest struct {
	PlanID     string `json:"planId" validate:"required"`
	SuccessURL string `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
}

// CheckoutSession результат создания checkout сессии.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PortalRequest запрос на создание сессии billing портала.
type PortalRequest struct {
	ReturnURL string `json:"returnUrl" validate:"required,url"`
}

// PortalSession результат создания сессии billing портала.
type PortalSession struct {
	URL string `json:"url"`
}

// BillingNotice сообщение о смене состояния подписки для notification-sender.
type BillingNotice struct {
	Kind             string     `json:"kind"`
	UserID           string     `json:"userId"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	Plan             string     `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// Виды BillingNotice.
const (
	NoticeStatusChanged = "status_changed"
	NoticeRenewalSoon   = "renewal_soon"
)
