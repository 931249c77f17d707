package models

import "time"

// AuditLog запись аудита действий пользователя.
type AuditLog struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IP         string         `json:"ip"`
	UserAgent  string         `json:"userAgent"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditFilter фильтр выборки журнала аудита.
type AuditFilter struct {
	UserID     string     `validate:"omitempty,uuid"`
	Action     string     `validate:"omitempty,max=100"`
	Resource   string     `validate:"omitempty,max=100"`
	ResourceID string     `validate:"omitempty,max=100"`
	StartDate  *time.Time `validate:"-"`
	EndDate    *time.Time `validate:"-"`
	Page       int        `validate:"min=1"`
	Limit      int        `validate:"min=1,max=100"`
}

// Offset смещение для текущей страницы.
func (f AuditFilter) Offset() int { return (f.Page - 1) * f.Limit }

// Page страница результатов с общим количеством.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DashboardStats сводка для админ панели.
type DashboardStats struct {
	Users                 int            `json:"users"`
	Admins                int            `json:"admins"`
	SubscriptionsByStatus map[string]int `json:"subscriptionsByStatus"`
	SubscriptionsByPlan   map[string]int `json:"subscriptionsByPlan"`
	NewsletterSubscribers int            `json:"newsletterSubscribers"`
	GeneratedContent      int            `json:"generatedContent"`
	BrandingPackages      int            `json:"brandingPackages"`
	FailedWebhookEvents   int            `json:"failedWebhookEvents"`
}

// HealthReport состояние зависимостей сервиса.
type HealthReport struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Providers    map[string]bool   `json:"providers"`
}
