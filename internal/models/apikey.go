package models

import "time"

// APIKey ключ доступа к API. Сам ключ не хранится, только хеш.
type APIKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	KeyPrefix   string     `json:"keyPrefix"`
	KeyHash     string     `json:"-"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Expired сообщает, истек ли срок действия ключа.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// IssuedAPIKey ключ вместе с открытым значением, отдается один раз.
type IssuedAPIKey struct {
	APIKey
	Key string `json:"key"`
}

// CreateAPIKeyRequest создание ключа.
type CreateAPIKeyRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=100"`
	Permissions []string   `json:"permissions" validate:"required,dive,oneof=read write generate"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// UpdateAPIKeyRequest частичное обновление ключа.
type UpdateAPIKeyRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Permissions []string   `json:"permissions,omitempty" validate:"omitempty,dive,oneof=read write generate"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}
