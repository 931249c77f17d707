package models

import "time"

// Статусы брендинг пакета.
const (
	BrandingDraft     = "draft"
	BrandingGenerated = "generated"
)

// BrandingPackage параметры бренда и результат генерации.
type BrandingPackage struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Name            string          `json:"name"`
	Industry        string          `json:"industry"`
	Goal            string          `json:"goal"`
	Description     string          `json:"description"`
	TargetAudience  string          `json:"targetAudience"`
	Style           string          `json:"style"`
	ColorPreference string          `json:"colorPreference,omitempty"`
	Status          string          `json:"status"`
	Result          *BrandingResult `json:"result,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// BrandingResult фирменный стиль, сгенерированный моделью.
type BrandingResult struct {
	ColorPalette      []string   `json:"colorPalette"`
	Typography        Typography `json:"typography"`
	IllustrationStyle string     `json:"illustrationStyle"`
	WebsiteTemplate   string     `json:"websiteTemplate"`
}

// Typography пара шрифтов.
type Typography struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// BrandingRequest создание брендинг пакета.
type BrandingRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Industry        string `json:"industry" validate:"required,min=2,max=100"`
	Goal            string `json:"goal" validate:"required,min=2,max=500"`
	Description     string `json:"description" validate:"required,min=10,max=2000"`
	TargetAudience  string `json:"targetAudience" validate:"required,min=2,max=500"`
	Style           string `json:"style" validate:"required,oneof=modern classic minimalist bold playful"`
	ColorPreference string `json:"colorPreference,omitempty" validate:"omitempty,max=200"`
}

// BrandingUpdateRequest частичное обновление брендинг пакета.
type BrandingUpdateRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Industry        *string `json:"industry,omitempty" validate:"omitempty,min=2,max=100"`
	Goal            *string `json:"goal,omitempty" validate:"omitempty,min=2,max=500"`
	Description     *string `json:"description,omitempty" validate:"omitempty,min=10,max=2000"`
	TargetAudience  *string `json:"targetAudience,omitempty" validate:"omitempty,min=2,max=500"`
	Style           *string `json:"style,omitempty" validate:"omitempty,oneof=modern classic minimalist bold playful"`
	ColorPreference *string `json:"colorPreference,omitempty" validate:"omitempty,max=200"`
}
