package models

import "time"

// GeneratedContent сгенерированный контент пользователя.
type GeneratedContent struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	ContentType string         `json:"contentType"`
	Title       string         `json:"title,omitempty"`
	Prompt      string         `json:"prompt"`
	Tone        string         `json:"tone"`
	HTML        string         `json:"html"`
	Code        string         `json:"code"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// GenerateContentRequest параметры генерации контента.
type GenerateContentRequest struct {
	ContentType string  `json:"contentType" validate:"required,oneof=landing_page blog_post email social_post"`
	Prompt      string  `json:"prompt" validate:"required,min=10,max=4000"`
	Tone        string  `json:"tone" validate:"required,oneof=professional casual friendly formal"`
	Title       string  `json:"title,omitempty" validate:"omitempty,max=200"`
	MaxTokens   int     `json:"maxTokens,omitempty" validate:"omitempty,min=1,max=4000"`
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
}

// UpdateContentRequest ручная правка контента.
type UpdateContentRequest struct {
	Title    *string        `json:"title,omitempty" validate:"omitempty,max=200"`
	HTML     *string        `json:"html,omitempty" validate:"omitempty,min=1"`
	Code     *string        `json:"code,omitempty" validate:"omitempty,min=1"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ContentResult ответ модели для контента.
type ContentResult struct {
	HTML string `json:"html"`
	Code string `json:"code"`
}
