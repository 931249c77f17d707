// Package content генерирует и хранит контент пользователя: лендинги,
// статьи, письма и посты.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/openai"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// Repository хранилище контента.
type Repository interface {
	CreateContent(ctx context.Context, c models.GeneratedContent) (*models.GeneratedContent, error)
	GetContent(ctx context.Context, id, userID string) (*models.GeneratedContent, error)
	ListContent(ctx context.Context, userID, contentType string, limit, offset int) ([]*models.GeneratedContent, int, error)
	UpdateContent(ctx context.Context, c models.GeneratedContent) (*models.GeneratedContent, error)
	DeleteContent(ctx context.Context, id, userID string) error
}

// Generator генератор контента.
type Generator interface {
	GenerateContent(ctx context.Context, in models.GenerateContentRequest) (*models.ContentResult, error)
}

// Service сервис контента.
type Service struct {
	repo      Repository
	generator Generator
	model     string
	log       *slog.Logger
}

// New создает Service. model пишется в metadata каждой генерации.
func New(repo Repository, generator Generator, model string, log *slog.Logger) *Service {
	return &Service{repo: repo, generator: generator, model: model, log: log}
}

// Generate генерирует контент и сохраняет его.
func (s *Service) Generate(ctx context.Context, userID string, req models.GenerateContentRequest) (*models.GeneratedContent, error) {
	const op = "services.content.Generate"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	result, err := s.generator.GenerateContent(ctx, req)
	if err != nil {
		log.Error("content generation failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, openai.AppError(err))
	}

	c, err := s.repo.CreateContent(ctx, models.GeneratedContent{
		UserID:      userID,
		ContentType: req.ContentType,
		Title:       req.Title,
		Prompt:      req.Prompt,
		Tone:        req.Tone,
		HTML:        result.HTML,
		Code:        result.Code,
		Metadata:    s.metadata(req),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("content generated", slog.String("content_id", c.ID), slog.String("type", c.ContentType))
	return c, nil
}

// Regenerate повторяет генерацию с сохраненными параметрами.
func (s *Service) Regenerate(ctx context.Context, userID, id string) (*models.GeneratedContent, error) {
	const op = "services.content.Regenerate"
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	req := models.GenerateContentRequest{
		ContentType: c.ContentType,
		Prompt:      c.Prompt,
		Tone:        c.Tone,
		Title:       c.Title,
	}
	result, err := s.generator.GenerateContent(ctx, req)
	if err != nil {
		s.log.Error("content regeneration failed", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, openai.AppError(err))
	}

	c.HTML, c.Code = result.HTML, result.Code
	meta := s.metadata(req)
	for k, v := range c.Metadata {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}
	c.Metadata = meta

	updated, err := s.repo.UpdateContent(ctx, *c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// List страница контента, опционально одного типа.
func (s *Service) List(ctx context.Context, userID, contentType string, page, limit int) (*models.Page[*models.GeneratedContent], error) {
	const op = "services.content.List"
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.repo.ListContent(ctx, userID, contentType, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Page[*models.GeneratedContent]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Get возвращает контент владельца.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.GeneratedContent, error) {
	const op = "services.content.Get"
	c, err := s.repo.GetContent(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "content not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Update ручная правка контента.
func (s *Service) Update(ctx context.Context, userID, id string, req models.UpdateContentRequest) (*models.GeneratedContent, error) {
	const op = "services.content.Update"
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.HTML != nil {
		c.HTML = *req.HTML
	}
	if req.Code != nil {
		c.Code = *req.Code
	}
	if req.Metadata != nil {
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		for k, v := range req.Metadata {
			c.Metadata[k] = v
		}
	}

	updated, err := s.repo.UpdateContent(ctx, *c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Delete удаляет контент владельца.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	const op = "services.content.Delete"
	err := s.repo.DeleteContent(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.ErrNotFound, "content not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) metadata(req models.GenerateContentRequest) map[string]any {
	meta := map[string]any{"model": s.model}
	if req.MaxTokens > 0 {
		meta["maxTokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		meta["temperature"] = req.Temperature
	}
	return meta
}
