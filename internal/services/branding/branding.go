// Package branding хранит брендинг пакеты пользователя и генерирует для них
// фирменный стиль через OpenAI.
package branding

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

// Repository хранилище пакетов. Все выборки ограничены владельцем.
type Repository interface {
	CreateBrandingPackage(ctx context.Context, p models.BrandingPackage) (*models.BrandingPackage, error)
	GetBrandingPackage(ctx context.Context, id, userID string) (*models.BrandingPackage, error)
	ListBrandingPackages(ctx context.Context, userID string, limit, offset int) ([]*models.BrandingPackage, int, error)
	UpdateBrandingPackage(ctx context.Context, p models.BrandingPackage) (*models.BrandingPackage, error)
	DeleteBrandingPackage(ctx context.Context, id, userID string) error
}

// Generator генератор фирменного стиля.
type Generator interface {
	GenerateBranding(ctx context.Context, p models.BrandingPackage) (*models.BrandingResult, error)
}

// Service сервис брендинга.
type Service struct {
	repo      Repository
	generator Generator
	log       *slog.Logger
}

// New создает Service.
func New(repo Repository, generator Generator, log *slog.Logger) *Service {
	return &Service{repo: repo, generator: generator, log: log}
}

// Create сохраняет черновик пакета.
func (s *Service) Create(ctx context.Context, userID string, req models.BrandingRequest) (*models.BrandingPackage, error) {
	const op = "services.branding.Create"
	p, err := s.repo.CreateBrandingPackage(ctx, models.BrandingPackage{
		UserID:          userID,
		Name:            req.Name,
		Industry:        req.Industry,
		Goal:            req.Goal,
		Description:     req.Description,
		TargetAudience:  req.TargetAudience,
		Style:           req.Style,
		ColorPreference: req.ColorPreference,
		Status:          models.BrandingDraft,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// List страница пакетов пользователя.
func (s *Service) List(ctx context.Context, userID string, page, limit int) (*models.Page[*models.BrandingPackage], error) {
	const op = "services.branding.List"
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.repo.ListBrandingPackages(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Page[*models.BrandingPackage]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Get возвращает пакет владельца. Чужой пакет неотличим от отсутствующего.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.BrandingPackage, error) {
	const op = "services.branding.Get"
	p, err := s.repo.GetBrandingPackage(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "branding package not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Update меняет параметры пакета. Сгенерированный результат сохраняется.
func (s *Service) Update(ctx context.Context, userID, id string, req models.BrandingUpdateRequest) (*models.BrandingPackage, error) {
	const op = "services.branding.Update"
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&p.Name, req.Name)
	apply(&p.Industry, req.Industry)
	apply(&p.Goal, req.Goal)
	apply(&p.Description, req.Description)
	apply(&p.TargetAudience, req.TargetAudience)
	apply(&p.Style, req.Style)
	apply(&p.ColorPreference, req.ColorPreference)

	updated, err := s.repo.UpdateBrandingPackage(ctx, *p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Delete удаляет пакет владельца.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	const op = "services.branding.Delete"
	err := s.repo.DeleteBrandingPackage(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.ErrNotFound, "branding package not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Generate генерирует фирменный стиль и переводит пакет в generated.
func (s *Service) Generate(ctx context.Context, userID, id string) (*models.BrandingPackage, error) {
	const op = "services.branding.Generate"
	log := s.log.With(slog.String("op", op), slog.String("package_id", id))

	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.GenerateBranding(ctx, *p)
	if err != nil {
		log.Error("branding generation failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, openai.AppError(err))
	}
	p.Result = result
	p.Status = models.BrandingGenerated

	updated, err := s.repo.UpdateBrandingPackage(ctx, *p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("branding generated")
	return updated, nil
}
