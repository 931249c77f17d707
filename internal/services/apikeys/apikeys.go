// Package apikeys выдает и проверяет API ключи пользователей.
//
// Открытый ключ возвращается только при создании и перевыпуске, в базе
// лежит sha256 хеш.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uxerra/studio-api/internal/lib/apikey"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/services/audit"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// Repository хранилище ключей и их владельцев.
type Repository interface {
	CreateAPIKey(ctx context.Context, k models.APIKey) (*models.APIKey, error)
	GetAPIKey(ctx context.Context, id, userID string) (*models.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*models.APIKey, error)
	UpdateAPIKey(ctx context.Context, k models.APIKey) (*models.APIKey, error)
	DeleteAPIKey(ctx context.Context, id, userID string) error
	TouchAPIKey(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Auditor журнал действий.
type Auditor interface {
	Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any)
}

// Service сервис API ключей.
type Service struct {
	repo    Repository
	auditor Auditor
	log     *slog.Logger
	now     func() time.Time
	issue   func() (key, hash, display string, err error)
}

// New создает Service.
func New(repo Repository, auditor Auditor, log *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, log: log, now: time.Now, issue: apikey.Generate}
}

var errNotFound = apperr.New(apperr.ErrNotFound, "api key not found")

// Create выпускает новый ключ.
func (s *Service) Create(ctx context.Context, userID string, req models.CreateAPIKeyRequest) (*models.IssuedAPIKey, error) {
	const op = "services.apikeys.Create"
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, apperr.New(apperr.ErrValidation, "expiresAt must be in the future")
	}

	key, hash, display, err := s.issue()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	saved, err := s.repo.CreateAPIKey(ctx, models.APIKey{
		UserID:      userID,
		Name:        req.Name,
		KeyPrefix:   display,
		KeyHash:     hash,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.auditor.Record(ctx, userID, audit.ActionAPIKeyCreate, audit.ResourceAPIKey, saved.ID,
		map[string]any{"name": saved.Name, "permissions": saved.Permissions})
	s.log.Info("api key created", slog.String("op", op), slog.String("key_id", saved.ID))
	return &models.IssuedAPIKey{APIKey: *saved, Key: key}, nil
}

// List ключи пользователя без открытых значений.
func (s *Service) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	const op = "services.apikeys.List"
	keys, err := s.repo.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	return keys, nil
}

// Get ключ владельца.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.APIKey, error) {
	const op = "services.apikeys.Get"
	k, err := s.repo.GetAPIKey(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return k, nil
}

// Update меняет имя, права и срок действия.
func (s *Service) Update(ctx context.Context, userID, id string, req models.UpdateAPIKeyRequest) (*models.APIKey, error) {
	const op = "services.apikeys.Update"
	k, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	changed := map[string]any{}
	if req.Name != nil {
		k.Name = *req.Name
		changed["name"] = *req.Name
	}
	if req.Permissions != nil {
		k.Permissions = req.Permissions
		changed["permissions"] = req.Permissions
	}
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(s.now()) {
			return nil, apperr.New(apperr.ErrValidation, "expiresAt must be in the future")
		}
		k.ExpiresAt = req.ExpiresAt
		changed["expiresAt"] = *req.ExpiresAt
	}

	updated, err := s.repo.UpdateAPIKey(ctx, *k)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.auditor.Record(ctx, userID, audit.ActionAPIKeyUpdate, audit.ResourceAPIKey, id, changed)
	return updated, nil
}

// Delete отзывает ключ.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	const op = "services.apikeys.Delete"
	err := s.repo.DeleteAPIKey(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return errNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.auditor.Record(ctx, userID, audit.ActionAPIKeyDelete, audit.ResourceAPIKey, id, nil)
	return nil
}

// Regenerate выпускает новое значение для существующего ключа. Старое
// значение перестает работать сразу.
func (s *Service) Regenerate(ctx context.Context, userID, id string) (*models.IssuedAPIKey, error) {
	const op = "services.apikeys.Regenerate"
	k, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	key, hash, display, err := s.issue()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	k.KeyHash, k.KeyPrefix = hash, display

	updated, err := s.repo.UpdateAPIKey(ctx, *k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.auditor.Record(ctx, userID, audit.ActionAPIKeyRegen, audit.ResourceAPIKey, id, nil)
	return &models.IssuedAPIKey{APIKey: *updated, Key: key}, nil
}

// Authenticate находит владельца ключа. Неизвестный, просроченный или
// некорректный ключ дает 401.
func (s *Service) Authenticate(ctx context.Context, key string) (*models.User, *models.APIKey, error) {
	const op = "services.apikeys.Authenticate"
	invalid := apperr.New(apperr.ErrUnauthorized, "invalid api key")
	if !apikey.LooksValid(key) {
		return nil, nil, invalid
	}

	k, err := s.repo.GetAPIKeyByHash(ctx, apikey.Hash(key))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, invalid
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if k.Expired(s.now()) {
		return nil, nil, apperr.New(apperr.ErrUnauthorized, "api key expired")
	}

	user, err := s.repo.GetUserByID(ctx, k.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, invalid
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.TouchAPIKey(ctx, k.ID); err != nil {
		s.log.Warn("failed to touch api key", slog.String("op", op), slog.String("key_id", k.ID), sl.Err(err))
	}
	return user, k, nil
}
