// Package users управляет учетными записями: профиль текущего пользователя
// и операции администратора над пользователями.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/password"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/services/audit"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

const maxPageSize = 100

// Repository хранилище пользователей.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	UpdateUser(ctx context.Context, user models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SubscriptionCanceler отменяет подписку пользователя у провайдера.
type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Auditor журнал действий.
type Auditor interface {
	Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any)
}

// Service сервис учетных записей.
type Service struct {
	repo    Repository
	billing SubscriptionCanceler
	auditor Auditor
	log     *slog.Logger
}

// New создает Service.
func New(repo Repository, billing SubscriptionCanceler, auditor Auditor, log *slog.Logger) *Service {
	return &Service{repo: repo, billing: billing, auditor: auditor, log: log}
}

// Get возвращает пользователя по id.
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	const op = "services.users.Get"
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateProfile меняет имя и email текущего пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	const op = "services.users.UpdateProfile"
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	changed := map[string]any{}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
		changed["name"] = user.Name
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		changed["email"] = user.Email
	}

	updated, err := s.save(ctx, op, *user)
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, userID, audit.ActionProfileUpdate, audit.ResourceUser, userID, changed)
	return updated, nil
}

// ChangePassword меняет пароль после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	const op = "services.users.ChangePassword"
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err = password.CompareHash(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperr.New(apperr.ErrValidation, "current password is incorrect")
	}
	if user.PasswordHash, err = password.GetHash(req.NewPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = s.save(ctx, op, *user); err != nil {
		return err
	}
	s.auditor.Record(ctx, userID, audit.ActionPasswordChange, audit.ResourceUser, userID, nil)
	return nil
}

// DeleteAccount удаляет учетную запись текущего пользователя.
// Запись аудита пишется без user_id: строки пользователя уже нет,
// удаленный id остается в resource_id.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.delete(ctx, userID); err != nil {
		return err
	}
	s.auditor.Record(ctx, "", audit.ActionAccountDelete, audit.ResourceUser, userID, nil)
	return nil
}

// List страница пользователей для администратора.
func (s *Service) List(ctx context.Context, page, limit int) (*models.Page[*models.User], error) {
	const op = "services.users.List"
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = 20
	}
	items, total, err := s.repo.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Page[*models.User]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Create создает пользователя от имени администратора.
func (s *Service) Create(ctx context.Context, adminID string, req models.AdminCreateUserRequest) (*models.User, error) {
	const op = "services.users.Create"
	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.CreateUser(ctx, models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hashed,
		Role:         req.Role,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, apperr.New(apperr.ErrConflict, "email already registered")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.auditor.Record(ctx, adminID, audit.ActionAdminUserCreate, audit.ResourceUser, user.ID, map[string]any{"role": user.Role})
	return user, nil
}

// Update частично обновляет пользователя от имени администратора.
func (s *Service) Update(ctx context.Context, adminID, userID string, req models.AdminUpdateUserRequest) (*models.User, error) {
	const op = "services.users.Update"
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	changed := map[string]any{}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		changed["email"] = user.Email
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
		changed["name"] = user.Name
	}
	if req.Role != nil {
		if userID == adminID && *req.Role != models.RoleAdmin {
			return nil, apperr.New(apperr.ErrValidation, "cannot remove your own admin role")
		}
		user.Role = *req.Role
		changed["role"] = user.Role
	}
	if req.Password != nil {
		if user.PasswordHash, err = password.GetHash(*req.Password); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		changed["password"] = true
	}

	updated, err := s.save(ctx, op, *user)
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, adminID, audit.ActionAdminUserUpdate, audit.ResourceUser, userID, changed)
	return updated, nil
}

// Delete удаляет пользователя от имени администратора.
func (s *Service) Delete(ctx context.Context, adminID, userID string) error {
	if adminID == userID {
		return apperr.New(apperr.ErrValidation, "cannot delete your own account from the admin panel")
	}
	if err := s.delete(ctx, userID); err != nil {
		return err
	}
	s.auditor.Record(ctx, adminID, audit.ActionAdminUserDelete, audit.ResourceUser, userID, nil)
	return nil
}

// delete сначала отменяет подписку у провайдера, чтобы не оставить
// списания за удаленный аккаунт.
func (s *Service) delete(ctx context.Context, userID string) error {
	const op = "services.users.delete"
	if _, err := s.billing.CancelSubscription(ctx, userID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.log.Error("failed to cancel subscription before delete",
			slog.String("op", op), slog.String("user_id", userID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.repo.DeleteUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user deleted", slog.String("op", op), slog.String("user_id", userID))
	return nil
}

func (s *Service) save(ctx context.Context, op string, user models.User) (*models.User, error) {
	updated, err := s.repo.UpdateUser(ctx, user)
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return nil, apperr.New(apperr.ErrConflict, "email already registered")
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}
