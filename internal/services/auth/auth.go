// Package auth содержит регистрацию, вход и выдачу JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/jwt"
	"github.com/uxerra/studio-api/internal/lib/password"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/services/audit"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Auditor журнал действий.
type Auditor interface {
	Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any)
}

// Service отвечает за регистрацию, авторизацию и профиль.
type Service struct {
	users    UserRepository
	jwtMaker jwt.Maker
	auditor  Auditor
	log      *slog.Logger
}

// New создает Service.
func New(users UserRepository, jwtMaker jwt.Maker, auditor Auditor, log *slog.Logger) *Service {
	return &Service{users: users, jwtMaker: jwtMaker, auditor: auditor, log: log}
}

// Register создает пользователя с ролью USER и сразу выдает токен.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	const op = "services.auth.Register"

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, apperr.New(apperr.ErrConflict, "email already registered")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.auditor.Record(ctx, user.ID, audit.ActionRegister, audit.ResourceUser, user.ID, nil)
	s.log.Info("user registered", slog.String("op", op), slog.String("user_id", user.ID))
	return &models.AuthResult{User: user, Token: token}, nil
}

// Login проверяет пароль и выдает токен. Неизвестный email и неверный
// пароль неразличимы для клиента.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	const op = "services.auth.Login"
	invalid := apperr.New(apperr.ErrUnauthorized, "invalid credentials")

	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return nil, invalid
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.auditor.Record(ctx, user.ID, audit.ActionLogin, audit.ResourceUser, user.ID, nil)
	return &models.AuthResult{User: user, Token: token}, nil
}

// Profile возвращает текущего пользователя.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	const op = "services.auth.Profile"
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
