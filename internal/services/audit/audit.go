// Package audit записывает и выдает журнал действий пользователей.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/lib/clientinfo"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// Действия, которые попадают в журнал.
const (
	ActionRegister        = "user.register"
	ActionLogin           = "user.login"
	ActionProfileUpdate   = "user.update"
	ActionPasswordChange  = "user.change_password"
	ActionAccountDelete   = "user.delete"
	ActionAPIKeyCreate    = "api_key.create"
	ActionAPIKeyUpdate    = "api_key.update"
	ActionAPIKeyDelete    = "api_key.delete"
	ActionAPIKeyRegen     = "api_key.regenerate"
	ActionSubscriptionEnd = "subscription.cancel"
	ActionAdminUserCreate = "admin.user.create"
	ActionAdminUserUpdate = "admin.user.update"
	ActionAdminUserDelete = "admin.user.delete"
)

// Ресурсы.
const (
	ResourceUser         = "user"
	ResourceAPIKey       = "api_key"
	ResourceSubscription = "subscription"
)

const maxLimit = 100

// Repository хранилище журнала.
type Repository interface {
	CreateAuditLog(ctx context.Context, l models.AuditLog) error
	GetAuditLog(ctx context.Context, id string) (*models.AuditLog, error)
	ListAuditLogs(ctx context.Context, f models.AuditFilter) ([]*models.AuditLog, int, error)
}

// Service журнал аудита.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Record пишет запись журнала, дополняя ее IP и User-Agent из контекста.
// Ошибка записи только логируется: аудит не должен ломать основную операцию.
func (s *Service) Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any) {
	const op = "services.audit.Record"
	info := clientinfo.From(ctx)
	entry := models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         info.IP,
		UserAgent:  info.UserAgent,
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.Error("failed to write audit log",
			slog.String("op", op),
			slog.String("action", action),
			sl.Err(err),
		)
	}
}

// Get возвращает запись по id.
func (s *Service) Get(ctx context.Context, id string) (*models.AuditLog, error) {
	const op = "services.audit.Get"
	entry, err := s.repo.GetAuditLog(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "audit log not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}

// List возвращает страницу журнала по фильтру.
func (s *Service) List(ctx context.Context, f models.AuditFilter) (*models.Page[*models.AuditLog], error) {
	const op = "services.audit.List"
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, apperr.New(apperr.ErrValidation, "endDate must not be before startDate")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	items, total, err := s.repo.ListAuditLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Page[*models.AuditLog]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}
