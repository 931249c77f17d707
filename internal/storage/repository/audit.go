package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uxerra/studio-api/internal/models"
)

const auditColumns = `id, user_id, action, resource, resource_id, details, ip, user_agent, created_at`

func scanAudit(row scanner, extra ...any) (*models.AuditLog, error) {
	var (
		l       models.AuditLog
		userID  sql.NullString
		details []byte
	)
	dest := append([]any{&l.ID, &userID, &l.Action, &l.Resource, &l.ResourceID, &details,
		&l.IP, &l.UserAgent, &l.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	l.UserID = userID.String
	if err := fromJSON(details, &l.Details); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateAuditLog добавляет запись аудита. Пустой UserID пишется как NULL.
func (s *Storage) CreateAuditLog(ctx context.Context, l models.AuditLog) error {
	const op = "storage.CreateAuditLog"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if l.Details == nil {
		l.Details = map[string]any{}
	}
	details, err := toJSON(l.Details)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = s.DB.ExecContext(ctx, query,
		nullString(l.UserID), l.Action, l.Resource, l.ResourceID, details, l.IP, l.UserAgent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAuditLog возвращает запись аудита.
func (s *Storage) GetAuditLog(ctx context.Context, id string) (*models.AuditLog, error) {
	const op = "storage.GetAuditLog"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	l, err := scanAudit(s.DB.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return l, nil
}

func auditWhere(f models.AuditFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Resource != "" {
		add("resource = $%d", f.Resource)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAuditLogs возвращает страницу записей по фильтру, новые первыми.
func (s *Storage) ListAuditLogs(ctx context.Context, f models.AuditFilter) ([]*models.AuditLog, int, error) {
	const op = "storage.ListAuditLogs"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	where, args := auditWhere(f)
	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER()
			  FROM audit_logs%s
			  ORDER BY created_at DESC
			  LIMIT $%d OFFSET $%d`, auditColumns, where, len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.AuditLog
		total  int
	)
	for rows.Next() {
		l, err := scanAudit(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
