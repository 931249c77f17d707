package repository

import (
	"context"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

const brandingColumns = `id, user_id, name, industry, goal, description, target_audience, style,
	color_preference, status, result, created_at, updated_at`

func scanBranding(row scanner, extra ...any) (*models.BrandingPackage, error) {
	var (
		p      models.BrandingPackage
		result []byte
	)
	dest := append([]any{&p.ID, &p.UserID, &p.Name, &p.Industry, &p.Goal, &p.Description,
		&p.TargetAudience, &p.Style, &p.ColorPreference, &p.Status, &result,
		&p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if len(result) > 0 && string(result) != "null" {
		p.Result = &models.BrandingResult{}
		if err := fromJSON(result, p.Result); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func brandingResultJSON(r *models.BrandingResult) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := toJSON(r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBrandingPackage сохраняет пакет в статусе draft.
func (s *Storage) CreateBrandingPackage(ctx context.Context, p models.BrandingPackage) (*models.BrandingPackage, error) {
	const op = "storage.CreateBrandingPackage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = models.BrandingDraft
	}

	query := `INSERT INTO branding_packages
			  (user_id, name, industry, goal, description, target_audience, style, color_preference, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + brandingColumns
	saved, err := scanBranding(s.DB.QueryRowContext(ctx, query,
		p.UserID, p.Name, p.Industry, p.Goal, p.Description, p.TargetAudience, p.Style,
		p.ColorPreference, p.Status))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// GetBrandingPackage возвращает пакет владельца. Чужой пакет дает ErrNotFound.
func (s *Storage) GetBrandingPackage(ctx context.Context, id, userID string) (*models.BrandingPackage, error) {
	const op = "storage.GetBrandingPackage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanBranding(s.DB.QueryRowContext(ctx,
		`SELECT `+brandingColumns+` FROM branding_packages WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return p, nil
}

// ListBrandingPackages возвращает страницу пакетов пользователя.
func (s *Storage) ListBrandingPackages(ctx context.Context, userID string, limit, offset int) ([]*models.BrandingPackage, int, error) {
	const op = "storage.ListBrandingPackages"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + brandingColumns + `, COUNT(*) OVER()
			  FROM branding_packages
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.BrandingPackage
		total  int
	)
	for rows.Next() {
		p, err := scanBranding(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

// UpdateBrandingPackage перезаписывает параметры, статус и результат пакета.
func (s *Storage) UpdateBrandingPackage(ctx context.Context, p models.BrandingPackage) (*models.BrandingPackage, error) {
	const op = "storage.UpdateBrandingPackage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	result, err := brandingResultJSON(p.Result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE branding_packages
			  SET name = $3, industry = $4, goal = $5, description = $6, target_audience = $7,
			      style = $8, color_preference = $9, status = $10, result = $11, updated_at = NOW()
			  WHERE id = $1 AND user_id = $2
			  RETURNING ` + brandingColumns
	saved, err := scanBranding(s.DB.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Name, p.Industry, p.Goal, p.Description, p.TargetAudience,
		p.Style, p.ColorPreference, p.Status, result))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// DeleteBrandingPackage удаляет пакет владельца.
func (s *Storage) DeleteBrandingPackage(ctx context.Context, id, userID string) error {
	const op = "storage.DeleteBrandingPackage"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM branding_packages WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}
