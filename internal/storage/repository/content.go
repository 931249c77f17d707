package repository

import (
	"context"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

const contentColumns = `id, user_id, content_type, title, prompt, tone, html, code, metadata, created_at, updated_at`

func scanContent(row scanner, extra ...any) (*models.GeneratedContent, error) {
	var (
		c        models.GeneratedContent
		metadata []byte
	)
	dest := append([]any{&c.ID, &c.UserID, &c.ContentType, &c.Title, &c.Prompt, &c.Tone,
		&c.HTML, &c.Code, &metadata, &c.CreatedAt, &c.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := fromJSON(metadata, &c.Metadata); err != nil {
		return nil, err
	}
	return &c, nil
}

func metadataJSON(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	return toJSON(m)
}

// CreateContent сохраняет сгенерированный контент.
func (s *Storage) CreateContent(ctx context.Context, c models.GeneratedContent) (*models.GeneratedContent, error) {
	const op = "storage.CreateContent"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	metadata, err := metadataJSON(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO generated_content (user_id, content_type, title, prompt, tone, html, code, metadata)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING ` + contentColumns
	saved, err := scanContent(s.DB.QueryRowContext(ctx, query,
		c.UserID, c.ContentType, c.Title, c.Prompt, c.Tone, c.HTML, c.Code, metadata))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// GetContent возвращает контент владельца.
func (s *Storage) GetContent(ctx context.Context, id, userID string) (*models.GeneratedContent, error) {
	const op = "storage.GetContent"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	c, err := scanContent(s.DB.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM generated_content WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return c, nil
}

// ListContent возвращает страницу контента пользователя. Пустой contentType не фильтрует.
func (s *Storage) ListContent(ctx context.Context, userID, contentType string, limit, offset int) ([]*models.GeneratedContent, int, error) {
	const op = "storage.ListContent"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + contentColumns + `, COUNT(*) OVER()
			  FROM generated_content
			  WHERE user_id = $1 AND ($2 = '' OR content_type = $2)
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, userID, contentType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.GeneratedContent
		total  int
	)
	for rows.Next() {
		c, err := scanContent(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

// UpdateContent перезаписывает изменяемые поля контента.
func (s *Storage) UpdateContent(ctx context.Context, c models.GeneratedContent) (*models.GeneratedContent, error) {
	const op = "storage.UpdateContent"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	metadata, err := metadataJSON(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE generated_content
			  SET title = $3, prompt = $4, tone = $5, html = $6, code = $7, metadata = $8, updated_at = NOW()
			  WHERE id = $1 AND user_id = $2
			  RETURNING ` + contentColumns
	saved, err := scanContent(s.DB.QueryRowContext(ctx, query,
		c.ID, c.UserID, c.Title, c.Prompt, c.Tone, c.HTML, c.Code, metadata))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// DeleteContent удаляет контент владельца.
func (s *Storage) DeleteContent(ctx context.Context, id, userID string) error {
	const op = "storage.DeleteContent"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM generated_content WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}
