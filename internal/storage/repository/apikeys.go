package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

const apiKeyColumns = `id, user_id, name, key_prefix, key_hash, permissions, expires_at, last_used_at,
	created_at, updated_at`

func scanAPIKey(row scanner) (*models.APIKey, error) {
	var (
		k                   models.APIKey
		permissions         []byte
		expiresAt, lastUsed sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &permissions,
		&expiresAt, &lastUsed, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(permissions, &k.Permissions); err != nil {
		return nil, err
	}
	if k.Permissions == nil {
		k.Permissions = []string{}
	}
	k.ExpiresAt = timePtr(expiresAt)
	k.LastUsedAt = timePtr(lastUsed)
	return &k, nil
}

// CreateAPIKey сохраняет ключ. Хранится только хеш.
func (s *Storage) CreateAPIKey(ctx context.Context, k models.APIKey) (*models.APIKey, error) {
	const op = "storage.CreateAPIKey"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	permissions, err := toJSON(k.Permissions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO api_keys (user_id, name, key_prefix, key_hash, permissions, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + apiKeyColumns
	saved, err := scanAPIKey(s.DB.QueryRowContext(ctx, query,
		k.UserID, k.Name, k.KeyPrefix, k.KeyHash, permissions, nullTime(k.ExpiresAt)))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// GetAPIKey возвращает ключ владельца.
func (s *Storage) GetAPIKey(ctx context.Context, id, userID string) (*models.APIKey, error) {
	const op = "storage.GetAPIKey"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	k, err := scanAPIKey(s.DB.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return k, nil
}

// GetAPIKeyByHash ищет ключ по sha256 хешу.
func (s *Storage) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	const op = "storage.GetAPIKeyByHash"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	k, err := scanAPIKey(s.DB.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, hash))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return k, nil
}

// ListAPIKeys возвращает все ключи пользователя.
func (s *Storage) ListAPIKeys(ctx context.Context, userID string) ([]*models.APIKey, error) {
	const op = "storage.ListAPIKeys"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []*models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateAPIKey перезаписывает имя, права, срок действия и хеш ключа.
func (s *Storage) UpdateAPIKey(ctx context.Context, k models.APIKey) (*models.APIKey, error) {
	const op = "storage.UpdateAPIKey"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	permissions, err := toJSON(k.Permissions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE api_keys
			  SET name = $3, key_prefix = $4, key_hash = $5, permissions = $6, expires_at = $7, updated_at = NOW()
			  WHERE id = $1 AND user_id = $2
			  RETURNING ` + apiKeyColumns
	saved, err := scanAPIKey(s.DB.QueryRowContext(ctx, query,
		k.ID, k.UserID, k.Name, k.KeyPrefix, k.KeyHash, permissions, nullTime(k.ExpiresAt)))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// DeleteAPIKey удаляет ключ владельца.
func (s *Storage) DeleteAPIKey(ctx context.Context, id, userID string) error {
	const op = "storage.DeleteAPIKey"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// TouchAPIKey отмечает время последнего использования ключа.
func (s *Storage) TouchAPIKey(ctx context.Context, id string) error {
	const op = "storage.TouchAPIKey"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
