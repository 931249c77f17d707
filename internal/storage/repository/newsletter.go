package repository

import (
	"context"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

const subscriberColumns = `id, email, name, status, groups, fields, created_at, updated_at`

func scanSubscriber(row scanner, extra ...any) (*models.NewsletterSubscriber, error) {
	var (
		sub            models.NewsletterSubscriber
		groups, fields []byte
	)
	dest := append([]any{&sub.ID, &sub.Email, &sub.Name, &sub.Status, &groups, &fields,
		&sub.CreatedAt, &sub.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := fromJSON(groups, &sub.Groups); err != nil {
		return nil, err
	}
	if err := fromJSON(fields, &sub.Fields); err != nil {
		return nil, err
	}
	if sub.Groups == nil {
		sub.Groups = []string{}
	}
	return &sub, nil
}

func subscriberJSON(sub models.NewsletterSubscriber) (string, string, error) {
	if sub.Groups == nil {
		sub.Groups = []string{}
	}
	if sub.Fields == nil {
		sub.Fields = map[string]any{}
	}
	groups, err := toJSON(sub.Groups)
	if err != nil {
		return "", "", err
	}
	fields, err := toJSON(sub.Fields)
	if err != nil {
		return "", "", err
	}
	return groups, fields, nil
}

// UpsertNewsletterSubscriber создает подписчика или обновляет существующего по email.
func (s *Storage) UpsertNewsletterSubscriber(ctx context.Context, sub models.NewsletterSubscriber) (*models.NewsletterSubscriber, error) {
	const op = "storage.UpsertNewsletterSubscriber"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	groups, fields, err := subscriberJSON(sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO newsletter_subscribers (email, name, status, groups, fields)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (email) DO UPDATE
			  SET name = CASE WHEN EXCLUDED.name = '' THEN newsletter_subscribers.name ELSE EXCLUDED.name END,
			      status = EXCLUDED.status,
			      groups = EXCLUDED.groups,
			      fields = newsletter_subscribers.fields || EXCLUDED.fields,
			      updated_at = NOW()
			  RETURNING ` + subscriberColumns
	saved, err := scanSubscriber(s.DB.QueryRowContext(ctx, query,
		sub.Email, sub.Name, sub.Status, groups, fields))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// GetNewsletterSubscriber возвращает подписчика по email.
func (s *Storage) GetNewsletterSubscriber(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	const op = "storage.GetNewsletterSubscriber"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub, err := scanSubscriber(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE email = $1`, email))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// ListNewsletterSubscribers возвращает страницу подписчиков. Пустой status не фильтрует.
func (s *Storage) ListNewsletterSubscribers(ctx context.Context, status string, limit, offset int) ([]*models.NewsletterSubscriber, int, error) {
	const op = "storage.ListNewsletterSubscribers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + subscriberColumns + `, COUNT(*) OVER()
			  FROM newsletter_subscribers
			  WHERE ($1 = '' OR status = $1)
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.NewsletterSubscriber
		total  int
	)
	for rows.Next() {
		sub, err := scanSubscriber(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

// UpdateNewsletterSubscriber перезаписывает имя, статус, группы и поля.
func (s *Storage) UpdateNewsletterSubscriber(ctx context.Context, sub models.NewsletterSubscriber) (*models.NewsletterSubscriber, error) {
	const op = "storage.UpdateNewsletterSubscriber"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	groups, fields, err := subscriberJSON(sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE newsletter_subscribers
			  SET name = $2, status = $3, groups = $4, fields = $5, updated_at = NOW()
			  WHERE email = $1
			  RETURNING ` + subscriberColumns
	saved, err := scanSubscriber(s.DB.QueryRowContext(ctx, query,
		sub.Email, sub.Name, sub.Status, groups, fields))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return saved, nil
}

// SetNewsletterSubscriberStatus меняет только статус подписчика.
func (s *Storage) SetNewsletterSubscriberStatus(ctx context.Context, email, status string) error {
	const op = "storage.SetNewsletterSubscriberStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE newsletter_subscribers SET status = $2, updated_at = NOW() WHERE email = $1`,
		email, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// DeleteNewsletterSubscriber удаляет подписчика.
func (s *Storage) DeleteNewsletterSubscriber(ctx context.Context, email string) error {
	const op = "storage.DeleteNewsletterSubscriber"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM newsletter_subscribers WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}
