package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

const webhookEventColumns = `id, provider, provider_event_id, type, payload, status, error, created_at, processed_at`

func scanWebhookEvent(row scanner, extra ...any) (*models.WebhookEvent, error) {
	var (
		e           models.WebhookEvent
		eventID     sql.NullString
		payload     []byte
		errText     sql.NullString
		processedAt sql.NullTime
	)
	dest := append([]any{&e.ID, &e.Provider, &eventID, &e.Type, &payload, &e.Status,
		&errText, &e.CreatedAt, &processedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.ProviderEventID = eventID.String
	e.Payload = payload
	e.Error = errText.String
	e.ProcessedAt = timePtr(processedAt)
	return &e, nil
}

// CreateWebhookEvent записывает полученное событие со статусом received.
// Payload хранится в BYTEA байт в байт, без нормализации JSON.
func (s *Storage) CreateWebhookEvent(ctx context.Context, e models.WebhookEvent) (string, error) {
	const op = "storage.CreateWebhookEvent"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	query := `INSERT INTO webhook_events (provider, provider_event_id, type, payload, status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		e.Provider, nullString(e.ProviderEventID), e.Type, []byte(e.Payload), models.WebhookReceived,
	).Scan(&id); err != nil {
		return "", wrapErr(op, err)
	}
	return id, nil
}

// MarkWebhookEventProcessed завершает обработку события успешно.
func (s *Storage) MarkWebhookEventProcessed(ctx context.Context, id string) error {
	const op = "storage.MarkWebhookEventProcessed"
	return s.finishWebhookEvent(ctx, op, id, models.WebhookProcessed, "")
}

// MarkWebhookEventFailed завершает обработку события с ошибкой.
func (s *Storage) MarkWebhookEventFailed(ctx context.Context, id, errText string) error {
	const op = "storage.MarkWebhookEventFailed"
	return s.finishWebhookEvent(ctx, op, id, models.WebhookFailed, errText)
}

// Статус меняется только из received, поэтому переход происходит один раз.
func (s *Storage) finishWebhookEvent(ctx context.Context, op, id, status, errText string) error {
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE webhook_events
			  SET status = $2, error = $3, processed_at = NOW()
			  WHERE id = $1 AND status = 'received'`
	res, err := s.DB.ExecContext(ctx, query, id, status, nullString(errText))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// GetWebhookEvent возвращает событие журнала.
func (s *Storage) GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	const op = "storage.GetWebhookEvent"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	e, err := scanWebhookEvent(s.DB.QueryRowContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return e, nil
}

// ListWebhookEvents возвращает страницу журнала, новые события первыми.
// Пустые provider и status не фильтруют.
func (s *Storage) ListWebhookEvents(ctx context.Context, provider, status string, limit, offset int) ([]*models.WebhookEvent, int, error) {
	const op = "storage.ListWebhookEvents"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + webhookEventColumns + `, COUNT(*) OVER()
			  FROM webhook_events
			  WHERE ($1 = '' OR provider = $1) AND ($2 = '' OR status = $2)
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, provider, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.WebhookEvent
		total  int
	)
	for rows.Next() {
		e, err := scanWebhookEvent(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
