package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uxerra/studio-api/internal/models"
)

const userColumns = `id, email, name, password_hash, role, stripe_customer_id, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var (
		u          models.User
		customerID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&customerID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.StripeCustomerID = customerID.String
	return &u, nil
}

// CreateUser сохраняет нового пользователя. Повтор email дает ErrAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `INSERT INTO users (email, name, password_hash, role)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		user.Email, user.Name, user.PasswordHash, user.Role))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUserByStripeCustomerID возвращает владельца клиента Stripe.
func (s *Storage) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.GetUserByStripeCustomerID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// ListUsers возвращает страницу пользователей и их общее количество.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + `, COUNT(*) OVER()
			  FROM users
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.User
		total  int
	)
	for rows.Next() {
		var (
			u          models.User
			customerID sql.NullString
		)
		if err = rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
			&customerID, &u.CreatedAt, &u.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		u.StripeCustomerID = customerID.String
		result = append(result, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

// UpdateUser перезаписывает email, имя, хеш пароля и роль.
func (s *Storage) UpdateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.UpdateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE users
			  SET email = $2, name = $3, password_hash = $4, role = $5, updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// SetStripeCustomerID сохраняет идентификатор клиента Stripe.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, customerID)
	if err != nil {
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// DeleteUser удаляет пользователя вместе с зависимыми записями.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.DeleteUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// FindRenewalsBetween находит активные подписки, период которых
// заканчивается в интервале [from, to), вместе с данными владельца.
func (s *Storage) FindRenewalsBetween(ctx context.Context, from, to time.Time) ([]*models.BillingNotice, error) {
	const op = "storage.FindRenewalsBetween"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT u.id, u.email, u.name, s.status, s.plan, s.current_period_end
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  WHERE s.status = 'ACTIVE'
			    AND s.current_period_end >= $1
			    AND s.current_period_end < $2`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.BillingNotice
	for rows.Next() {
		n := models.BillingNotice{Kind: models.NoticeRenewalSoon}
		var periodEnd sql.NullTime
		if err = rows.Scan(&n.UserID, &n.Email, &n.Name, &n.Status, &n.Plan, &periodEnd); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		n.CurrentPeriodEnd = timePtr(periodEnd)
		result = append(result, &n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
