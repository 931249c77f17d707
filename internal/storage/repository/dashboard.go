package repository

import (
	"context"
	"fmt"

	"github.com/uxerra/studio-api/internal/models"
)

// DashboardStats собирает агрегаты для админ панели.
func (s *Storage) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	const op = "storage.DashboardStats"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		SubscriptionsByStatus: map[string]int{},
		SubscriptionsByPlan:   map[string]int{},
	}

	countsQuery := `SELECT
			      (SELECT COUNT(*) FROM users),
			      (SELECT COUNT(*) FROM users WHERE role = 'ADMIN'),
			      (SELECT COUNT(*) FROM newsletter_subscribers WHERE status = 'active'),
			      (SELECT COUNT(*) FROM generated_content),
			      (SELECT COUNT(*) FROM branding_packages),
			      (SELECT COUNT(*) FROM webhook_events WHERE status = 'failed')`
	if err := s.DB.QueryRowContext(ctx, countsQuery).Scan(&stats.Users, &stats.Admins,
		&stats.NewsletterSubscribers, &stats.GeneratedContent, &stats.BrandingPackages,
		&stats.FailedWebhookEvents); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT status, plan, COUNT(*) FROM subscriptions GROUP BY status, plan`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var (
			status, plan string
			n            int
		)
		if err = rows.Scan(&status, &plan, &n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stats.SubscriptionsByStatus[status] += n
		stats.SubscriptionsByPlan[plan] += n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
