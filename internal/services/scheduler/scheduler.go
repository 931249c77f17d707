// Package scheduler периодически ищет подписки, которые продлеваются в
// ближайшие сутки, и публикует напоминания для notification-sender.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/uxerra/studio-api/internal/lib/rabbitmq"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/models"
)

// DefaultInterval период между проходами.
const DefaultInterval = 12 * time.Hour

// lead за сколько до конца периода отправляется напоминание.
const lead = 24 * time.Hour

// SubscriptionRepository поиск продлений.
type SubscriptionRepository interface {
	FindRenewalsBetween(ctx context.Context, from, to time.Time) ([]*models.BillingNotice, error)
}

// Publisher публикация напоминаний.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// SchedulerService планировщик напоминаний.
type SchedulerService struct {
	repo      SubscriptionRepository
	publisher Publisher
	interval  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, publisher Publisher, interval time.Duration, log *slog.Logger) *SchedulerService {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SchedulerService{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

// Run делает проход сразу и затем раз в interval, пока ctx не отменен.
func (s *SchedulerService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce публикует напоминания о подписках, период которых заканчивается
// в окне [now+24h, now+24h+interval). Соседние проходы не пересекаются,
// поэтому каждое продление попадает в рассылку один раз.
// Возвращает число опубликованных сообщений.
func (s *SchedulerService) RunOnce(ctx context.Context) int {
	const op = "services.scheduler.RunOnce"
	log := s.log.With(slog.String("op", op))

	from := s.now().Add(lead)
	to := from.Add(s.interval)
	log.Info("looking for upcoming renewals", slog.Time("from", from), slog.Time("to", to))

	notices, err := s.repo.FindRenewalsBetween(ctx, from, to)
	if err != nil {
		log.Error("failed to find renewals", sl.Err(err))
		return 0
	}
	if len(notices) == 0 {
		log.Info("no upcoming renewals found")
		return 0
	}

	published := 0
	for _, n := range notices {
		n.Kind = models.NoticeRenewalSoon
		if err = s.publisher.Publish(ctx, rabbitmq.RoutingUpcoming, n); err != nil {
			log.Error("failed to publish renewal notice", slog.String("user_id", n.UserID), sl.Err(err))
			continue
		}
		published++
	}
	log.Info("renewal notices published", slog.Int("count", published), slog.Int("found", len(notices)))
	return published
}
