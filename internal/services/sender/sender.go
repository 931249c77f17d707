// Package sender отправляет письма по уведомлениям о подписках из RabbitMQ.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/uxerra/studio-api/internal/lib/rabbitmq"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/lib/smtp"
	"github.com/uxerra/studio-api/internal/models"
)

// SenderService собирает письма и отправляет их через SMTP.
type SenderService struct {
	transport smtp.Dialer
	appURL    string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.Dialer, appURL string, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		appURL:    strings.TrimRight(appURL, "/"),
		log:       log,
	}
}

// HandleNotice обработчик сообщений очередей notifications.*. Неразбираемое
// сообщение отбрасывается, ошибка SMTP возвращает его в очередь.
func (s *SenderService) HandleNotice(body []byte) error {
	const op = "services.sender.HandleNotice"
	log := s.log.With(slog.String("op", op))

	var notice models.BillingNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w: %w", rabbitmq.ErrReject, err)
	}
	if notice.Email == "" {
		log.Warn("notice without recipient", slog.String("user_id", notice.UserID))
		return fmt.Errorf("%s: empty recipient: %w", op, rabbitmq.ErrReject)
	}

	var subject, text string
	switch notice.Kind {
	case models.NoticeStatusChanged:
		subject, text = s.statusChanged(notice)
	case models.NoticeRenewalSoon:
		subject, text = s.renewalSoon(notice)
	default:
		log.Warn("unknown notice kind, skipping", slog.String("kind", notice.Kind))
		return nil
	}
	return s.sendEmail([]string{notice.Email}, subject, text)
}

func greeting(name string) string {
	if name == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello, %s!", name)
}

func (s *SenderService) statusChanged(n models.BillingNotice) (string, string) {
	switch n.Status {
	case models.SubscriptionActive:
		return fmt.Sprintf("Your UXerra Studio %s plan is active", n.Plan),
			fmt.Sprintf("%s\n\nYour %s subscription is now active. Paid features are unlocked in your workspace:\n%s\n",
				greeting(n.Name), n.Plan, s.appURL)
	case models.SubscriptionCancelled:
		return "Your UXerra Studio subscription was cancelled",
			fmt.Sprintf("%s\n\nYour %s subscription has been cancelled. You can subscribe again at any time:\n%s/pricing\n",
				greeting(n.Name), n.Plan, s.appURL)
	default:
		return "Action needed for your UXerra Studio subscription",
			fmt.Sprintf("%s\n\nWe could not keep your %s subscription active. Please check your payment details:\n%s/billing\n",
				greeting(n.Name), n.Plan, s.appURL)
	}
}

func (s *SenderService) renewalSoon(n models.BillingNotice) (string, string) {
	when := "soon"
	if n.CurrentPeriodEnd != nil {
		when = "on " + n.CurrentPeriodEnd.UTC().Format(time.DateOnly)
	}
	return "Your UXerra Studio subscription renews soon",
		fmt.Sprintf("%s\n\nYour %s subscription renews %s. No action is needed if you want to keep it.\nManage billing: %s/billing\n",
			greeting(n.Name), n.Plan, when, s.appURL)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
