package smtp

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/lib/sl"
)

const dialTimeout = 10 * time.Second

// Transport SMTP транспорт поверх net/smtp.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

type clientWrapper struct {
	client *smtp.Client
}

func (w *clientWrapper) Mail(from string) error       { return w.client.Mail(from) }
func (w *clientWrapper) Rcpt(to string) error         { return w.client.Rcpt(to) }
func (w *clientWrapper) Data() (io.WriteCloser, error) { return w.client.Data() }
func (w *clientWrapper) Quit() error                  { return w.client.Quit() }
func (w *clientWrapper) Close() error                 { return w.client.Close() }

// NewTransport создает Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Connect открывает сессию: STARTTLS, если сервер его объявляет,
// и PLAIN авторизация, если задан пользователь.
func (t *Transport) Connect() (Client, error) {
	const op = "smtp.Connect"
	if t.cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%s: SMTP_HOST is not set", op)
	}
	addr := net.JoinHostPort(t.cfg.SMTPHost, strconv.Itoa(t.cfg.SMTPPort))

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		t.log.Error("failed to dial SMTP server", slog.String("addr", addr), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: t.cfg.SMTPHost, MinVersion: tls.VersionTLS12}
		if err = client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: starttls: %w", op, err)
		}
	}

	if t.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPassword, t.cfg.SMTPHost)
		if err = client.Auth(auth); err != nil {
			_ = client.Close()
			t.log.Error("smtp auth failed", sl.Err(err))
			return nil, fmt.Errorf("%s: auth: %w", op, err)
		}
	}

	return &clientWrapper{client: client}, nil
}

// From адрес отправителя для MAIL FROM. Если SMTP_FROM задан с именем
// ("UXerra <no-reply@uxerra.pro>"), возвращается только адрес.
func (t *Transport) From() string {
	if addr, err := mail.ParseAddress(t.cfg.SMTPFrom); err == nil {
		return addr.Address
	}
	return t.cfg.SMTPFrom
}

// Header значение заголовка From.
func (t *Transport) Header() string {
	return t.cfg.SMTPFrom
}
