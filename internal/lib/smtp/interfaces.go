// Package smtp почтовый транспорт notification-sender.
package smtp

import "io"

// Client команды SMTP сессии, которые использует отправка писем.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает SMTP сессию и знает адрес отправителя.
type Dialer interface {
	Connect() (Client, error)
	From() string
}
