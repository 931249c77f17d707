// Package config предоставляет структуры и функции для загрузки конфигурации
// из переменных окружения, .env файла и опционального YAML файла.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	// EnvLocal локальное окружение разработчика.
	EnvLocal = "local"
	// EnvDev общее dev окружение.
	EnvDev = "dev"
	// EnvProd боевое окружение.
	EnvProd = "prod"

	minJWTSecretLength = 32
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	AppURL                  string `yaml:"app_url" env:"APP_URL" env-default:"http://localhost:3013"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL" env-required:"true"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Stripe                  `yaml:"stripe"`
	OpenAI                  `yaml:"openai"`
	MailerLite              `yaml:"mailerlite"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":4001"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"JWT_EXPIRES_IN" env-default:"168h"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
}

// RabbitMQ настройки брокера сообщений. Пустой URL отключает публикацию событий.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
}

// SMTP настройки почтового транспорта для notification-sender.
type SMTP struct {
	SMTPHost     string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser     string `yaml:"user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom     string `yaml:"from" env:"SMTP_FROM" env-default:"UXerra Studio <no-reply@uxerra.pro>"`
}

// Stripe настройки платежного провайдера.
type Stripe struct {
	StripeSecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	StripeProPriceID    string `yaml:"pro_price_id" env:"STRIPE_PRO_PRICE_ID"`
	StripeAgencyPriceID string `yaml:"agency_price_id" env:"STRIPE_AGENCY_PRICE_ID"`
}

// OpenAI настройки генерации контента.
type OpenAI struct {
	OpenAIAPIKey string `yaml:"api_key" env:"OPENAI_API_KEY"`
	OpenAIModel  string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4-turbo-preview"`
}

// MailerLite настройки рассылки.
type MailerLite struct {
	MailerLiteAPIKey        string `yaml:"api_key" env:"MAILERLITE_API_KEY"`
	MailerLiteGroupID       string `yaml:"group_id" env:"MAILERLITE_GROUP_ID"`
	MailerLiteWebhookSecret string `yaml:"webhook_secret" env:"MAILERLITE_WEBHOOK_SECRET"`
}

// RateLimit лимиты запросов на один IP.
type RateLimit struct {
	APIMax        int           `yaml:"api_max" env:"RATE_LIMIT_API_MAX" env-default:"100"`
	APIWindow     time.Duration `yaml:"api_window" env:"RATE_LIMIT_API_WINDOW" env-default:"15m"`
	AuthMax       int           `yaml:"auth_max" env:"RATE_LIMIT_AUTH_MAX" env-default:"5"`
	AuthWindow    time.Duration `yaml:"auth_window" env:"RATE_LIMIT_AUTH_WINDOW" env-default:"1h"`
	AIMax         int           `yaml:"ai_max" env:"RATE_LIMIT_AI_MAX" env-default:"20"`
	AIWindow      time.Duration `yaml:"ai_window" env:"RATE_LIMIT_AI_WINDOW" env-default:"1h"`
	WebhookMax    int           `yaml:"webhook_max" env:"RATE_LIMIT_WEBHOOK_MAX" env-default:"10"`
	WebhookWindow time.Duration `yaml:"webhook_window" env:"RATE_LIMIT_WEBHOOK_WINDOW" env-default:"1m"`
}

// Plan описывает тарифный план, доступный для оформления через checkout.
type Plan struct {
	ID      string
	Name    string
	PriceID string
}

// Plans возвращает таблицу тарифов: идентификатор плана -> цена в Stripe.
func (c *Config) Plans() map[string]Plan {
	return map[string]Plan{
		"pro_monthly":    {ID: "pro_monthly", Name: "PRO", PriceID: c.StripeProPriceID},
		"agency_monthly": {ID: "agency_monthly", Name: "AGENCY", PriceID: c.StripeAgencyPriceID},
	}
}

// Validate проверяет значения, которые cleanenv проверить не может.
func (c *Config) Validate() error {
	const op = "config.Validate"
	if c.StorageConnectionString == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", op)
	}
	if len(c.JWTSecretKey) < minJWTSecretLength {
		return fmt.Errorf("%s: JWT_SECRET must be at least %d characters", op, minJWTSecretLength)
	}
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd, "test":
	default:
		return fmt.Errorf("%s: unknown env %q", op, c.Env)
	}
	if c.Env != EnvProd {
		return nil
	}

	var errs []error
	required := map[string]string{
		"STRIPE_SECRET_KEY":     c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookSecret,
		"OPENAI_API_KEY":        c.OpenAIAPIKey,
		"MAILERLITE_API_KEY":    c.MailerLiteAPIKey,
		"MAILERLITE_GROUP_ID":   c.MailerLiteGroupID,
	}
	for name, value := range required {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required in %s", name, EnvProd))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return nil
}

// Load читает .env (если есть), затем YAML из CONFIG_PATH (если задан)
// и переменные окружения, и валидирует результат.
func Load() (*Config, error) {
	const op = "config.Load"

	_ = godotenv.Load()

	var cfg Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: file: %s - does not exist", op, configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad загружает конфиг и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}
