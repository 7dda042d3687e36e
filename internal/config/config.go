// Package config loads application configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Mail     MailConfig     `yaml:"mail"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Queue    QueueConfig    `yaml:"queue"`
	Event    EventConfig    `yaml:"event"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis: the queue
// processor then falls back to a fixed inter-send sleep and skips the
// single-flight lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MailConfig selects and configures the outbound mail provider.
type MailConfig struct {
	Provider  string       `yaml:"provider"` // "resend" or "ses"
	FromName  string       `yaml:"from_name"`
	FromEmail string       `yaml:"from_email"`
	SendRPS   int          `yaml:"send_rps"`
	Resend    ResendConfig `yaml:"resend"`
	SES       SESConfig    `yaml:"ses"`
}

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SESConfig holds AWS SES credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// WebhookConfig holds per-provider secrets and the operator-maintained
// offer-id → category table. The table is injected configuration so it can
// be fixture-tested and changed without a deploy.
type WebhookConfig struct {
	ProviderTokens  map[string]string `yaml:"provider_tokens"`
	OfferCategories map[string]string `yaml:"offer_categories"`
	DefaultCategory string            `yaml:"default_category"`
}

// QueueConfig holds email queue processing settings.
type QueueConfig struct {
	BatchSize            int `yaml:"batch_size"`
	MaxRetries           int `yaml:"max_retries"`
	SendDelayMillis      int `yaml:"send_delay_millis"`
	RetryBackoffMinutes  int `yaml:"retry_backoff_minutes"`
	StaleSendingMinutes  int `yaml:"stale_sending_minutes"`
	ProcessIntervalSecs  int `yaml:"process_interval_seconds"`
	RecoveryIntervalSecs int `yaml:"recovery_interval_seconds"`
}

// SendDelay returns the inter-send delay within one batch.
func (q QueueConfig) SendDelay() time.Duration {
	return time.Duration(q.SendDelayMillis) * time.Millisecond
}

// RetryBackoff returns the base backoff unit; the effective delay is
// retry_count × RetryBackoff.
func (q QueueConfig) RetryBackoff() time.Duration {
	return time.Duration(q.RetryBackoffMinutes) * time.Minute
}

// StaleSendingAge returns how long a row may sit in "sending" before the
// recovery pass treats the worker as crashed.
func (q QueueConfig) StaleSendingAge() time.Duration {
	return time.Duration(q.StaleSendingMinutes) * time.Minute
}

// EventConfig holds event-specific settings used in ticket emails.
type EventConfig struct {
	ValidationBaseURL string `yaml:"validation_base_url"`
	QRImageBaseURL    string `yaml:"qr_image_base_url"`
}

// Load reads and parses the configuration file and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"https://validapass.com.br", "http://localhost:5173"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "resend"
	}
	if cfg.Mail.FromName == "" {
		cfg.Mail.FromName = "Wolf Day Brazil"
	}
	if cfg.Mail.FromEmail == "" {
		cfg.Mail.FromEmail = "noreply@wolfdaybr.com.br"
	}
	if cfg.Mail.SendRPS == 0 {
		cfg.Mail.SendRPS = 2
	}
	if cfg.Mail.Resend.BaseURL == "" {
		cfg.Mail.Resend.BaseURL = "https://api.resend.com"
	}
	if cfg.Mail.Resend.TimeoutSeconds == 0 {
		cfg.Mail.Resend.TimeoutSeconds = 30
	}
	if cfg.Mail.SES.Region == "" {
		cfg.Mail.SES.Region = "us-east-1"
	}
	if cfg.Webhook.ProviderTokens == nil {
		cfg.Webhook.ProviderTokens = map[string]string{}
	}
	if cfg.Webhook.OfferCategories == nil {
		cfg.Webhook.OfferCategories = map[string]string{}
	}
	if cfg.Webhook.DefaultCategory == "" {
		cfg.Webhook.DefaultCategory = "Camarote"
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 10
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.SendDelayMillis == 0 {
		cfg.Queue.SendDelayMillis = 600
	}
	if cfg.Queue.RetryBackoffMinutes == 0 {
		cfg.Queue.RetryBackoffMinutes = 5
	}
	if cfg.Queue.StaleSendingMinutes == 0 {
		cfg.Queue.StaleSendingMinutes = 10
	}
	if cfg.Queue.ProcessIntervalSecs == 0 {
		cfg.Queue.ProcessIntervalSecs = 60
	}
	if cfg.Queue.RecoveryIntervalSecs == 0 {
		cfg.Queue.RecoveryIntervalSecs = 120
	}
	if cfg.Event.ValidationBaseURL == "" {
		cfg.Event.ValidationBaseURL = "https://validapass.com.br"
	}
	if cfg.Event.QRImageBaseURL == "" {
		cfg.Event.QRImageBaseURL = "https://api.qrserver.com/v1/create-qr-code/"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A local .env file (if present) is loaded first, so secrets can live in
// .env during development and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		cfg.applyDefaults()
	} else if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Mail.Resend.APIKey = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mail.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mail.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mail.SES.Region = v
	}
	if v := os.Getenv("HUBLA_WEBHOOK_TOKEN"); v != "" {
		cfg.Webhook.ProviderTokens["hubla"] = v
	}
	if v := os.Getenv("LASTLINK_WEBHOOK_TOKEN"); v != "" {
		cfg.Webhook.ProviderTokens["lastlink"] = v
	}
	if v := os.Getenv("MONETIZZE_WEBHOOK_TOKEN"); v != "" {
		cfg.Webhook.ProviderTokens["monetizze"] = v
	}

	return cfg, nil
}
