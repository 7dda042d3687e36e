package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Mail.Provider != "resend" || cfg.Mail.FromEmail != "noreply@wolfdaybr.com.br" {
		t.Errorf("mail defaults = %+v", cfg.Mail)
	}
	if cfg.Queue.BatchSize != 10 || cfg.Queue.SendDelayMillis != 600 || cfg.Queue.RetryBackoffMinutes != 5 {
		t.Errorf("queue defaults = %+v", cfg.Queue)
	}
	if cfg.Webhook.DefaultCategory != "Camarote" {
		t.Errorf("default category = %q", cfg.Webhook.DefaultCategory)
	}
	if cfg.Event.ValidationBaseURL == "" || cfg.Event.QRImageBaseURL == "" {
		t.Errorf("event defaults = %+v", cfg.Event)
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		t.Error("allowed origins default missing")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("HUBLA_WEBHOOK_TOKEN", "tok-hubla")
	t.Setenv("LASTLINK_WEBHOOK_TOKEN", "tok-lastlink")

	cfg, err := LoadFromEnv(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, env must win over file", cfg.Server.Port)
	}
	if cfg.Mail.Resend.APIKey != "re_test" {
		t.Errorf("api key = %q", cfg.Mail.Resend.APIKey)
	}
	if cfg.Webhook.ProviderTokens["hubla"] != "tok-hubla" || cfg.Webhook.ProviderTokens["lastlink"] != "tok-lastlink" {
		t.Errorf("tokens = %v", cfg.Webhook.ProviderTokens)
	}
}

func TestLoadFromEnvMissingFile(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Queue.BatchSize != 10 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestQueueDurations(t *testing.T) {
	q := QueueConfig{SendDelayMillis: 600, RetryBackoffMinutes: 5, StaleSendingMinutes: 10}
	if q.SendDelay().Milliseconds() != 600 {
		t.Errorf("send delay = %v", q.SendDelay())
	}
	if q.RetryBackoff().Minutes() != 5 {
		t.Errorf("backoff = %v", q.RetryBackoff())
	}
	if q.StaleSendingAge().Minutes() != 10 {
		t.Errorf("stale age = %v", q.StaleSendingAge())
	}
}
