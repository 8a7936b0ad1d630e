package config

import (
	"testing"
	"time"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Host == "" {
		t.Error("expected Server.Host to be set")
	}
	if cfg.Server.Port == 0 {
		t.Error("expected Server.Port to be non-zero")
	}
	if cfg.Database.Name == "" {
		t.Error("expected Database.Name to be set")
	}
	if cfg.Log.Level == "" {
		t.Error("expected Log.Level to be set")
	}
}

func TestConfig_DatabaseSettings(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Database.MaxOpenConns == 0 {
		t.Error("expected MaxOpenConns to be set")
	}
	if cfg.Database.MaxIdleConns == 0 {
		t.Error("expected MaxIdleConns to be set")
	}
	if cfg.Database.ConnMaxLifetime < time.Minute {
		t.Error("connection max lifetime should be at least 1 minute")
	}
}

func TestConfig_WebhookDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Webhook.Timeout == 0 {
		t.Error("expected webhook timeout to be set")
	}
	if cfg.Webhook.DefaultRetries == 0 {
		t.Error("expected webhook default retries to be set")
	}
	if cfg.Webhook.BackoffBase == 0 {
		t.Error("expected webhook backoff base to be set")
	}
	if cfg.Webhook.SignatureHeader != "X-Engage-Signature" {
		t.Errorf("unexpected signature header %q", cfg.Webhook.SignatureHeader)
	}
}

func TestConfig_ChannelsDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Channels.BaseURL == "" {
		t.Error("expected channels base URL to be set")
	}
	if cfg.Channels.Timeout == 0 {
		t.Error("expected channels timeout to be set")
	}
}

func TestConfig_RateLimiting(t *testing.T) {
	cfg := GetDefaultConfig()

	if !cfg.Security.RateLimiting.Enabled {
		t.Error("expected rate limiting to be enabled")
	}
	if cfg.Security.RateLimiting.RequestsPerMinute == 0 {
		t.Error("expected requests per minute to be set")
	}
	if cfg.Security.RateLimiting.Burst == 0 {
		t.Error("expected burst to be set")
	}
}

func TestConfig_TracingDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Monitoring.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Monitoring.Tracing.Endpoint == "" {
		t.Error("expected tracing endpoint to be set")
	}
	if cfg.Monitoring.Tracing.SampleRatio == 0 {
		t.Error("expected sample ratio to be set")
	}
}

func TestInitLogger_DefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Output = "stdout"

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
}

func TestInitLogger_CustomLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Output = "stdout"
	cfg.Log.Level = "debug"

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger with debug level failed: %v", err)
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Output = "stdout"
	cfg.Log.Level = "invalid"

	// Falls back to info.
	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger with invalid level failed: %v", err)
	}
}

func TestInitLogger_TextFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Output = "stdout"
	cfg.Log.Format = "text"

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger with text format failed: %v", err)
	}
}

func TestInitLogger_FileOutput(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Output = "file"
	cfg.Log.FilePath = "/tmp/test-engage.log"

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger with file output failed: %v", err)
	}
}

func TestInitLogger_BothOutput(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Output = "both"
	cfg.Log.FilePath = "/tmp/test-engage-both.log"

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger with both output failed: %v", err)
	}
}
