package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"QUILL_PORT", "NATS_URL", "NATS_TOKEN", "DATABASE_URL", "LOG_LEVEL",
		"GEMINI_API_KEY", "QUILL_MODEL", "SLACK_BOT_TOKEN",
		"NOTION_API_KEY", "NOTION_DATABASE_ID", "RECOVERY_TOKEN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected default port 8760, got %d", cfg.Port)
	}
	if cfg.NatsURL != "nats://hermes:4222" {
		t.Errorf("expected default nats url, got %s", cfg.NatsURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("expected default model, got %s", cfg.GeminiModel)
	}
	if cfg.NotionAPIKey != "" {
		t.Errorf("expected empty default notion key, got %s", cfg.NotionAPIKey)
	}
	if cfg.RecoveryToken != "" {
		t.Errorf("expected empty default recovery token, got %s", cfg.RecoveryToken)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QUILL_PORT", "9000")
	t.Setenv("QUILL_MODEL", "gemini-test")
	t.Setenv("NOTION_DATABASE_ID", "db-123")

	cfg := Load()

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-test" {
		t.Errorf("expected model override, got %s", cfg.GeminiModel)
	}
	if cfg.NotionDatabaseID != "db-123" {
		t.Errorf("expected database override, got %s", cfg.NotionDatabaseID)
	}
}

func TestLoad_BadPortFallsBack(t *testing.T) {
	t.Setenv("QUILL_PORT", "not-a-number")

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected fallback port 8760 for invalid value, got %d", cfg.Port)
	}
}
