package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	NatsURL          string
	NatsToken        string
	DatabaseURL      string
	LogLevel         string
	GeminiAPIKey     string
	GeminiModel      string
	SlackBotToken    string
	NotionAPIKey     string
	NotionDatabaseID string
	RecoveryToken    string
}

func Load() Config {
	// Best-effort; a missing .env file is the normal production case.
	_ = godotenv.Load()

	return Config{
		Port:             envInt("QUILL_PORT", 8760),
		NatsURL:          envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:        envStr("NATS_TOKEN", ""),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		GeminiAPIKey:     envStr("GEMINI_API_KEY", ""),
		GeminiModel:      envStr("QUILL_MODEL", "gemini-2.0-flash"),
		SlackBotToken:    envStr("SLACK_BOT_TOKEN", ""),
		NotionAPIKey:     envStr("NOTION_API_KEY", ""),
		NotionDatabaseID: envStr("NOTION_DATABASE_ID", ""),
		RecoveryToken:    envStr("RECOVERY_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
