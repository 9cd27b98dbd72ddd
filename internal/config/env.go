package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that carry channel secrets.
const (
	EnvTelegramToken      = "TELEGRAM_TOKEN"
	EnvChatID             = "CHAT_ID"
	EnvSheetWebhookURL    = "SHEET_WEBHOOK_URL"
	EnvXAPIKey            = "X_API_KEY"
	EnvXAPISecret         = "X_API_SECRET"
	EnvXAccessToken       = "X_ACCESS_TOKEN"
	EnvXAccessTokenSecret = "X_ACCESS_TOKEN_SECRET"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays channel secrets from lookup (os.LookupEnv in
// production). A non-empty variable replaces the file value.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Telegram.ChatID, EnvChatID)
	set(&cfg.Sheet.WebhookURL, EnvSheetWebhookURL)
	set(&cfg.X.APIKey, EnvXAPIKey)
	set(&cfg.X.APISecret, EnvXAPISecret)
	set(&cfg.X.AccessToken, EnvXAccessToken)
	set(&cfg.X.AccessTokenSecret, EnvXAccessTokenSecret)
}
