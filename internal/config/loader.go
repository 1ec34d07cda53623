package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBDASH_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the defaults
// plus environment are enough to run against a local backend. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBDASH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets credentials be injected at run time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Backend.ApiURL, "ARBDASH_BACKEND_API_URL")
	setStr(&cfg.Backend.WsURL, "ARBDASH_BACKEND_WS_URL")

	setStr(&cfg.Session.CredentialPath, "ARBDASH_SESSION_CREDENTIAL_PATH")
	setStr(&cfg.Session.Email, "ARBDASH_SESSION_EMAIL")
	setStr(&cfg.Session.Password, "ARBDASH_SESSION_PASSWORD")

	setDuration(&cfg.Stream.EmphasisWindow, "ARBDASH_STREAM_EMPHASIS_WINDOW")

	setStr(&cfg.Filters.Symbol, "ARBDASH_FILTERS_SYMBOL")
	setFloat64(&cfg.Filters.MinSpread, "ARBDASH_FILTERS_MIN_SPREAD")
	setInt(&cfg.Filters.Limit, "ARBDASH_FILTERS_LIMIT")
	setStr(&cfg.Filters.MarketType, "ARBDASH_FILTERS_MARKET_TYPE")

	setFloat64(&cfg.Trade.DefaultAmount, "ARBDASH_TRADE_DEFAULT_AMOUNT")
	setFloat64(&cfg.Trade.MaxAmount, "ARBDASH_TRADE_MAX_AMOUNT")

	setStr(&cfg.Notify.DiscordWebhookURL, "ARBDASH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramBotToken, "ARBDASH_NOTIFY_TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBDASH_NOTIFY_TELEGRAM_CHAT_ID")

	setStr(&cfg.Mode, "ARBDASH_MODE")
	setStr(&cfg.LogLevel, "ARBDASH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
