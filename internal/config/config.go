// Package config defines the top-level configuration for the arbdash client
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBDASH_* environment
// variables.
type Config struct {
	Backend  BackendConfig `toml:"backend"`
	Session  SessionConfig `toml:"session"`
	Stream   StreamConfig  `toml:"stream"`
	Filters  FiltersConfig `toml:"filters"`
	Trade    TradeConfig   `toml:"trade"`
	Notify   NotifyConfig  `toml:"notify"`
	Mode     string        `toml:"mode"`
	LogLevel string        `toml:"log_level"`
}

// BackendConfig holds the REST and push channel endpoints.
type BackendConfig struct {
	ApiURL string `toml:"api_url"`
	WsURL  string `toml:"ws_url"`
}

// SessionConfig holds credential persistence parameters.
type SessionConfig struct {
	// CredentialPath is where the token pair is persisted. Empty means
	// <user config dir>/arbdash/credentials.json.
	CredentialPath string `toml:"credential_path"`
	Email          string `toml:"email"`
	Password       string `toml:"password"`
}

// StreamConfig holds push channel and reconciliation parameters.
type StreamConfig struct {
	// EmphasisWindow is how long a spread-change flash stays visible.
	EmphasisWindow duration `toml:"emphasis_window"`
}

// FiltersConfig seeds the initial opportunity query on startup.
type FiltersConfig struct {
	Symbol     string  `toml:"symbol"`
	MinSpread  float64 `toml:"min_spread"`
	Limit      int     `toml:"limit"`
	MarketType string  `toml:"market_type"`
}

// TradeConfig holds execution limits.
type TradeConfig struct {
	DefaultAmount float64 `toml:"default_amount"`
	MaxAmount     float64 `toml:"max_amount"`
}

// NotifyConfig configures optional outbound forwarding of alerts and settled
// trades. Channels with empty credentials are disabled.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	TelegramBotToken  string `toml:"telegram_bot_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	// Events limits forwarding to these alert types. Empty forwards all.
	Events []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "500ms", "2s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "500ms".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			ApiURL: "http://localhost:5000",
			WsURL:  "ws://localhost:5000/ws",
		},
		Stream: StreamConfig{
			EmphasisWindow: duration{500 * time.Millisecond},
		},
		Filters: FiltersConfig{
			Limit: 50,
		},
		Trade: TradeConfig{
			DefaultAmount: 100.0,
			MaxAmount:     10_000.0,
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"login": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validMarketTypes enumerates the accepted values for Filters.MarketType.
var validMarketTypes = map[string]bool{
	"":        true,
	"SPOT":    true,
	"FUTURES": true,
	"DEX":     true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, login)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Backend.ApiURL == "" {
		errs = append(errs, "backend: api_url must not be empty")
	}
	if c.Backend.WsURL == "" {
		errs = append(errs, "backend: ws_url must not be empty")
	} else if !strings.HasPrefix(c.Backend.WsURL, "ws://") && !strings.HasPrefix(c.Backend.WsURL, "wss://") {
		errs = append(errs, fmt.Sprintf("backend: ws_url must use ws:// or wss://, got %q", c.Backend.WsURL))
	}

	if strings.ToLower(c.Mode) == "login" {
		if c.Session.Email == "" {
			errs = append(errs, "session: email is required for mode login")
		}
		if c.Session.Password == "" {
			errs = append(errs, "session: password is required for mode login")
		}
	}

	if c.Stream.EmphasisWindow.Duration <= 0 {
		errs = append(errs, "stream: emphasis_window must be positive")
	}

	if c.Filters.MinSpread < 0 {
		errs = append(errs, "filters: min_spread must be >= 0")
	}
	if c.Filters.Limit < 0 {
		errs = append(errs, "filters: limit must be >= 0")
	}
	if !validMarketTypes[strings.ToUpper(c.Filters.MarketType)] {
		errs = append(errs, fmt.Sprintf("filters: unknown market_type %q (valid: SPOT, FUTURES, DEX)", c.Filters.MarketType))
	}

	if c.Trade.DefaultAmount <= 0 {
		errs = append(errs, "trade: default_amount must be > 0")
	}
	if c.Trade.MaxAmount > 0 && c.Trade.DefaultAmount > c.Trade.MaxAmount {
		errs = append(errs, "trade: default_amount must not exceed max_amount")
	}

	if (c.Notify.TelegramBotToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_bot_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
