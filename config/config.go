// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Runtime-mutable module settings (the ones the control panel edits) live in Settings
// and are owned by a Manager.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Chat platforms understood by ValidateChatReady and main.
const (
	PlatformTelegram = "telegram"
	PlatformTwitch   = "twitch"
)

type Config struct {
	// Chat
	ChatPlatform        string
	TelegramToken       string
	TelegramPollTimeout time.Duration
	TwitchBotUsername   string
	TwitchOAuthToken    string
	TwitchChatChannels  []string

	// Twitch Helix (live notifier)
	TwitchClientID       string
	TwitchClientSecret   string
	TwitchChannelLogin   string
	TwitchPollMs         int
	TwitchAnnounceChanID string

	// Stock
	AlphaVantageKey   string
	StockRequestsPerM int

	// HTTP control API
	HTTPAddr       string
	AllowedOrigins []string
	RestartDelay   time.Duration

	// Settings persistence
	SettingsPath string
	DBDsn        string

	// Logging
	LogBufferSize int
}

// Load reads environment variables and applies defaults. It doesn't fail if chat creds are missing;
// use ValidateChatReady() before connecting.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ChatPlatform = strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_PLATFORM")))
	if cfg.ChatPlatform == "" {
		cfg.ChatPlatform = PlatformTelegram
	}
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramPollTimeout = 10 * time.Second
	if v := os.Getenv("TELEGRAM_POLL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_POLL_TIMEOUT: %w", err)
		}
		cfg.TelegramPollTimeout = d
	}
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchChatChannels = splitList(os.Getenv("TWITCH_CHAT_CHANNELS"))

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchChannelLogin = os.Getenv("TWITCH_CHANNEL_LOGIN")
	if cfg.TwitchChannelLogin == "" {
		cfg.TwitchChannelLogin = "liama6"
	}
	cfg.TwitchPollMs = 60_000
	if v := os.Getenv("TWITCH_POLL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid TWITCH_POLL_MS %q: must be a positive integer", v)
		}
		cfg.TwitchPollMs = n
	}
	cfg.TwitchAnnounceChanID = os.Getenv("TWITCH_ANNOUNCE_CHANNEL_ID")

	cfg.AlphaVantageKey = os.Getenv("ALPHA_VANTAGE_API_KEY")
	if cfg.AlphaVantageKey == "" {
		cfg.AlphaVantageKey = "demo"
	}
	cfg.StockRequestsPerM = getEnvInt("STOCK_REQUESTS_PER_MINUTE", 5)

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		port := os.Getenv("API_PORT")
		if port == "" {
			port = "3000"
		}
		cfg.HTTPAddr = ":" + port
	}
	cfg.AllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.RestartDelay = 200 * time.Millisecond
	if v := os.Getenv("RESTART_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.RestartDelay = d
		}
	}

	cfg.SettingsPath = os.Getenv("SETTINGS_PATH")
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "data/config.yaml"
	}
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.LogBufferSize = getEnvInt("LOG_BUFFER_SIZE", 500)

	return cfg, nil
}

// ValidateChatReady checks the credentials required by the selected chat platform.
func (c *Config) ValidateChatReady() error {
	switch c.ChatPlatform {
	case PlatformTelegram:
		if c.TelegramToken == "" {
			return fmt.Errorf("missing telegram env: require TELEGRAM_BOT_TOKEN")
		}
	case PlatformTwitch:
		if c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
			return fmt.Errorf("missing twitch env: require TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
		}
	default:
		return fmt.Errorf("unknown CHAT_PLATFORM %q (want %s or %s)", c.ChatPlatform, PlatformTelegram, PlatformTwitch)
	}
	return nil
}

// HasTwitchCredentials reports whether a client-credentials grant can be attempted.
func (c *Config) HasTwitchCredentials() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvInt returns an integer environment variable value or default if not set or invalid.
func getEnvInt(key string, defaultVal int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}
