package config

import (
	"slices"
	"time"
)

// Theme is the control panel colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeAuto
}

// ModuleSettings is shared by every feature module.
// ChannelID is the legacy single-channel post target; Channels restricts the
// channels a module listens to (and, for the notifier, posts to).
type ModuleSettings struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	ChannelID string   `json:"channelId,omitempty" yaml:"channelId,omitempty"`
	Channels  []string `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// Listens reports whether a message from channelID should be handled.
// An empty Channels list means every channel.
func (m ModuleSettings) Listens(channelID string) bool {
	if len(m.Channels) == 0 {
		return true
	}
	return slices.Contains(m.Channels, channelID)
}

// OverrideTarget returns the channel replies should be posted to instead of
// answering inline, or "" when replies stay inline.
func (m ModuleSettings) OverrideTarget() string {
	if m.ChannelID != "" {
		return m.ChannelID
	}
	if len(m.Channels) > 0 {
		return m.Channels[0]
	}
	return ""
}

// Destinations returns the explicit channel list when non-empty, else the legacy
// single channel, else nil.
func (m ModuleSettings) Destinations() []string {
	if len(m.Channels) > 0 {
		return slices.Clone(m.Channels)
	}
	if m.ChannelID != "" {
		return []string{m.ChannelID}
	}
	return nil
}

type TwitchSettings struct {
	ModuleSettings `yaml:",inline"`
	Login          string `json:"login" yaml:"login"`
	PollMs         int    `json:"pollMs" yaml:"pollMs"`
}

// PollInterval converts PollMs to a duration, falling back to one minute.
func (t TwitchSettings) PollInterval() time.Duration {
	if t.PollMs <= 0 {
		return time.Minute
	}
	return time.Duration(t.PollMs) * time.Millisecond
}

type StockSettings struct {
	ModuleSettings `yaml:",inline"`
	Timeframes     []string `json:"timeframes" yaml:"timeframes"`
}

// Settings is the runtime configuration edited through the control API and persisted by a Store.
type Settings struct {
	Cards       ModuleSettings `json:"cards" yaml:"cards"`
	Twitch      TwitchSettings `json:"twitch" yaml:"twitch"`
	Stock       StockSettings  `json:"stock" yaml:"stock"`
	Theme       Theme          `json:"theme" yaml:"theme"`
	LastUpdated time.Time      `json:"lastUpdated" yaml:"lastUpdated"`
}

// DefaultSettings builds the startup settings from the environment config.
func DefaultSettings(cfg *Config) Settings {
	s := Settings{
		Cards: ModuleSettings{Enabled: true},
		Twitch: TwitchSettings{
			ModuleSettings: ModuleSettings{Enabled: true, ChannelID: cfg.TwitchAnnounceChanID},
			Login:          cfg.TwitchChannelLogin,
			PollMs:         cfg.TwitchPollMs,
		},
		Stock: StockSettings{
			ModuleSettings: ModuleSettings{Enabled: true},
			Timeframes:     []string{"5m", "30m", "1h"},
		},
		Theme:       ThemeAuto,
		LastUpdated: time.Now().UTC(),
	}
	return s
}

// Clone returns a deep copy so callers can read a snapshot without holding locks.
func (s Settings) Clone() Settings {
	out := s
	out.Cards.Channels = slices.Clone(s.Cards.Channels)
	out.Twitch.Channels = slices.Clone(s.Twitch.Channels)
	out.Stock.Channels = slices.Clone(s.Stock.Channels)
	out.Stock.Timeframes = slices.Clone(s.Stock.Timeframes)
	return out
}
