// Package config provides configuration loading and defaults for the Jellycord daemon.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package handles Jellyfin server credentials, Discord presence settings,
// per-media-category display templates, and daemon behavior with sensible defaults.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/jellycord/internal/atomicfile"
	"tools.zach/dev/jellycord/internal/paths"
)

// DefaultDiscordAppID is the official Jellycord Discord application ID.
const DefaultDiscordAppID = "1199810830972170261"

// CurrentVersion is the config schema version written to new files.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Media Categories
// ///////////////////////////////////////////////

// Media categories used to select a template set for a playing item.
const (
	CategoryMovie   = "movie"
	CategoryEpisode = "episode"
	CategoryMusic   = "music"
	CategoryDefault = "default"
)

// CategoryFor maps a Jellyfin item type and media type to a template category.
// Unknown combinations fall through to CategoryDefault.
func CategoryFor(itemType, mediaType string) string {
	switch strings.ToLower(itemType) {
	case "movie":
		return CategoryMovie
	case "episode":
		return CategoryEpisode
	case "audio", "musicvideo":
		return CategoryMusic
	}
	if strings.EqualFold(mediaType, "audio") {
		return CategoryMusic
	}
	return CategoryDefault
}

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Jellyfin holds Jellyfin server connection settings.
	Jellyfin JellyfinConfig `toml:"jellyfin"`
	// Discord holds Discord connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Templates holds per-media-category presence templates.
	Templates TemplatesConfig `toml:"templates"`
	// Display holds presence display settings.
	Display DisplayConfig `toml:"display"`
	// Behavior holds daemon behavior and polling settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Server holds the local HTTP presence endpoint settings.
	Server ServerConfig `toml:"server"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// JellyfinConfig holds Jellyfin server connection settings.
type JellyfinConfig struct {
	// URL is the base URL of the Jellyfin server (e.g. "http://localhost:8096").
	URL string `toml:"url"`
	// APIKey is the Jellyfin API key or user access token.
	APIKey string `toml:"api_key"`
	// UserID pins presence to a specific Jellyfin user. When empty and the
	// token belongs to a user, that user is resolved automatically.
	UserID string `toml:"user_id,omitempty"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the Discord application ID for Rich Presence.
	AppID string `toml:"app_id"`
}

// TemplatesConfig holds presence templates keyed by media category.
type TemplatesConfig struct {
	// Movie is the template set for movies.
	Movie TemplateSet `toml:"movie"`
	// Episode is the template set for TV episodes.
	Episode TemplateSet `toml:"episode"`
	// Music is the template set for audio and music videos.
	Music TemplateSet `toml:"music"`
	// Default is the fallback template set for unrecognized media,
	// and the source for any empty slot in the other sets.
	Default TemplateSet `toml:"default"`
}

// TemplateSet holds the four template slots for one media category.
// Slots left empty inherit from the default category's set.
type TemplateSet struct {
	// Details is the template for the top presence line.
	Details string `toml:"details"`
	// State is the template for the bottom presence line.
	State string `toml:"state"`
	// LargeText is the template for the large image tooltip.
	LargeText string `toml:"large_text,omitempty"`
	// SmallText is the template for the small image tooltip.
	SmallText string `toml:"small_text,omitempty"`
}

// DisplayConfig holds presence display settings.
type DisplayConfig struct {
	// LargeImageKey is the Discord asset key for the large image.
	LargeImageKey string `toml:"large_image_key"`
	// SmallImageKey is the Discord asset key for the small image.
	SmallImageKey string `toml:"small_image_key"`
	// IncludeTimestamps enables start/end timestamps on the presence.
	IncludeTimestamps bool `toml:"include_timestamps"`
	// UseItemCover replaces the large image with the playing item's cover art.
	UseItemCover bool `toml:"use_item_cover"`
	// AssetKeyPrefix is prepended to item IDs when covers are served as
	// uploaded Discord assets rather than URLs.
	AssetKeyPrefix string `toml:"asset_key_prefix"`
	// DefaultImageKey is the fallback asset key when no cover is available.
	DefaultImageKey string `toml:"default_image_key"`
	// PublicImageURL is an externally reachable base URL for cover images.
	// When empty, covers resolve to server-relative paths.
	PublicImageURL string `toml:"public_image_url,omitempty"`
}

// BehaviorConfig holds daemon behavior settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is the Jellyfin session polling interval while playing.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// PausePollMinSeconds is the minimum polling interval while paused.
	PausePollMinSeconds int `toml:"pause_poll_min_seconds"`
	// PausePollMaxSeconds is the maximum polling interval while paused.
	PausePollMaxSeconds int `toml:"pause_poll_max_seconds"`
	// PauseClearMinutes is how long playback may stay paused before the
	// presence is cleared entirely.
	PauseClearMinutes int `toml:"pause_clear_minutes"`
	// ReconnectIntervalSeconds is the Discord reconnect interval.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// Ignore is a list of "Device/Client" glob patterns for sessions that
	// never produce presence.
	Ignore []string `toml:"ignore"`
}

// ServerConfig holds the local HTTP presence endpoint settings.
type ServerConfig struct {
	// Enabled starts the HTTP server when true.
	Enabled bool `toml:"enabled"`
	// Listen is the address the HTTP server binds to.
	Listen string `toml:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Discord: DiscordConfig{
			AppID: DefaultDiscordAppID,
		},
		Templates: TemplatesConfig{
			Movie: TemplateSet{
				Details: "{title}",
				State:   "{genres} • {time_left}",
			},
			Episode: TemplateSet{
				Details: "{series_name} {season_episode}",
				State:   `"{title}" • {genres} • {time_left}`,
			},
			Music: TemplateSet{
				Details: "{title}",
				State:   "{series_name} • {genres}",
			},
			Default: TemplateSet{
				Details:   "{series_or_title}",
				State:     "{genres} • {time_left}",
				LargeText: "Jellyfin",
				SmallText: "{play_state}",
			},
		},
		Display: DisplayConfig{
			LargeImageKey:     "jellyfin",
			SmallImageKey:     "play",
			IncludeTimestamps: true,
			UseItemCover:      false,
			AssetKeyPrefix:    "cover_",
			DefaultImageKey:   "jellyfin",
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:      5,
			PausePollMinSeconds:      30,
			PausePollMaxSeconds:      45,
			PauseClearMinutes:        3,
			ReconnectIntervalSeconds: 15,
			Ignore:                   []string{},
		},
		Server: ServerConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8854",
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Jellyfin.URL != "" {
		u, err := url.Parse(c.Jellyfin.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid jellyfin.url %q: must be an absolute http(s) URL", c.Jellyfin.URL)
		}
	}

	if c.Discord.AppID == "" {
		return fmt.Errorf("discord.app_id must not be empty")
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Behavior.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.Behavior.PollIntervalSeconds)
	}

	if c.Behavior.PausePollMinSeconds <= 0 {
		return fmt.Errorf("pause_poll_min_seconds must be > 0, got %d", c.Behavior.PausePollMinSeconds)
	}

	if c.Behavior.PausePollMaxSeconds < c.Behavior.PausePollMinSeconds {
		return fmt.Errorf("pause_poll_max_seconds must be >= pause_poll_min_seconds, got %d < %d",
			c.Behavior.PausePollMaxSeconds, c.Behavior.PausePollMinSeconds)
	}

	if c.Behavior.PauseClearMinutes < 0 {
		return fmt.Errorf("pause_clear_minutes must be >= 0, got %d", c.Behavior.PauseClearMinutes)
	}

	if c.Behavior.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be > 0, got %d", c.Behavior.ReconnectIntervalSeconds)
	}

	for _, pattern := range c.Behavior.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty when server.enabled is true")
	}

	if c.Templates.Default.Details == "" && c.Templates.Default.State == "" {
		return fmt.Errorf("templates.default must define at least one of details or state")
	}

	return nil
}

// ///////////////////////////////////////////////
// Template Resolution
// ///////////////////////////////////////////////

// TemplatesFor returns the fully resolved template set for a media category.
// Empty slots in the category's set inherit from the default set.
func (c *Config) TemplatesFor(category string) TemplateSet {
	var set TemplateSet
	switch category {
	case CategoryMovie:
		set = c.Templates.Movie
	case CategoryEpisode:
		set = c.Templates.Episode
	case CategoryMusic:
		set = c.Templates.Music
	default:
		set = c.Templates.Default
	}
	def := c.Templates.Default
	if set.Details == "" {
		set.Details = def.Details
	}
	if set.State == "" {
		set.State = def.State
	}
	if set.LargeText == "" {
		set.LargeText = def.LargeText
	}
	if set.SmallText == "" {
		set.SmallText = def.SmallText
	}
	return set
}

// ///////////////////////////////////////////////
// Session Filtering
// ///////////////////////////////////////////////

// IsIgnoredSession reports whether a session's "Device/Client" pair matches
// any of the configured ignore patterns. Patterns without a slash match the
// device name alone.
func (c *Config) IsIgnoredSession(deviceName, clientName string) bool {
	pair := deviceName + "/" + clientName
	for _, pattern := range c.Behavior.Ignore {
		target := pair
		if !strings.Contains(pattern, "/") {
			target = deviceName
		}
		matched, err := doublestar.Match(pattern, target)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
