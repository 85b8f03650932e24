// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input), validation ([Config.Validate]), template
// resolution ([Config.TemplatesFor]), session filtering
// ([Config.IsIgnoredSession]), serialization round-trips ([Config.Save]),
// and [Store] snapshot/reload semantics.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"tools.zach/dev/jellycord/internal/paths"
)

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string // config file content; empty means no file written
		noFile  bool   // if true, skip writing a config file
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "defaults from minimal config",
			config: "version = 1\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				def := DefaultConfig()
				if cfg.Discord.AppID != def.Discord.AppID {
					t.Errorf("AppID = %q, want %q", cfg.Discord.AppID, def.Discord.AppID)
				}
				if cfg.Behavior.PollIntervalSeconds != def.Behavior.PollIntervalSeconds {
					t.Errorf("PollIntervalSeconds = %d, want %d",
						cfg.Behavior.PollIntervalSeconds, def.Behavior.PollIntervalSeconds)
				}
				if cfg.Templates.Episode.Details != def.Templates.Episode.Details {
					t.Errorf("Episode.Details = %q, want %q",
						cfg.Templates.Episode.Details, def.Templates.Episode.Details)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 1

[jellyfin]
url = "http://media.local:8096"
api_key = "abc123"
user_id = "u1"

[behavior]
poll_interval_seconds = 10
pause_clear_minutes = 5
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Jellyfin.URL != "http://media.local:8096" {
					t.Errorf("URL = %q", cfg.Jellyfin.URL)
				}
				if cfg.Jellyfin.UserID != "u1" {
					t.Errorf("UserID = %q, want u1", cfg.Jellyfin.UserID)
				}
				if cfg.Behavior.PollIntervalSeconds != 10 {
					t.Errorf("PollIntervalSeconds = %d, want 10", cfg.Behavior.PollIntervalSeconds)
				}
				if cfg.Behavior.PauseClearMinutes != 5 {
					t.Errorf("PauseClearMinutes = %d, want 5", cfg.Behavior.PauseClearMinutes)
				}
			},
		},
		{
			name: "partial template override preserves other defaults",
			config: `
version = 1

[templates.movie]
details = "Now watching {title}"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Templates.Movie.Details != "Now watching {title}" {
					t.Errorf("Movie.Details = %q", cfg.Templates.Movie.Details)
				}
				def := DefaultConfig()
				if cfg.Templates.Episode.State != def.Templates.Episode.State {
					t.Errorf("Episode.State = %q, want default", cfg.Templates.Episode.State)
				}
			},
		},
		{
			name:   "missing file returns defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Discord.AppID != DefaultDiscordAppID {
					t.Errorf("AppID = %q, want default", cfg.Discord.AppID)
				}
			},
		},
		{
			name:    "malformed TOML",
			config:  "version = [broken\n",
			wantErr: true,
		},
		{
			name: "invalid jellyfin url",
			config: `
version = 1

[jellyfin]
url = "not a url"
`,
			wantErr: true,
		},
		{
			name: "invalid poll interval",
			config: `
version = 1

[behavior]
poll_interval_seconds = 0
`,
			wantErr: true,
		},
		{
			name: "pause window inverted",
			config: `
version = 1

[behavior]
pause_poll_min_seconds = 45
pause_poll_max_seconds = 30
`,
			wantErr: true,
		},
		{
			name: "invalid log level",
			config: `
version = 1

[log]
level = "verbose"
`,
			wantErr: true,
		},
		{
			name: "invalid ignore pattern",
			config: `
version = 1

[behavior]
ignore = ["[unclosed"]
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				path := filepath.Join(dir, paths.ConfigFile)
				if err := os.WriteFile(path, []byte(tt.config), 0o644); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}

			cfg, err := Load(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)

	cfg := DefaultConfig()
	cfg.Jellyfin.URL = "http://localhost:8096"
	cfg.Jellyfin.APIKey = "secret"
	cfg.Behavior.Ignore = []string{"Bedroom*/**"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Jellyfin.URL != cfg.Jellyfin.URL {
		t.Errorf("URL = %q, want %q", loaded.Jellyfin.URL, cfg.Jellyfin.URL)
	}
	if loaded.Jellyfin.APIKey != cfg.Jellyfin.APIKey {
		t.Errorf("APIKey = %q, want %q", loaded.Jellyfin.APIKey, cfg.Jellyfin.APIKey)
	}
	if len(loaded.Behavior.Ignore) != 1 || loaded.Behavior.Ignore[0] != "Bedroom*/**" {
		t.Errorf("Ignore = %v", loaded.Behavior.Ignore)
	}
	if loaded.Templates.Episode.Details != cfg.Templates.Episode.Details {
		t.Errorf("Episode.Details = %q", loaded.Templates.Episode.Details)
	}
}

// ///////////////////////////////////////////////
// Template Resolution
// ///////////////////////////////////////////////

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		itemType  string
		mediaType string
		want      string
	}{
		{"Movie", "Video", CategoryMovie},
		{"Episode", "Video", CategoryEpisode},
		{"Audio", "Audio", CategoryMusic},
		{"MusicVideo", "Video", CategoryMusic},
		{"movie", "", CategoryMovie},
		{"Recording", "Audio", CategoryMusic},
		{"Recording", "Video", CategoryDefault},
		{"", "", CategoryDefault},
	}

	for _, tt := range tests {
		if got := CategoryFor(tt.itemType, tt.mediaType); got != tt.want {
			t.Errorf("CategoryFor(%q, %q) = %q, want %q", tt.itemType, tt.mediaType, got, tt.want)
		}
	}
}

func TestTemplatesFor(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("episode set resolved", func(t *testing.T) {
		set := cfg.TemplatesFor(CategoryEpisode)
		if set.Details != "{series_name} {season_episode}" {
			t.Errorf("Details = %q", set.Details)
		}
		// large_text is only set on the default category, so it inherits.
		if set.LargeText != "Jellyfin" {
			t.Errorf("LargeText = %q, want inherited default", set.LargeText)
		}
		if set.SmallText != "{play_state}" {
			t.Errorf("SmallText = %q, want inherited default", set.SmallText)
		}
	})

	t.Run("unknown category falls back to default", func(t *testing.T) {
		set := cfg.TemplatesFor("podcast")
		if set.Details != cfg.Templates.Default.Details {
			t.Errorf("Details = %q, want default", set.Details)
		}
	})

	t.Run("empty slot inherits from default", func(t *testing.T) {
		c := DefaultConfig()
		c.Templates.Music.State = ""
		set := c.TemplatesFor(CategoryMusic)
		if set.State != c.Templates.Default.State {
			t.Errorf("State = %q, want %q", set.State, c.Templates.Default.State)
		}
		if set.Details != "{title}" {
			t.Errorf("Details = %q, want category's own", set.Details)
		}
	})
}

// ///////////////////////////////////////////////
// Session Filtering
// ///////////////////////////////////////////////

func TestIsIgnoredSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Behavior.Ignore = []string{
		"Bedroom TV",
		"*/Jellyfin Web",
		"Kids-*/**",
	}

	tests := []struct {
		name   string
		device string
		client string
		want   bool
	}{
		{"device-only pattern matches device", "Bedroom TV", "Jellyfin Android TV", true},
		{"device-only pattern ignores client", "Living Room TV", "Bedroom TV", false},
		{"pair pattern matches client", "Desktop", "Jellyfin Web", true},
		{"pair pattern wrong client", "Desktop", "Jellyfin Media Player", false},
		{"glob device prefix", "Kids-Tablet", "Jellyfin Mobile", true},
		{"no patterns match", "Office", "Finamp", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.IsIgnoredSession(tt.device, tt.client); got != tt.want {
				t.Errorf("IsIgnoredSession(%q, %q) = %v, want %v", tt.device, tt.client, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

func TestStoreSnapshotAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}

	write("version = 1\n\n[behavior]\npoll_interval_seconds = 7\n")

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	snap := store.Snapshot()
	if snap.Behavior.PollIntervalSeconds != 7 {
		t.Fatalf("PollIntervalSeconds = %d, want 7", snap.Behavior.PollIntervalSeconds)
	}

	write("version = 1\n\n[behavior]\npoll_interval_seconds = 12\n")
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	// The earlier snapshot is unchanged; a new snapshot sees the new value.
	if snap.Behavior.PollIntervalSeconds != 7 {
		t.Errorf("old snapshot mutated: %d", snap.Behavior.PollIntervalSeconds)
	}
	if got := store.Snapshot().Behavior.PollIntervalSeconds; got != 12 {
		t.Errorf("PollIntervalSeconds = %d, want 12", got)
	}
}

func TestStoreReloadKeepsOldOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)

	if err := os.WriteFile(path, []byte("version = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	if err := os.WriteFile(path, []byte("version = [broken\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := store.Reload(); err == nil {
		t.Fatal("Reload() succeeded on malformed config, want error")
	}
	if store.Snapshot().Discord.AppID != DefaultDiscordAppID {
		t.Error("previous config lost after failed reload")
	}
}
