// Package main implements the Jellycord daemon, which polls Jellyfin playback
// sessions and publishes Discord Rich Presence updates.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rootpkg "tools.zach/dev/jellycord"
	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/logger"
	"tools.zach/dev/jellycord/internal/paths"
	"tools.zach/dev/jellycord/internal/presence"
	"tools.zach/dev/jellycord/internal/reconcile"
	"tools.zach/dev/jellycord/internal/server"
)

// resolveTimeout bounds each Jellyfin round-trip so a hung server cannot
// stall the event loop past the next poll tick.
const resolveTimeout = 10 * time.Second

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at [DataPaths.PID], acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of the daemon to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(paths DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(paths.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(paths DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(paths.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(paths.PID())
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it. If the lock succeeds, any previous instance is dead and
// the stale file is cleaned up.
func checkStalePID(paths DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(paths.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(paths.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(paths.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Session Source
// ///////////////////////////////////////////////

// jellyfinSource wraps the [jellyfin.Client] behind a mutex so the event loop
// can swap in a new client after a config reload changes the server URL or API
// key, while the HTTP server keeps resolving presence through the same
// [presence.Resolver].
type jellyfinSource struct {
	mu     sync.RWMutex
	client *jellyfin.Client
}

func newJellyfinSource(cfg *config.Config) *jellyfinSource {
	return &jellyfinSource{client: jellyfin.NewClient(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey)}
}

// Sessions implements [presence.SessionSource].
func (s *jellyfinSource) Sessions(ctx context.Context) ([]jellyfin.Session, error) {
	s.mu.RLock()
	c := s.client
	s.mu.RUnlock()
	return c.Sessions(ctx)
}

// CurrentUser implements [presence.SessionSource].
func (s *jellyfinSource) CurrentUser(ctx context.Context) (*jellyfin.User, error) {
	s.mu.RLock()
	c := s.client
	s.mu.RUnlock()
	return c.CurrentUser(ctx)
}

// swap replaces the underlying client when the configured server URL or API
// key changed. Returns true if a swap happened.
func (s *jellyfinSource) swap(cfg *config.Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client.BaseURL() == strings.TrimSuffix(cfg.Jellyfin.URL, "/") && s.client.APIKey() == cfg.Jellyfin.APIKey {
		return false
	}
	s.client = jellyfin.NewClient(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey)
	return true
}

// ///////////////////////////////////////////////
// Discord Transport
// ///////////////////////////////////////////////

// discordTransport adapts the daemon's current [discord.Client] to the
// [reconcile.Transport] interface through a double pointer, so a reconnect
// that replaces the client (app_id change) is picked up without rebuilding
// the reconciler.
type discordTransport struct {
	client **discord.Client
}

// SetActivity implements [reconcile.Transport].
func (t *discordTransport) SetActivity(a *discord.Activity) error {
	return (*t.client).SetActivity(a)
}

// ClearActivity implements [reconcile.Transport].
func (t *discordTransport) ClearActivity() error {
	return (*t.client).ClearActivity()
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for Jellycord data,
// typically ~/.jellycord. Falls back to ./.jellycord if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config and logs")
	flag.Parse()

	dataPaths := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dataPaths.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dataPaths); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if _, err := os.Stat(dataPaths.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dataPaths.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	store, err := config.NewStore(dataPaths.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}
	cfg := store.Snapshot()

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.NewLogger(dataPaths.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("jellycord starting", "version", ver, "data_dir", dataPaths.Root, "jellyfin_url", cfg.Jellyfin.URL)

	token := pidToken()
	pidFile, err := writePID(dataPaths, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dataPaths, token, pidFile)

	client := discord.NewClient(cfg.Discord.AppID)
	reconnectInterval := time.Duration(cfg.Behavior.ReconnectIntervalSeconds) * time.Second
	if err := connectWithRetry(client, reconnectInterval); err != nil {
		slog.Error("failed to connect to Discord", "error", err)
		os.Exit(1)
	}
	defer func() { client.Close() }()
	slog.Info("connected to Discord")

	source := newJellyfinSource(cfg)
	resolver := presence.NewResolver(source)
	reconciler := reconcile.New(&discordTransport{client: &client})

	watcher, err := config.NewWatcher(dataPaths.Root)
	if err != nil {
		slog.Error("failed to create config watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	if watcher.Polling() {
		slog.Info("using polling mode for config watching")
	}

	if cfg.Server.Enabled {
		srv := server.New(store, resolver)
		go func() {
			if srvErr := srv.ListenAndServe(cfg.Server.Listen); srvErr != nil {
				slog.Error("http server failed", "error", srvErr)
			}
		}()
		defer func() { _ = srv.Shutdown() }()
		slog.Info("http server listening", "addr", cfg.Server.Listen)
	}

	run(&client, store, watcher, source, resolver, reconciler, reconnectInterval)
	slog.Info("jellycord stopped")
}

// ///////////////////////////////////////////////
// Connect with Retry
// ///////////////////////////////////////////////

// connectWithRetry attempts to connect the [discord.Client] up to 10 times,
// sleeping the given interval between failures. Returns nil on success or an
// error if all attempts are exhausted.
func connectWithRetry(client *discord.Client, interval time.Duration) error {
	const maxAttempts = 10

	for i := range maxAttempts {
		err := client.Connect()
		if err == nil {
			return nil
		}
		slog.Warn("Discord connect attempt failed", "attempt", i+1, "error", err)
		if i < maxAttempts-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("failed to connect after %d attempts", maxAttempts)
}

// ///////////////////////////////////////////////
// Event Loop
// ///////////////////////////////////////////////

// loopState holds mutable state carried across iterations of the main event loop.
type loopState struct {
	// pausedSince is the wall-clock time at which the currently selected
	// session was first observed paused. Zero while playing or idle.
	pausedSince time.Time

	// pauseCleared tracks whether presence has already been dropped for the
	// current pause stretch, so the stale-pause clear only fires once.
	pauseCleared bool

	// appID is the Discord application ID currently in use, tracked so a
	// config reload that changes it can trigger a reconnect.
	appID string
}

// run is the main event loop. It waits on a variable-interval timer, config
// change events from the [config.Watcher], and OS signals. Each tick resolves
// presence from Jellyfin and reconciles the result against Discord; the next
// tick is scheduled from the outcome, so paused sessions are polled on a
// randomized slower cadence than playing ones. The loop runs until an OS
// interrupt/terminate signal is received or a Discord reconnect fails
// permanently.
func run(
	client **discord.Client,
	store *config.Store,
	watcher *config.Watcher,
	source *jellyfinSource,
	resolver *presence.Resolver,
	reconciler *reconcile.Reconciler,
	reconnectInterval time.Duration,
) {
	sigCh := signalChannel()

	ls := loopState{appID: store.Snapshot().Discord.AppID}

	// The first poll is delayed by a small random amount so daemons started
	// in bulk (login scripts, service managers) do not hit the same Jellyfin
	// server in the same instant.
	timer := time.NewTimer(startupJitter())
	defer timer.Stop()

	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			return

		case <-watcher.Events():
			applyConfigChange(client, store, source, reconciler, reconnectInterval, &ls)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(cycle(store.Snapshot(), resolver, reconciler, &ls))

		case <-timer.C:
			if err := handleReconnect(*client, reconciler, reconnectInterval); err != nil {
				return
			}
			timer.Reset(cycle(store.Snapshot(), resolver, reconciler, &ls))
		}
	}
}

// cycle performs one resolve-and-reconcile pass and returns the interval to
// wait before the next one. Resolution errors leave the published presence
// untouched: a transient Jellyfin outage should not flicker the activity.
func cycle(
	cfg *config.Config,
	resolver *presence.Resolver,
	reconciler *reconcile.Reconciler,
	ls *loopState,
) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	payload, err := resolver.Resolve(ctx, cfg)
	cancel()
	if err != nil {
		if errors.Is(err, presence.ErrUnauthorized) {
			slog.Warn("Jellyfin rejected credentials, check api_key", "error", err)
		} else {
			slog.Debug("presence resolution failed", "error", err)
		}
		return nextInterval(cfg, reconciler.Published(), false)
	}

	trackPause(payload, ls)

	if stalePause(cfg, ls) {
		if clearErr := reconciler.Clear(); clearErr != nil {
			slog.Warn("failed to clear stale paused presence", "error", clearErr)
		} else if !ls.pauseCleared {
			slog.Info("cleared presence after prolonged pause",
				"paused_minutes", int(time.Since(ls.pausedSince).Minutes()))
			ls.pauseCleared = true
		}
		return nextInterval(cfg, true, true)
	}

	if applyErr := reconciler.Apply(payload); applyErr != nil {
		slog.Warn("failed to publish presence", "error", applyErr)
	}

	return nextInterval(cfg, payload.Active, payload.Paused)
}

// trackPause updates the pause bookkeeping in [loopState] from the latest
// payload. The pause clock starts on the first paused observation and resets
// whenever playback resumes or stops.
func trackPause(p *presence.Payload, ls *loopState) {
	if p == nil || !p.Active || !p.Paused {
		ls.pausedSince = time.Time{}
		ls.pauseCleared = false
		return
	}
	if ls.pausedSince.IsZero() {
		ls.pausedSince = time.Now()
	}
}

// stalePause reports whether the current pause stretch has exceeded the
// configured pause_clear_minutes threshold. A zero or negative threshold
// disables the check.
func stalePause(cfg *config.Config, ls *loopState) bool {
	if cfg.Behavior.PauseClearMinutes <= 0 || ls.pausedSince.IsZero() {
		return false
	}
	return time.Since(ls.pausedSince) > time.Duration(cfg.Behavior.PauseClearMinutes)*time.Minute
}

// startupJitter returns a random delay in [0, 2s) applied before the first
// poll.
func startupJitter() time.Duration {
	return time.Duration(mathrand.IntN(2000)) * time.Millisecond
}

// nextInterval returns the delay until the next poll. Paused sessions use a
// randomized interval in the configured [min, max] window to avoid thundering
// herds of daemons hitting the same Jellyfin server in lockstep; everything
// else polls at the base interval.
func nextInterval(cfg *config.Config, active, paused bool) time.Duration {
	if active && paused {
		lo := cfg.Behavior.PausePollMinSeconds
		hi := cfg.Behavior.PausePollMaxSeconds
		if hi <= lo {
			return time.Duration(lo) * time.Second
		}
		return time.Duration(lo+mathrand.IntN(hi-lo+1)) * time.Second
	}
	return time.Duration(cfg.Behavior.PollIntervalSeconds) * time.Second
}

// handleReconnect checks whether the [discord.Client] is still connected and,
// if not, attempts to re-establish the connection via [connectWithRetry]. On
// success it resets the reconciler so the next cycle re-publishes presence to
// the fresh connection. Returns an error if reconnection fails permanently.
func handleReconnect(client *discord.Client, reconciler *reconcile.Reconciler, interval time.Duration) error {
	if client.Connected() {
		return nil
	}
	slog.Warn("Discord disconnected, attempting reconnect")
	if err := connectWithRetry(client, interval); err != nil {
		slog.Error("reconnect failed", "error", err)
		return err
	}
	slog.Info("reconnected to Discord")
	reconciler.Reset()
	return nil
}

// ///////////////////////////////////////////////
// Config Reload
// ///////////////////////////////////////////////

// applyConfigChange reloads the config from disk and applies the pieces that
// cannot simply be re-read on the next tick: the Jellyfin client is swapped
// when the server URL or API key changed, and the Discord connection is
// re-established when the application ID changed. A reload that fails
// validation keeps the previous config.
func applyConfigChange(
	client **discord.Client,
	store *config.Store,
	source *jellyfinSource,
	reconciler *reconcile.Reconciler,
	reconnectInterval time.Duration,
	ls *loopState,
) {
	if err := store.Reload(); err != nil {
		slog.Warn("config reload failed, keeping previous config", "error", err)
		return
	}
	cfg := store.Snapshot()
	slog.Info("config reloaded")

	if source.swap(cfg) {
		slog.Info("Jellyfin connection settings changed", "url", cfg.Jellyfin.URL)
	}

	if cfg.Discord.AppID != ls.appID {
		slog.Info("Discord app_id changed, reconnecting",
			"old_app_id", ls.appID, "new_app_id", cfg.Discord.AppID)
		(*client).Close()
		*client = discord.NewClient(cfg.Discord.AppID)
		if err := connectWithRetry(*client, reconnectInterval); err != nil {
			slog.Error("reconnect with new app_id failed", "error", err)
			return
		}
		ls.appID = cfg.Discord.AppID
		reconciler.Reset()
	}
}
