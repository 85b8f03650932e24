package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"tools.zach/dev/jellycord/internal/paths"
)

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store holds the live configuration and hands out immutable snapshots.
// Each resolution cycle reads one snapshot, so a reload mid-cycle never
// mixes old and new values.
type Store struct {
	// dataDir is the directory containing the config file.
	dataDir string
	// mu guards cfg.
	mu sync.RWMutex
	// cfg is the current configuration.
	cfg *Config
}

// NewStore loads the configuration from dataDir and returns a Store around it.
func NewStore(dataDir string) (*Store, error) {
	cfg, err := Load(dataDir)
	if err != nil {
		return nil, err
	}
	return &Store{dataDir: dataDir, cfg: cfg}, nil
}

// Snapshot returns the current configuration. The returned value must be
// treated as read-only.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload re-reads the configuration from disk. On parse or validation
// failure the previous configuration is kept and the error returned.
func (s *Store) Reload() error {
	cfg, err := Load(s.dataDir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Path returns the absolute path of the config file backing the store.
func (s *Store) Path() string {
	return filepath.Join(s.dataDir, paths.ConfigFile)
}

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors the config file for changes using fsnotify with a
// polling fallback. It watches the containing directory rather than the
// file so atomic replace-by-rename is still observed.
type Watcher struct {
	// dir is the directory containing the config file.
	dir string
	// events delivers a signal each time the config file changes.
	// The channel is buffered to 1 so back-to-back writes coalesce.
	events chan struct{}
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	// fsw is the underlying fsnotify watcher; nil when polling.
	fsw *fsnotify.Watcher
	// once ensures [Watcher.Close] is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat-based polling.
	polling atomic.Bool
	// pollInterval is the duration between stat calls in polling mode.
	pollInterval time.Duration
}

// NewWatcher creates a Watcher for the config file in dataDir.
// It uses fsnotify as the primary change detection mechanism and falls
// back to polling if fsnotify is unavailable.
func NewWatcher(dataDir string) (*Watcher, error) {
	w := &Watcher{
		dir:          dataDir,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 2 * time.Second,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	w.fsw = fsw
	if err := fsw.Add(dataDir); err != nil {
		slog.Info("cannot watch directory, falling back to polling", "path", dataDir, "error", err)
		fsw.Close()
		w.fsw = nil
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	go w.watch()
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when the config file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// watch loops over fsnotify events on the data directory, forwarding
// write/create/rename notifications for the config file to the events
// channel. If fsnotify errors, watch falls back to [Watcher.poll].
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isConfigFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.fsw.Close()
			w.fsw = nil
			w.polling.Store(true)
			go w.poll()
			return
		}
	}
}

// isConfigFile reports whether name is the watched config file.
func isConfigFile(name string) bool {
	return filepath.Base(name) == paths.ConfigFile
}

// poll periodically stats the config file and sends a notification when
// the modification time advances.
func (w *Watcher) poll() {
	path := filepath.Join(w.dir, paths.ConfigFile)

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.notify()
			}
		}
	}
}

// notify sends a single signal to the events channel. If a signal is
// already pending the call is a no-op, coalescing rapid successive changes.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
		// Channel already has a pending event, skip
	}
}
