// Tests for the config watcher: construction, event delivery, close
// semantics, and polling fallback. Exercises [NewWatcher],
// [Watcher.Events], [Watcher.Close], and [Watcher.Polling].
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tools.zach/dev/jellycord/internal/paths"
)

// ///////////////////////////////////////////////
// Constructor Tests
// ///////////////////////////////////////////////

func TestNewWatcher(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte("version = 1\n"), 0o644)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if w.Events() == nil {
		t.Fatal("Events() returned nil channel")
	}

	// We don't assert Polling() == false because CI environments may lack
	// inotify support; just verify the method is callable.
	_ = w.Polling()
}

// ///////////////////////////////////////////////
// File Change Event Tests
// ///////////////////////////////////////////////

func TestConfigChangeTriggersEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow watcher test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)
	os.WriteFile(path, []byte("version = 1\n"), 0o644)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Give the watcher a moment to initialise.
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(path, []byte("version = 1\n\n[log]\nlevel = \"debug\"\n"), 0o644)

	// Generous timeout because polling mode has a 2s interval.
	select {
	case <-w.Events():
		// success
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config change event")
	}
}

func TestUnrelatedFileDoesNotTrigger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow watcher test in short mode")
	}

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte("version = 1\n"), 0o644)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(dir, "jellycord.log"), []byte("line\n"), 0o644)

	select {
	case <-w.Events():
		t.Error("received event for unrelated file")
	case <-time.After(500 * time.Millisecond):
		// good: only the config file is watched
	}
}

func TestAtomicReplaceTriggersEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow watcher test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)
	os.WriteFile(path, []byte("version = 1\n"), 0o644)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	time.Sleep(100 * time.Millisecond)

	// Replace-by-rename, the way [Config.Save] writes.
	tmp := filepath.Join(dir, ".config.toml.tmp")
	os.WriteFile(tmp, []byte("version = 1\n\n[log]\nlevel = \"trace\"\n"), 0o644)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	select {
	case <-w.Events():
		// success
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rename event")
	}
}

// ///////////////////////////////////////////////
// Close Tests
// ///////////////////////////////////////////////

func TestWatcherCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte("version = 1\n"), 0o644)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// ///////////////////////////////////////////////
// Poll Tests
// ///////////////////////////////////////////////

func TestPollDetectsModification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow polling test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, paths.ConfigFile)
	os.WriteFile(path, []byte("version = 1\n"), 0o644)

	// Build a watcher manually in polling mode to test poll() directly.
	w := &Watcher{
		dir:          dir,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 100 * time.Millisecond, // fast polling for test
	}
	w.polling.Store(true)
	go w.poll()
	defer w.Close()

	// Let the initial stat settle.
	time.Sleep(150 * time.Millisecond)

	// Touch the file with a future mod time to ensure the poller sees a change.
	now := time.Now().Add(time.Second)
	os.Chtimes(path, now, now)

	select {
	case <-w.Events():
		// success: poller detected the modification
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for poll event")
	}
}

func TestPollMissingFileNoEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow polling test in short mode")
	}

	w := &Watcher{
		dir:          t.TempDir(),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 100 * time.Millisecond,
	}
	w.polling.Store(true)
	go w.poll()
	defer w.Close()

	select {
	case <-w.Events():
		t.Error("received event for non-existent config file")
	case <-time.After(350 * time.Millisecond):
		// good: no spurious events
	}
}
