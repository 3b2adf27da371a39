package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sennet.yml")
	writeConfig(t, path, "lang:\n  default: fr\n")

	w, err := NewWatcher(path, nil, WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Lang.Default; got != "fr" {
		t.Errorf("Current().Lang.Default = %q, want fr", got)
	}
}

func TestWatcherInitialLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sennet.yml")
	writeConfig(t, path, "server:\n  log_level: loud\n")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sennet.yml")
	writeConfig(t, path, "lang:\n  default: en\n")

	var (
		mu      sync.Mutex
		changes int
		lastNew *Config
	)
	w, err := NewWatcher(path, func(old, next *Config) {
		mu.Lock()
		changes++
		lastNew = next
		mu.Unlock()
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Force a different mtime on filesystems with coarse timestamps.
	writeConfig(t, path, "lang:\n  default: fr\n  supported: [en, fr]\n")
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := changes
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for change callback")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if lastNew.Lang.Default != "fr" {
		t.Errorf("reloaded lang.default = %q, want fr", lastNew.Lang.Default)
	}
	if w.Current().Lang.Default != "fr" {
		t.Errorf("Current() not updated after reload")
	}
}

func TestWatcherKeepsLastGoodConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sennet.yml")
	writeConfig(t, path, "lang:\n  default: en\n")

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(old, next *Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "server:\n  log_level: loud\n")
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
		t.Fatal("onChange fired for an invalid config")
	case <-time.After(200 * time.Millisecond):
	}
	if got := w.Current().Lang.Default; got != "en" {
		t.Errorf("Current().Lang.Default = %q, want en (last good)", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sennet.yml")
	writeConfig(t, path, "")

	w, err := NewWatcher(path, nil, WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
