package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event{}, r.events...)
}

func startWatcher(t *testing.T, path string, debounce time.Duration) (*Watcher, *recorder) {
	t.Helper()

	watcher, err := New(path, debounce)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Close() })

	rec := &recorder{}
	watcher.Subscribe(rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			t.Errorf("watcher error: %v", err)
		}
	}()

	// Give the watcher a moment to attach
	time.Sleep(100 * time.Millisecond)

	return watcher, rec
}

func TestWatcher_FileChange(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, rec := startWatcher(t, tmpFile, 50*time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte("modified"), 0o644); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	events := rec.snapshot()
	if len(events) == 0 {
		t.Fatal("expected at least one change event, got none")
	}
	if events[0].Err != nil {
		t.Errorf("expected no error, got: %v", events[0].Err)
	}
	if events[0].Path != tmpFile {
		t.Errorf("event path = %s, want %s", events[0].Path, tmpFile)
	}
}

func TestWatcher_DebounceCollapsesBursts(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, rec := startWatcher(t, tmpFile, 150*time.Millisecond)

	// Rapid writes within one debounce window
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(tmpFile, []byte("burst"), 0o644); err != nil {
			t.Fatalf("failed to modify test file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	events := rec.snapshot()
	if len(events) != 1 {
		t.Errorf("expected exactly one debounced event, got %d", len(events))
	}
}

func TestWatcher_AtomicReplace(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, rec := startWatcher(t, tmpFile, 50*time.Millisecond)

	// Editors often save via temp file + rename
	staging := filepath.Join(tmpDir, ".config.yaml.tmp")
	if err := os.WriteFile(staging, []byte("replaced"), 0o644); err != nil {
		t.Fatalf("failed to write staging file: %v", err)
	}
	if err := os.Rename(staging, tmpFile); err != nil {
		t.Fatalf("failed to rename over target: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if len(rec.snapshot()) == 0 {
		t.Fatal("expected a change event after atomic replace, got none")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, rec := startWatcher(t, tmpFile, 50*time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "other.yaml"), []byte("noise"), 0o644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if events := rec.snapshot(); len(events) != 0 {
		t.Errorf("expected no events for sibling files, got %d", len(events))
	}
}
