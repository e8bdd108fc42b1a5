package python

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nrser/docspec"
)

func newTestWatcher(t *testing.T, dir string, excludes []string) *Watcher {
	t.Helper()
	w, err := NewWatcher(WatcherConfig{
		SearchPath:    []string{dir},
		Excludes:      excludes,
		Options:       DefaultParserOptions(),
		DebounceDelay: 20 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return w
}

func waitEvent(t *testing.T, w *Watcher) WatchEvent {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
	return WatchEvent{}
}

func expectNoEvent(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event: %s %s", event.Operation, event.Path)
	case <-time.After(250 * time.Millisecond):
	}
}

func TestWatcher_CreateModifyDelete(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"pkg/__init__.py": ""})

	w := newTestWatcher(t, dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := w.ParseAll(ctx); err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "pkg", "mod.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	event := waitEvent(t, w)
	if event.Operation != OpCreate {
		t.Errorf("operation = %q, want %q", event.Operation, OpCreate)
	}
	if event.Path != path {
		t.Errorf("path = %q, want %q", event.Path, path)
	}
	if event.Module == nil || event.Module.Name != "pkg.mod" {
		t.Fatalf("module = %+v", event.Module)
	}

	if err := os.WriteFile(path, []byte("x = 2\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	event = waitEvent(t, w)
	if event.Operation != OpModify {
		t.Errorf("operation = %q, want %q", event.Operation, OpModify)
	}
	if event.Module == nil || len(event.Module.Members) != 1 {
		t.Fatalf("module = %+v", event.Module)
	}
	if v, ok := event.Module.Members[0].(*docspec.Variable); !ok || v.Value != "2" {
		t.Errorf("member = %+v, want x = 2", event.Module.Members[0])
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	event = waitEvent(t, w)
	if event.Operation != OpDelete {
		t.Errorf("operation = %q, want %q", event.Operation, OpDelete)
	}
	if event.Module != nil {
		t.Errorf("delete event carries a module: %+v", event.Module)
	}
}

func TestWatcher_UnchangedContentSkipped(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"mod.py": "x = 1\n"})

	w := newTestWatcher(t, dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ParseAll primes the content hashes.
	if _, err := w.ParseAll(ctx); err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "mod.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	expectNoEvent(t, w)

	if err := os.WriteFile(path, []byte("x = 2\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	event := waitEvent(t, w)
	if event.Operation != OpModify {
		t.Errorf("operation = %q, want %q", event.Operation, OpModify)
	}
}

func TestWatcher_DebouncesWriteBurst(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(WatcherConfig{
		SearchPath:    []string{dir},
		Options:       DefaultParserOptions(),
		DebounceDelay: 200 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Both writes land inside one debounce window, yielding a single parse
	// of the final content.
	path := filepath.Join(dir, "mod.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(path, []byte("x = 2\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	event := waitEvent(t, w)
	if event.Operation != OpCreate {
		t.Errorf("operation = %q, want %q", event.Operation, OpCreate)
	}
	if event.Module == nil || len(event.Module.Members) != 1 {
		t.Fatalf("module = %+v", event.Module)
	}
	if v, ok := event.Module.Members[0].(*docspec.Variable); !ok || v.Value != "2" {
		t.Errorf("member = %+v, want the last written content", event.Module.Members[0])
	}
	expectNoEvent(t, w)
}

func TestWatcher_NewDirectoryWatched(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "pkg")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher time to pick up the directory before writing into it.
	time.Sleep(250 * time.Millisecond)

	path := filepath.Join(sub, "mod.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	event := waitEvent(t, w)
	if event.Operation != OpCreate {
		t.Errorf("operation = %q, want %q", event.Operation, OpCreate)
	}
	if event.Module == nil || event.Module.Name != "pkg.mod" {
		t.Fatalf("module = %+v", event.Module)
	}
}

func TestWatcher_ExcludedFromRoot(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, []string{"/build/", "__pycache__/"})

	if !w.excludedFromRoot(filepath.Join(dir, "build")) {
		t.Error("anchored pattern should exclude at the search root")
	}
	if w.excludedFromRoot(filepath.Join(dir, "sub", "build")) {
		t.Error("anchored pattern should not exclude below the root")
	}
	if !w.excludedFromRoot(filepath.Join(dir, "sub", "__pycache__")) {
		t.Error("unanchored pattern should exclude at any depth")
	}
	if !w.excludedFromRoot(filepath.Join(dir, ".hidden")) {
		t.Error("hidden directory should be excluded")
	}
	if w.excludedFromRoot(filepath.Join(dir, "src")) {
		t.Error("plain directory should not be excluded")
	}
	if w.excludedFromRoot(filepath.Join(os.TempDir(), "elsewhere", "build")) {
		t.Error("path outside the search path should not be excluded")
	}
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"mod.py": "x = 1\n"})

	w := newTestWatcher(t, dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Queue a change, then stop immediately. The processing loop must shut
	// down without panicking and close the channel once drained.
	if err := os.WriteFile(filepath.Join(dir, "mod.py"), []byte("x = 2\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed after Stop")
		}
	}
}
