package python

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nrser/docspec"
)

// WatcherConfig configures the module watcher.
type WatcherConfig struct {
	// SearchPath holds the directories to watch for Python source changes.
	SearchPath []string

	// Excludes are discovery exclude patterns; nil uses
	// DefaultExcludePatterns.
	Excludes []string

	// Options are passed to the parser.
	Options ParserOptions

	// DebounceDelay is how long to wait for more changes before parsing.
	DebounceDelay time.Duration

	// Logger for watch events.
	Logger *slog.Logger
}

// WatchOperation indicates the type of file operation behind an event.
type WatchOperation string

const (
	OpCreate WatchOperation = "create"
	OpModify WatchOperation = "modify"
	OpDelete WatchOperation = "delete"
)

// WatchEvent is emitted for each changed Python module.
type WatchEvent struct {
	// Path is the changed file path.
	Path string

	// Operation is the type of change.
	Operation WatchOperation

	// Module is the re-parsed module, nil for deletes.
	Module *docspec.Module

	// Error if parsing failed.
	Error error
}

// Watcher watches a search path for Python file changes and emits re-parsed
// modules. Events are debounced: a burst of writes to one file yields a
// single parse.
type Watcher struct {
	config  WatcherConfig
	loader  *Loader
	matcher *ExcludeMatcher
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	events chan WatchEvent
}

// NewWatcher creates a watcher over the configured search path.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	excludes := config.Excludes
	if excludes == nil {
		excludes = DefaultExcludePatterns
	}
	matcher, err := NewExcludeMatcher(excludes)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 100 * time.Millisecond
	}

	return &Watcher{
		config:  config,
		loader:  NewLoader(config.SearchPath, excludes, config.Options),
		matcher: matcher,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		events:  make(chan WatchEvent, 100),
	}, nil
}

// Events returns the channel of watch events.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start adds watches for every directory on the search path and begins
// processing events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.config.SearchPath {
		if err := w.addWatchesRecursive(dir); err != nil {
			return err
		}
	}

	// The processing loop is the only sender on the event channel, so it
	// owns the close.
	go func() {
		w.processEvents(ctx)
		close(w.events)
	}()

	w.logger.Info("module watcher started",
		"search_path", strings.Join(w.config.SearchPath, string(os.PathListSeparator)),
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop stops the underlying filesystem watcher. The event channel is closed
// once the processing loop drains out.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// ParseAll performs the initial parse of everything on the search path and
// primes the hash cache for change detection.
func (w *Watcher) ParseAll(ctx context.Context) ([]*docspec.Module, error) {
	modules, err := w.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, module := range modules {
		if loc := module.Location; loc != nil && loc.Filename != "" {
			if content, err := os.ReadFile(loc.Filename); err == nil {
				w.setHash(loc.Filename, computeHash(content))
			}
		}
	}
	return modules, nil
}

func (w *Watcher) setHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

func (w *Watcher) getHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.excludedDir(root, path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// excludedFromRoot applies the discovery excludes to a path relative to the
// search dir containing it, so anchored patterns keep their meaning for
// directories created at depth after the watch started.
func (w *Watcher) excludedFromRoot(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range w.config.SearchPath {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, absPath)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return w.excludedDir(absDir, absPath)
	}
	return false
}

// excludedDir applies the discovery excludes to a directory path.
func (w *Watcher) excludedDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	return w.matcher.Matches(rel)
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if !strings.HasSuffix(path, ".py") {
		// Watch newly created directories so their files are seen.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				if !w.excludedFromRoot(path) {
					if err := w.watcher.Add(path); err != nil {
						w.logger.Warn("failed to watch new directory", "path", path, "error", err)
					}
				}
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("file change detected", "path", path, "op", event.Op.String())
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event := WatchEvent{Path: path}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			event.Operation = OpDelete
			w.hashMu.Lock()
			delete(w.hashes, path)
			w.hashMu.Unlock()
			w.sendEvent(event)
			continue
		}

		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			event.Operation = OpDelete
			w.sendEvent(event)
			continue
		}
		if err != nil {
			event.Error = err
			w.sendEvent(event)
			continue
		}

		hash := computeHash(content)
		oldHash, hadHash := w.getHash(path)
		if hadHash && oldHash == hash {
			continue
		}

		module, err := w.loader.parseCached(ctx, path, w.moduleName(path))
		if err != nil {
			event.Error = err
			w.sendEvent(event)
			continue
		}

		w.setHash(path, hash)
		if op.Has(fsnotify.Create) || !hadHash {
			event.Operation = OpCreate
		} else {
			event.Operation = OpModify
		}
		event.Module = module
		w.sendEvent(event)
	}
}

// moduleName derives the dotted name of a watched file from the search dir
// containing it.
func (w *Watcher) moduleName(path string) string {
	for _, dir := range w.config.SearchPath {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
		rel = strings.TrimSuffix(rel, "/__init__")
		return strings.ReplaceAll(rel, "/", ".")
	}
	return ModuleNameForFile(path)
}

func (w *Watcher) sendEvent(event WatchEvent) {
	select {
	case w.events <- event:
		w.logger.Debug("sent watch event", "path", event.Path, "op", event.Operation)
	default:
		w.logger.Warn("event channel full, dropping event", "path", event.Path)
	}
}
