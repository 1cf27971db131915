package lsp

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hl7tools/hl7ls/schema"
)

// watcherDebounce is the per-path quiet window before a filesystem event
// is acted on. Editors commonly emit bursts of writes for one save.
const watcherDebounce = 200 * time.Millisecond

// Watcher keeps the schema registry in sync with the .hl7v.toml files
// beneath the workspace roots: a full scan at startup, then filesystem
// events debounced per path. Every registry change re-analyses the open
// documents.
type Watcher struct {
	logger *slog.Logger
	ws     *Workspace

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewWatcher creates a watcher over the workspace's registry.
func NewWatcher(logger *slog.Logger, ws *Workspace) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:  logger.With(slog.String("component", "watcher")),
		ws:      ws,
		pending: make(map[string]*time.Timer),
	}
}

// Start scans the given roots for schema files, loads them, and begins
// watching for changes. It is called once, after the client reports
// initialized.
func (w *Watcher) Start(roots []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	for _, root := range roots {
		w.scanRoot(root)
	}
	w.ws.ReanalyzeAll()

	go w.loop()
	return nil
}

// Stop cancels pending reloads and shuts the event loop down.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if w.fsw != nil {
		_ = w.fsw.Close()
	}
}

// scanRoot walks one workspace root, loading every schema file and
// registering every directory with the filesystem watcher.
func (w *Watcher) scanRoot(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("workspace scan error",
				slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("cannot watch directory",
					slog.String("path", path), slog.String("error", err.Error()))
			}
			return nil
		}
		if isSchemaFile(path) {
			w.loadFile(path)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("workspace scan failed",
			slog.String("root", root), slog.String("error", err.Error()))
	}
}

// loop drains filesystem events until the watcher closes.
func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent debounces one filesystem event. New directories are added
// to the watch; schema file events schedule a reload or removal.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory",
					slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			return
		}
	}

	if !isSchemaFile(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.pending[event.Name]; ok {
		timer.Stop()
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(watcherDebounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		w.reload(path)
	})
}

// reload re-reads a schema file, or removes it from the overlay when it
// is gone, then re-analyses the open documents.
func (w *Watcher) reload(path string) {
	if _, err := os.Stat(path); err != nil {
		affected := w.ws.Registry().Remove(path)
		if affected != nil {
			w.logger.Info("removed workspace schema",
				slog.String("path", path), slog.Any("segments", affected))
			w.ws.ReanalyzeAll()
		}
		return
	}
	if w.loadFile(path) {
		w.ws.ReanalyzeAll()
	}
}

// loadFile parses and applies one schema file. Parse failures are logged
// and leave the previously loaded version in place.
func (w *Watcher) loadFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("cannot read workspace schema",
			slog.String("path", path), slog.String("error", err.Error()))
		return false
	}

	file, unknown, err := schema.DecodeFile(data)
	if err != nil {
		w.logger.Warn("workspace schema failed to parse; keeping previous version",
			slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	for _, key := range unknown {
		w.logger.Warn("ignoring unknown key in workspace schema",
			slog.String("path", path), slog.String("key", key))
	}

	affected := w.ws.Registry().Apply(path, file)
	w.logger.Info("loaded workspace schema",
		slog.String("path", path),
		slog.String("name", file.Name),
		slog.Any("segments", affected),
	)
	return true
}

// isSchemaFile reports whether a path names a workspace schema file.
func isSchemaFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), schema.FileExtension)
}
