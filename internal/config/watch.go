// pattern: Imperative Shell

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"chatgptnvim/internal/logging"
)

// Watcher calls a function whenever one file is written, created, renamed
// or removed.
type Watcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	logger   *logging.ScopedLogger
}

// NewWatcher creates a watcher for path. Call Run to start it.
func NewWatcher(path string, onChange func(), logger *logging.ScopedLogger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		watcher:  watcher,
		logger:   logger,
	}, nil
}

// Run watches until ctx is cancelled. Editors often save by renaming a
// temp file over the original, so the parent directory is watched.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = w.watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.logger.Debug("watched file changed", "path", w.path, "op", event.Op.String())
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops the watcher without waiting for Run to observe cancellation.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
