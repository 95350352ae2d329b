package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ReloadEvent signals that a config file changed on disk.
type ReloadEvent struct {
	Path string
	Op   fsnotify.Op
}

// Watcher emits a ReloadEvent when any config file changes. The daemon
// drains the channel between cycles and reloads its configuration.
type Watcher struct {
	logger *slog.Logger
	events chan ReloadEvent
	paths  []string
}

// NewWatcher creates a watcher over the given config file paths.
func NewWatcher(paths []string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger: logger,
		events: make(chan ReloadEvent, 16),
		paths:  paths,
	}
}

// Events returns the notification channel. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start watches until ctx is cancelled. The parent directories are watched
// rather than the files themselves; editors often replace files by rename,
// which silently drops a per-file watch.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := make(map[string]struct{}, len(w.paths))
	watched := make(map[string]struct{}, len(w.paths))
	for _, p := range w.paths {
		dirs[filepath.Dir(p)] = struct{}{}
		watched[filepath.Clean(p)] = struct{}{}
	}
	for dir := range dirs {
		_ = fsw.Add(dir)
	}

	go func() {
		defer fsw.Close()
		defer close(w.events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if _, ok := watched[filepath.Clean(ev.Name)]; !ok {
					continue
				}
				select {
				case w.events <- ReloadEvent{Path: ev.Name, Op: ev.Op}:
				default:
				}
				w.logger.Info("config file changed", "path", ev.Name, "op", ev.Op.String())
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
