// Package watch triggers rebuilds when files under a corpus root change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/refdoc/internal/logfields"
)

// Watcher watches a directory tree and calls back after a quiet period.
type Watcher struct {
	root     string
	debounce time.Duration
	log      *slog.Logger
	fw       *fsnotify.Watcher
}

// New watches root and every non-hidden directory below it.
func New(root string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{root: root, debounce: debounce, log: log, fw: fw}
	if err := w.addDirsRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Run delivers change notifications until ctx is done. A burst of events
// produces one call to rebuild once no event has arrived for the debounce
// period. Calls never overlap; events arriving during a rebuild schedule
// another one.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context)) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ShouldIgnore(ev.Name) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.addDirsRecursive(ev.Name)
				}
			}
			w.log.Debug("file change detected", logfields.Path(ev.Name), "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			w.log.Info("change detected; rebuilding", logfields.Path(w.root))
			rebuild(ctx)
		}
	}
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.log.Warn("watch add failed", "dir", path, logfields.Error(err))
		}
		return nil
	})
}

// ShouldIgnore reports whether a change to path should not trigger a
// rebuild: hidden files, editor swap and backup files.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	}
	return false
}
