// Package watch polls files for changes to their modification time or size.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/book-expert/logger"
)

type stamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (s stamp) same(other stamp) bool {
	return s.exists == other.exists && s.size == other.size && s.modTime.Equal(other.modTime)
}

// Watcher remembers the last seen state of a set of files.
type Watcher struct {
	paths    []string
	interval time.Duration
	log      *logger.Logger
	stamps   map[string]stamp
}

// New creates a Watcher and records the current state of paths. Empty paths
// are ignored.
func New(interval time.Duration, log *logger.Logger, paths ...string) *Watcher {
	w := &Watcher{
		paths:    nil,
		interval: interval,
		log:      log,
		stamps:   make(map[string]stamp, len(paths)),
	}

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, seen := w.stamps[path]; seen {
			continue
		}

		w.paths = append(w.paths, path)
		w.stamps[path] = w.stat(path)
	}

	return w
}

// Paths returns the watched paths in the order given to New.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// Poll returns the paths that changed since the previous poll.
func (w *Watcher) Poll() []string {
	var changed []string

	for _, path := range w.paths {
		current := w.stat(path)
		if !current.same(w.stamps[path]) {
			w.stamps[path] = current
			changed = append(changed, path)
		}
	}

	return changed
}

// Run polls every interval and calls onChange with the changed paths until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) {
	if w.interval <= 0 || len(w.paths) == 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed := w.Poll()
			if len(changed) > 0 {
				w.log.Info("Changed on disk: %v", changed)
				onChange(ctx, changed)
			}
		}
	}
}

func (w *Watcher) stat(path string) stamp {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn("Failed to check %s: %v", path, err)
		}

		return stamp{exists: false, modTime: time.Time{}, size: 0}
	}

	return stamp{exists: true, modTime: info.ModTime(), size: info.Size()}
}
