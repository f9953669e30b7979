package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"termsheet/internal/logger"
)

// DefaultDebounce coalesces the write bursts of a file being copied in.
const DefaultDebounce = 2 * time.Second

// Watcher emits supported files created or written in a directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a Watcher for dir. A non-positive debounce uses DefaultDebounce.
func NewWatcher(dir string, debounce time.Duration, l *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, logger: logger.OrNop(l)}
}

// Watch starts watching and returns a channel of settled file paths. The
// channel is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.dir, err)
	}

	out := make(chan string)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	defer close(out)
	defer func() { _ = fw.Close() }()

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-fw.Events:
			if !ok {
				return
			}
			if !Supported(e.Name) || !e.Op.Has(fsnotify.Create) && !e.Op.Has(fsnotify.Write) {
				continue
			}
			pending[e.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ingest.Watcher: fsnotify error", zap.Error(err))

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
