package cli

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

const watchDebounce = 200 * time.Millisecond

// fileWatcher calls onChange after path is written, coalescing bursts of
// events into one call.
type fileWatcher struct {
	path     string
	delay    time.Duration
	onChange func(context.Context)
	logger   *log.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

func newFileWatcher(path string, logger *log.Logger, onChange func(context.Context)) *fileWatcher {
	return &fileWatcher{path: path, delay: watchDebounce, onChange: onChange, logger: logger}
}

// Run blocks until ctx is done. The parent directory is watched so editors
// that replace the file by rename keep triggering events.
func (w *fileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "create file watcher")
	}
	defer watcher.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeArgument, err, "resolve %s", w.path)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errs.Wrap(errs.ErrCodeArgument, err, "watch %s", filepath.Dir(abs))
	}
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *fileWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, func() {
		if ctx.Err() == nil {
			w.onChange(ctx)
		}
	})
}

func (w *fileWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
