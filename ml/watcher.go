package ml

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the host whenever its artifact file is rewritten. A
// reload that fails leaves the previous model in place.
type Watcher struct {
	host     *Host
	logger   *zap.Logger
	debounce time.Duration
}

// NewWatcher returns a watcher for host's artifact path.
func NewWatcher(host *Host, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{host: host, logger: logger.Named("watcher"), debounce: defaultDebounce}
}

// Run blocks until ctx is cancelled. The artifact's directory is watched
// rather than the file so that atomic renames by the trainer are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.host.Path())
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	w.logger.Info("watching model artifact", zap.String("path", target))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if err := w.host.Load(); err != nil {
				w.logger.Warn("reload failed, keeping previous model", zap.Error(err))
				continue
			}
			w.logger.Info("model reloaded")
		}
	}
}
