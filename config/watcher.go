package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a configuration file for changes and invokes callback
// with the freshly loaded Options after each debounced change. Adapted from
// michaelbomholt665-code-watch's config file watcher: watch the containing
// directory (so atomic editor saves that replace the file are seen) and
// debounce bursts of write events into one reload.
type Watcher struct {
	path     string
	callback func(Options)
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher returns a Watcher for the config file at path.
func NewWatcher(path string, callback func(Options)) *Watcher {
	return &Watcher{path: path, callback: callback, stop: make(chan struct{})}
}

// Start begins watching in a background goroutine. Returns once the
// underlying fsnotify watch is established.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()

		const debounce = 100 * time.Millisecond
		var timer *time.Timer

		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounce, w.reload)
				}

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)

			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *Watcher) reload() {
	opts, err := Load(w.path)
	if err != nil {
		slog.Warn("config watcher: reload failed", "path", w.path, "error", err)
		return
	}
	if w.callback != nil {
		w.callback(opts)
	}
}
