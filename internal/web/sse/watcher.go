package sse

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher coalesces writes before notifying.
const DefaultDebounce = time.Second

// Watcher watches the guest file for writes and feeds notices to a broker.
type Watcher struct {
	path     string
	broker   *Broker
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates and starts a watcher on the guest file at path.
// The parent directory is watched so the file may be created later.
func NewWatcher(path string, broker *Broker, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		broker:   broker,
		watcher:  fw,
		debounce: debounce,
	}

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	// Every write produces an event and prune truncates then rewrites, so
	// a single operation produces a burst of events.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if !pending {
					timer.Reset(w.debounce)
					pending = true
				}
			}
		case <-timer.C:
			pending = false
			w.broker.Broadcast(Notice{TS: time.Now().UTC(), File: filepath.Base(w.path)})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", "err", err)
		}
	}
}
