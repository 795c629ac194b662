package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"roslyn-wrapper/logger"
)

// debounceWindow coalesces bursts of filesystem events into one notification.
const debounceWindow = 500 * time.Millisecond

// fsnotifyWatcher forwards native filesystem events, debounced so a build or
// branch switch produces one batch instead of thousands.
type fsnotifyWatcher struct {
	fw     *fsnotify.Watcher
	notify NotifyFunc
	lg     *logger.Logger

	stop    chan struct{}
	stopped sync.Once
}

func startFsnotify(roots []string, notify NotifyFunc, lg *logger.Logger) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &fsnotifyWatcher{
		fw:     fw,
		notify: notify,
		lg:     lg,
		stop:   make(chan struct{}),
	}

	watched := 0
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				lg.Debug("watcher: cannot watch %s: %v", path, err)
				return nil
			}
			watched++
			return nil
		})
	}
	lg.Info("watcher: fsnotify started over %d directories", watched)

	go w.loop()
	return w, nil
}

func (w *fsnotifyWatcher) Stop() {
	w.stopped.Do(func() {
		close(w.stop)
		_ = w.fw.Close()
		w.lg.Info("watcher: fsnotify stopped")
	})
}

func (w *fsnotifyWatcher) loop() {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]int) // uri -> change type

	flush := func() {
		if len(pending) == 0 {
			return
		}
		changes := make([]Change, 0, len(pending))
		for uri, typ := range pending {
			changes = append(changes, Change{URI: uri, Type: typ})
		}
		pending = make(map[string]int)

		w.lg.Debug("watcher: %d changes detected", len(changes))
		if w.notify != nil {
			if err := w.notify(changes); err != nil {
				w.lg.Error("watcher: failed to send changes: %v", err)
			}
		}
	}

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event, pending)
			timer.Reset(debounceWindow)

		case <-timer.C:
			flush()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.lg.Error("watcher: fsnotify error: %v", err)
		}
	}
}

// handleEvent records a watched-file event, and starts watching directories
// created after startup.
func (w *fsnotifyWatcher) handleEvent(event fsnotify.Event, pending map[string]int) {
	ext := strings.ToLower(filepath.Ext(event.Name))
	if !watchedExts[ext] {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(info.Name()) {
				if err := w.fw.Add(event.Name); err == nil {
					w.lg.Debug("watcher: watching new directory %s", event.Name)
				}
			}
		}
		return
	}

	uri := pathURI(event.Name)
	switch {
	case event.Has(fsnotify.Create):
		pending[uri] = ChangeCreated
	case event.Has(fsnotify.Write):
		if _, exists := pending[uri]; !exists {
			pending[uri] = ChangeChanged
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pending[uri] = ChangeDeleted
	}
}
