package watcher

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"roslyn-wrapper/logger"
)

// pollingWatcher detects changes by rescanning the roots on an interval and
// diffing modification times against the previous snapshot.
type pollingWatcher struct {
	roots    []string
	interval time.Duration
	notify   NotifyFunc
	lg       *logger.Logger

	mu      sync.Mutex
	files   map[string]int64 // path -> mtime (unix)
	stop    chan struct{}
	stopped sync.Once
}

func startPolling(roots []string, interval time.Duration, notify NotifyFunc, lg *logger.Logger) (Watcher, error) {
	pw := &pollingWatcher{
		roots:    roots,
		interval: interval,
		notify:   notify,
		lg:       lg,
		stop:     make(chan struct{}),
	}

	start := time.Now()
	pw.files = pw.snapshot()
	lg.Info("watcher: polling started, initial scan %d files in %v (interval %v)",
		len(pw.files), time.Since(start), interval)

	go pw.loop()
	return pw, nil
}

func (pw *pollingWatcher) Stop() {
	pw.stopped.Do(func() {
		close(pw.stop)
		pw.lg.Info("watcher: polling stopped")
	})
}

func (pw *pollingWatcher) loop() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.stop:
			return
		case <-ticker.C:
			pw.tick()
		}
	}
}

// tick rescans and reports the diff against the previous snapshot.
func (pw *pollingWatcher) tick() {
	current := pw.snapshot()

	pw.mu.Lock()
	previous := pw.files
	pw.files = current
	pw.mu.Unlock()

	var changes []Change
	for path, mtime := range current {
		old, ok := previous[path]
		switch {
		case !ok:
			changes = append(changes, Change{URI: pathURI(path), Type: ChangeCreated})
		case mtime != old:
			changes = append(changes, Change{URI: pathURI(path), Type: ChangeChanged})
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			changes = append(changes, Change{URI: pathURI(path), Type: ChangeDeleted})
		}
	}

	if len(changes) == 0 {
		return
	}
	// Deterministic batch order keeps the logs readable.
	sort.Slice(changes, func(i, j int) bool { return changes[i].URI < changes[j].URI })

	pw.lg.Debug("watcher: %d changes detected", len(changes))
	if pw.notify != nil {
		if err := pw.notify(changes); err != nil {
			pw.lg.Error("watcher: failed to send changes: %v", err)
		}
	}
}

// snapshot walks all roots collecting mtimes for watched file types.
func (pw *pollingWatcher) snapshot() map[string]int64 {
	result := make(map[string]int64)
	for _, root := range pw.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !watchedExts[strings.ToLower(filepath.Ext(d.Name()))] {
				return nil
			}
			if info, err := d.Info(); err == nil {
				result[path] = info.ModTime().UnixNano()
			}
			return nil
		})
	}
	return result
}

func pathURI(path string) string {
	p := filepath.ToSlash(path)
	if len(p) == 0 || p[0] != '/' {
		p = "/" + p
	}
	return "file://" + p
}
