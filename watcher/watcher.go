// Package watcher reports workspace file changes to the language server as
// workspace/didChangeWatchedFiles notifications, for edits made outside the
// editor. It only ever writes toward the server; the client transport is
// untouched.
package watcher

import (
	"strings"
	"time"

	"roslyn-wrapper/logger"
)

// Mode selects how file changes are detected.
type Mode string

const (
	// ModeOff disables watching. This is the default: most editors watch the
	// workspace themselves and forward changes over LSP.
	ModeOff Mode = "off"
	// ModePolling scans the tree on an interval and diffs mtimes. Works on
	// bind mounts and network filesystems where inotify does not.
	ModePolling Mode = "polling"
	// ModeFsnotify uses native filesystem events.
	ModeFsnotify Mode = "fsnotify"
	// ModeAuto tries fsnotify and falls back to polling.
	ModeAuto Mode = "auto"
)

// ParseMode maps a config string to a Mode. Unknown values disable watching.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "polling", "poll":
		return ModePolling
	case "fsnotify", "inotify", "native":
		return ModeFsnotify
	case "auto":
		return ModeAuto
	default:
		return ModeOff
	}
}

// LSP FileChangeType values.
const (
	ChangeCreated = 1
	ChangeChanged = 2
	ChangeDeleted = 3
)

// Change is one entry of a didChangeWatchedFiles batch.
type Change struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

// NotifyFunc delivers a batch of changes to the server.
type NotifyFunc func(changes []Change) error

// Watcher is a running change detector.
type Watcher interface {
	Stop()
}

// watchedExts are the file types the server cares about.
var watchedExts = map[string]bool{
	".cs":     true,
	".csproj": true,
	".sln":    true,
	".slnx":   true,
}

// skipDir reports directories excluded from scanning and watching.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "bin" || name == "obj"
}

// Start launches a watcher over roots in the given mode. ModeOff returns
// (nil, nil). ModeAuto falls back to polling when fsnotify cannot be set up.
func Start(mode Mode, roots []string, interval time.Duration, notify NotifyFunc, lg *logger.Logger) (Watcher, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	switch mode {
	case ModeOff:
		return nil, nil
	case ModePolling:
		return startPolling(roots, interval, notify, lg)
	case ModeFsnotify:
		return startFsnotify(roots, notify, lg)
	case ModeAuto:
		if w, err := startFsnotify(roots, notify, lg); err == nil {
			return w, nil
		} else {
			lg.Warn("watcher: fsnotify unavailable (%v), falling back to polling", err)
		}
		return startPolling(roots, interval, notify, lg)
	default:
		return nil, nil
	}
}
