package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"roslyn-wrapper/logger"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"off", ModeOff},
		{"", ModeOff},
		{"bogus", ModeOff},
		{"polling", ModePolling},
		{"poll", ModePolling},
		{"fsnotify", ModeFsnotify},
		{"inotify", ModeFsnotify},
		{"native", ModeFsnotify},
		{"auto", ModeAuto},
		{"AUTO", ModeAuto},
		{" polling ", ModePolling},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestSkipDir(t *testing.T) {
	for _, name := range []string{".git", ".vs", "node_modules", "bin", "obj"} {
		if !skipDir(name) {
			t.Errorf("Expected %s to be skipped", name)
		}
	}
	for _, name := range []string{"src", "Binaries", "objects"} {
		if skipDir(name) {
			t.Errorf("Expected %s to be scanned", name)
		}
	}
}

func TestStartOffReturnsNil(t *testing.T) {
	w, err := Start(ModeOff, []string{t.TempDir()}, time.Second, nil, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if w != nil {
		t.Error("ModeOff must not start a watcher")
	}
}

func TestPollingTickDiffs(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) string {
		t.Helper()
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	changed := write("src/Program.cs", "v1")
	deleted := write("Old.csproj", "v1")
	write("ignored.txt", "v1")
	write("bin/Skipped.cs", "v1")

	var got []Change
	pw := &pollingWatcher{
		roots: []string{root},
		notify: func(changes []Change) error {
			got = changes
			return nil
		},
		lg:   logger.Nop(),
		stop: make(chan struct{}),
	}
	pw.files = pw.snapshot()
	if len(pw.files) != 2 {
		t.Fatalf("Expected 2 watched files in snapshot, got %d", len(pw.files))
	}

	// Mutate: change one file, delete one, create one.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(changed, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Remove(deleted); err != nil {
		t.Fatalf("remove: %v", err)
	}
	write("New.sln", "v1")

	pw.tick()

	if len(got) != 3 {
		t.Fatalf("Expected 3 changes, got %v", got)
	}
	byType := map[int]string{}
	for _, c := range got {
		byType[c.Type] = c.URI
	}
	if !strings.HasSuffix(byType[ChangeCreated], "/New.sln") {
		t.Errorf("Unexpected created entry %s", byType[ChangeCreated])
	}
	if !strings.HasSuffix(byType[ChangeChanged], "/Program.cs") {
		t.Errorf("Unexpected changed entry %s", byType[ChangeChanged])
	}
	if !strings.HasSuffix(byType[ChangeDeleted], "/Old.csproj") {
		t.Errorf("Unexpected deleted entry %s", byType[ChangeDeleted])
	}
	for _, c := range got {
		if !strings.HasPrefix(c.URI, "file://") {
			t.Errorf("Expected file URI, got %s", c.URI)
		}
	}

	// No further mutation, no further notifications.
	got = nil
	pw.tick()
	if got != nil {
		t.Errorf("Expected no changes on a quiet tick, got %v", got)
	}
}

func TestPollingStartStop(t *testing.T) {
	w, err := Start(ModePolling, []string{t.TempDir()}, 10*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if w == nil {
		t.Fatal("Expected a running watcher")
	}
	w.Stop()
	w.Stop() // idempotent
}
