// Package acquire locates the Roslyn language server binary: a cached copy
// under the user cache directory, a fresh NuGet download, or a global dotnet
// tool install, in that order.
package acquire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"roslyn-wrapper/logger"
)

// serverVersions are tried newest-first; later entries are download
// fallbacks when the preferred version cannot be fetched.
var serverVersions = []string{
	"5.0.0-1.25277.114",
}

const serverBinaryBase = "Microsoft.CodeAnalysis.LanguageServer"

// Notifier surfaces acquisition progress to the user. The session does not
// exist yet at this point, so the default implementation writes
// window/showMessage notifications to stderr, where editors pick up
// pre-session status from a wrapper.
type Notifier func(message string)

// StderrNotifier is the default Notifier.
func StderrNotifier(message string) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "window/showMessage",
		"params":  map[string]any{"type": 3, "message": message},
	})
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, string(body))
}

func serverBinaryName() string {
	if runtime.GOOS == "windows" {
		return serverBinaryBase + ".exe"
	}
	return serverBinaryBase
}

// CacheDir returns (creating if needed) the wrapper's cache directory.
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache directory: %w", err)
	}
	dir := filepath.Join(base, "roslyn-wrapper")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}
	return dir, nil
}

// ResolveServerBinary finds a usable server binary. A non-empty pinned
// version is tried before the built-in list. Failure is terminal: the
// returned error carries the manual-install instructions and the caller is
// expected not to retry.
func ResolveServerBinary(pinned string, lg *logger.Logger, notify Notifier) (string, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	if notify == nil {
		notify = func(string) {}
	}

	versions := serverVersions
	if pinned != "" {
		versions = append([]string{pinned}, serverVersions...)
	}

	cacheDir, err := CacheDir()
	if err != nil {
		return "", err
	}

	for _, version := range versions {
		versionDir := filepath.Join(cacheDir, version)
		if path, err := findBinaryInDir(versionDir); err == nil {
			lg.Info("acquire: using cached Roslyn %s", version)
			notify("Roslyn LSP is ready")
			return path, nil
		}
	}

	for _, version := range versions {
		versionDir := filepath.Join(cacheDir, version)
		notify(fmt.Sprintf("Downloading Roslyn LSP %s...", version))
		lg.Info("acquire: downloading Roslyn %s from nuget.org", version)

		if err := downloadAndExtract(versionDir, version, lg, notify); err != nil {
			lg.Error("acquire: download of %s failed: %v", version, err)
			continue
		}
		cleanupOldVersions(cacheDir, version, lg)

		if path, err := findBinaryInDir(versionDir); err == nil {
			lg.Info("acquire: installed Roslyn %s", version)
			notify("Roslyn LSP installation complete")
			return path, nil
		}
		lg.Error("acquire: binary not found after extracting %s", version)
	}

	notify("Download failed, checking for globally installed Roslyn...")
	lg.Info("acquire: checking for globally installed Roslyn")
	if path, err := findGlobalInstall(); err == nil {
		lg.Info("acquire: using globally installed Roslyn")
		notify("Using globally installed Roslyn LSP")
		return path, nil
	}

	notify("Error: failed to download or find Roslyn LSP")
	return "", errors.New("could not find or download the Roslyn language server; " +
		"check network access, or install it manually: " +
		"dotnet tool install --global Microsoft.CodeAnalysis.LanguageServer")
}

// findBinaryInDir walks dir looking for the server binary.
func findBinaryInDir(dir string) (string, error) {
	name := serverBinaryName()
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err == nil && found != "" {
		return found, nil
	}
	return "", fmt.Errorf("binary %s not found in %s", name, dir)
}

// findGlobalInstall checks the dotnet global-tool location.
func findGlobalInstall() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".dotnet", "tools", serverBinaryBase),
	}
	if runtime.GOOS == "windows" {
		candidates = append(candidates, filepath.Join(home, ".dotnet", "tools", serverBinaryBase+".exe"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("global Roslyn installation not found")
}

// cleanupOldVersions removes cached version directories other than keep.
// Staging directories are left alone; a concurrent download may own them.
func cleanupOldVersions(cacheDir, keep string, lg *logger.Logger) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == keep || strings.HasPrefix(e.Name(), ".tmp_") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(cacheDir, e.Name())); err != nil {
			lg.Debug("acquire: failed to clean old version %s: %v", e.Name(), err)
			continue
		}
		lg.Info("acquire: cleaned up old version %s", e.Name())
	}
}

// FindDotnet locates the dotnet executable via PATH, then the usual install
// locations.
func FindDotnet() (string, error) {
	if path, err := exec.LookPath("dotnet"); err == nil {
		return path, nil
	}

	var common []string
	if runtime.GOOS == "windows" {
		common = []string{
			`C:\Program Files\dotnet\dotnet.exe`,
			`C:\Program Files (x86)\dotnet\dotnet.exe`,
		}
	} else {
		common = []string{
			"/usr/local/share/dotnet/dotnet",
			"/usr/local/bin/dotnet",
			"/usr/bin/dotnet",
			"/opt/homebrew/bin/dotnet",
		}
	}
	for _, path := range common {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("dotnet executable not found in PATH or common locations")
}
