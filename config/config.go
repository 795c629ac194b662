// Package config loads wrapper settings from a TOML file with environment
// overrides. Configuration is entirely optional: a missing file means
// defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full wrapper configuration.
type Config struct {
	// LogPath overrides the log file location.
	LogPath string `toml:"log_path"`
	// LogLevel is off, error, warn, info or debug.
	LogLevel string `toml:"log_level"`

	Watcher WatcherConfig `toml:"watcher"`
	Server  ServerConfig  `toml:"server"`
}

// WatcherConfig controls the optional workspace file watcher.
type WatcherConfig struct {
	// Mode is off, polling, fsnotify or auto.
	Mode string `toml:"mode"`
	// Interval is the polling rescan interval, as a Go duration string.
	Interval string `toml:"interval"`
}

// ServerConfig controls how the wrapped server is located and launched.
type ServerConfig struct {
	// Path points at the server binary or DLL. Empty means acquire one.
	Path string `toml:"path"`
	// Version pins the server version to acquire, tried before the built-in
	// list.
	Version string `toml:"version"`
	// Args are appended to the server command line.
	Args []string `toml:"args"`
	// ExtensionLogDir is passed to the server as --extensionLogDirectory.
	ExtensionLogDir string `toml:"extension_log_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Watcher: WatcherConfig{
			Mode:     "off",
			Interval: "30s",
		},
		Server: ServerConfig{
			ExtensionLogDir: "logs",
		},
	}
}

// Load reads configuration from the first usable location: the explicit path
// when given, then <user-config-dir>/roslyn-wrapper/config.toml, then
// roslyn-wrapper.toml in the working directory. Environment variables are
// applied on top. An unreadable or invalid explicit path is an error;
// fallback locations are skipped silently.
func Load(explicitPath string) (Config, error) {
	cfg := Default()

	if explicitPath != "" {
		if err := decodeFile(explicitPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", explicitPath, err)
		}
		applyEnvOverrides(&cfg)
		return cfg, nil
	}

	for _, path := range fallbackPaths() {
		err := decodeFile(path, &cfg)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			// Unreadable fallback candidates are ignored, but reset any
			// partial decode.
			cfg = Default()
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func fallbackPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "roslyn-wrapper", "config.toml"))
	}
	paths = append(paths, "roslyn-wrapper.toml")
	return paths
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}

// applyEnvOverrides lets the host editor tune the wrapper without a config
// file, which is the common case for editor-managed installs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROSLYN_WRAPPER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROSLYN_WRAPPER_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("ROSLYN_WRAPPER_WATCHER_MODE"); v != "" {
		cfg.Watcher.Mode = v
	}
	if v := os.Getenv("ROSLYN_WRAPPER_WATCHER_INTERVAL"); v != "" {
		cfg.Watcher.Interval = v
	}
}

// PollInterval parses the watcher interval, defaulting to 30s.
func (c Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Watcher.Interval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
