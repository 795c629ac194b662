// roslyn-wrapper is a transparent LSP relay between an editor and the Roslyn
// C# language server. It forwards base-protocol traffic in both directions
// and rewrites the handful of messages where Roslyn's vendor protocol
// (solution loading, toast notifications) differs from what generic LSP
// clients understand.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"roslyn-wrapper/acquire"
	"roslyn-wrapper/config"
	"roslyn-wrapper/logger"
	"roslyn-wrapper/protocol"
	"roslyn-wrapper/relay"
	"roslyn-wrapper/watcher"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(os.Getenv("ROSLYN_WRAPPER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "roslyn-wrapper: %v\n", err)
		return 1
	}

	lg := logger.New(logger.Config{Path: cfg.LogPath, Level: cfg.LogLevel})
	defer lg.Close()
	lg.Info("starting roslyn-wrapper, args: %v", args)

	// A flag-prefixed first argument means the caller wants the server run
	// as-is, relay bypassed.
	passThrough := len(args) > 0 && strings.HasPrefix(args[0], "-")

	serverPath := cfg.Server.Path
	extraArgs := args
	if !passThrough && len(args) > 0 {
		serverPath = args[0]
		extraArgs = args[1:]
	}

	if serverPath == "" {
		serverPath, err = acquire.ResolveServerBinary(cfg.Server.Version, lg, acquire.StderrNotifier)
		if err != nil {
			lg.Error("server acquisition failed: %v", err)
			fmt.Fprintf(os.Stderr, "roslyn-wrapper: %v\n", err)
			return 1
		}
	}

	command, cmdArgs, err := serverCommand(serverPath)
	if err != nil {
		lg.Error("%v", err)
		fmt.Fprintf(os.Stderr, "roslyn-wrapper: %v\n", err)
		return 1
	}

	if passThrough {
		lg.Info("pass-through mode: %s %v", command, extraArgs)
		return execPassThrough(command, append(cmdArgs, extraArgs...))
	}

	logDir := cfg.Server.ExtensionLogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		lg.Warn("cannot create extension log directory %s: %v", logDir, err)
	}
	cmdArgs = append(cmdArgs,
		"--stdio",
		"--logLevel", "Information",
		"--extensionLogDirectory", logDir,
	)
	cmdArgs = append(cmdArgs, cfg.Server.Args...)
	cmdArgs = append(cmdArgs, extraArgs...)
	lg.Info("server command: %s %v", command, cmdArgs)

	session := relay.NewSession(relay.Config{
		Command:       command,
		Args:          cmdArgs,
		ClientIn:      os.Stdin,
		ClientOut:     os.Stdout,
		Logger:        lg,
		OnInitialized: watcherHook(cfg, lg),
	})

	if err := session.Run(); err != nil {
		lg.Error("session failed: %v", err)
		return 1
	}
	return 0
}

// serverCommand decides how to invoke the server. A DLL needs the dotnet
// host; the self-contained binary from the NuGet package runs directly.
func serverCommand(serverPath string) (string, []string, error) {
	if strings.EqualFold(filepath.Ext(serverPath), ".dll") {
		dotnet, err := acquire.FindDotnet()
		if err != nil {
			return "", nil, err
		}
		return dotnet, []string{serverPath}, nil
	}
	return serverPath, nil, nil
}

// execPassThrough runs the server with inherited stdio and mirrors its exit
// code.
func execPassThrough(command string, args []string) int {
	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "roslyn-wrapper: %v\n", err)
		return 1
	}
	return 0
}

// watcherHook starts the optional file watcher once the session reports the
// server initialized and workspace roots are known.
func watcherHook(cfg config.Config, lg *logger.Logger) func([]string, *protocol.Writer) {
	mode := watcher.ParseMode(cfg.Watcher.Mode)
	if mode == watcher.ModeOff {
		return nil
	}
	return func(roots []string, serverIn *protocol.Writer) {
		if len(roots) == 0 {
			return
		}
		notify := func(changes []watcher.Change) error {
			return serverIn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "workspace/didChangeWatchedFiles",
				"params":  map[string]any{"changes": changes},
			})
		}
		if _, err := watcher.Start(mode, roots, cfg.PollInterval(), notify, lg); err != nil {
			lg.Warn("file watcher not started: %v", err)
		}
	}
}
