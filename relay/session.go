package relay

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/tidwall/gjson"

	"roslyn-wrapper/logger"
	"roslyn-wrapper/protocol"
)

// Config describes one relay session.
type Config struct {
	// Command and Args form the server command line.
	Command string
	Args    []string

	// ClientIn/ClientOut are the editor-facing transports (normally the
	// wrapper's stdin and stdout).
	ClientIn  io.Reader
	ClientOut io.Writer

	// Finder overrides workspace discovery. Nil means the real filesystem
	// scan.
	Finder SolutionFinder

	// OnInitialized, if set, runs once after the server's initialize response
	// has been observed. It receives the recorded workspace roots and the
	// shared server-stdin writer, which is safe for concurrent use.
	OnInitialized func(roots []string, serverIn *protocol.Writer)

	Logger *logger.Logger
}

// Session owns one wrapped server subprocess and the two relay pumps.
//
// Exactly two forwarding loops run for the session's lifetime, one per
// direction, plus a goroutine draining the server's stderr into the log. The
// server's stdin is written from both directions (forwarded client traffic
// and injected notifications), which the protocol.Writer mutex serializes.
type Session struct {
	cfg   Config
	state *State
	rules *Rules
	lg    *logger.Logger

	initOnce sync.Once
}

// NewSession builds a session; nothing is spawned until Run.
func NewSession(cfg Config) *Session {
	lg := cfg.Logger
	if lg == nil {
		lg = logger.Nop()
	}
	state := NewState()
	return &Session{
		cfg:   cfg,
		state: state,
		rules: NewRules(state, cfg.Finder, lg),
		lg:    lg,
	}
}

// State exposes the session state, mainly for tests.
func (s *Session) State() *State {
	return s.state
}

type pumpResult struct {
	dir string
	err error
}

// Run spawns the subprocess and relays until either transport closes or
// fails. The first pump to stop triggers immediate subprocess termination —
// there is no drain phase — and Run returns once both pumps have exited.
// Spawn and pipe failures abort before any pump starts.
func (s *Session) Run() error {
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open server stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open server stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("open server stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", s.cfg.Command, err)
	}
	s.lg.Info("session: server started (pid %d)", cmd.Process.Pid)

	serverIn := protocol.NewWriter(stdin)
	serverOut := protocol.NewReader(stdout, s.lg)
	clientIn := protocol.NewReader(s.cfg.ClientIn, s.lg)
	clientOut := protocol.NewWriter(s.cfg.ClientOut)

	go s.drainStderr(stderr)

	done := make(chan pumpResult, 2)
	go func() {
		done <- pumpResult{"client->server", s.pump(clientIn, s.rules.FromClient, clientOut, serverIn)}
	}()
	go func() {
		done <- pumpResult{"server->client", s.pump(serverOut, s.rules.FromServer, clientOut, serverIn)}
	}()

	first := <-done
	if first.err != nil {
		s.lg.Error("session: %s pump failed: %v", first.dir, first.err)
	} else {
		s.lg.Info("session: %s pump ended", first.dir)
	}

	// Killing the server unblocks the other pump's read.
	_ = cmd.Process.Kill()
	<-done
	_ = cmd.Wait()
	s.lg.Info("session: terminated")

	return first.err
}

// pump forwards messages in one direction until EOF or an I/O error. Within
// the direction messages keep strict arrival order; per-message problems are
// already contained inside the codec and the rules.
func (s *Session) pump(in *protocol.Reader, apply func([]byte) Outcome, clientOut, serverIn *protocol.Writer) error {
	for {
		body, err := in.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if method := gjson.GetBytes(body, "method").Str; method != "" {
			s.lg.Debug("relay: message method=%s (%d bytes)", method, len(body))
		}

		out := apply(body)
		for _, msg := range out.ToClient {
			if err := clientOut.Write(msg); err != nil {
				return fmt.Errorf("write to client: %w", err)
			}
		}
		for _, msg := range out.ToServer {
			if err := serverIn.Write(msg); err != nil {
				return fmt.Errorf("write to server: %w", err)
			}
		}

		if s.cfg.OnInitialized != nil && s.state.Initialized() {
			s.initOnce.Do(func() {
				s.cfg.OnInitialized(s.state.WorkspaceRoots(), serverIn)
			})
		}
	}
}

// drainStderr copies the server's diagnostic stream into the log. It never
// touches either LSP transport.
func (s *Session) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.lg.Debug("[server] %s", sc.Text())
	}
}
