package relay

import (
	"io"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"roslyn-wrapper/protocol"
)

// echoSession runs a session against cat, which reflects every forwarded
// client message back as if the server had produced it.
func echoSession(t *testing.T, finder SolutionFinder, onInit func([]string, *protocol.Writer)) (*protocol.Writer, *protocol.Reader, *Session, chan error) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test server relies on cat")
	}
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skipf("cat not available: %v", err)
	}

	clientInR, clientInW := io.Pipe()
	clientOutR, clientOutW := io.Pipe()

	session := NewSession(Config{
		Command:       "cat",
		ClientIn:      clientInR,
		ClientOut:     clientOutW,
		Finder:        finder,
		OnInitialized: onInit,
	})

	done := make(chan error, 1)
	go func() { done <- session.Run() }()
	t.Cleanup(func() {
		clientInW.Close()
		clientOutR.Close()
	})

	return protocol.NewWriter(clientInW), protocol.NewReader(clientOutR, nil), session, done
}

func readMessage(t *testing.T, r *protocol.Reader) []byte {
	t.Helper()
	type result struct {
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		body, err := r.Read()
		ch <- result{body, err}
	}()
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.body
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a relayed message")
		return nil
	}
}

func TestSessionRelaysAndInjectsSolution(t *testing.T) {
	finder := func(root string) (string, bool) {
		return "file:///ws/App.sln", true
	}
	var gotRoots []string
	onInit := func(roots []string, _ *protocol.Writer) { gotRoots = roots }

	clientIn, clientOut, session, _ := echoSession(t, finder, onInit)

	initReq := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":"file:///ws"}}`)
	require.NoError(t, clientIn.Write(initReq))

	// cat reflects the request; the relay treats the echo as server output
	// and forwards it untouched.
	echo := readMessage(t, clientOut)
	assert.Equal(t, initReq, echo)

	initResp := []byte(`{"jsonrpc":"2.0","id":1,"result":{"capabilities":{}}}`)
	require.NoError(t, clientIn.Write(initResp))

	resp := readMessage(t, clientOut)
	assert.Equal(t, initResp, resp, "initialize response reaches the client first")

	// The injected solution/open went to the server (cat) and comes back.
	open := readMessage(t, clientOut)
	assert.Equal(t, "solution/open", gjson.GetBytes(open, "method").Str)
	assert.Equal(t, "file:///ws/App.sln", gjson.GetBytes(open, "params.solution").Str)

	assert.True(t, session.State().Initialized())
	assert.Equal(t, []string{"/ws"}, gotRoots)

	toast := []byte(`{"jsonrpc":"2.0","method":"window/_roslyn_showToast","params":{"messageType":3,"message":"load failed"}}`)
	require.NoError(t, clientIn.Write(toast))
	rewritten := readMessage(t, clientOut)
	assert.Equal(t, "window/showMessage", gjson.GetBytes(rewritten, "method").Str)
	assert.EqualValues(t, messageTypeError, gjson.GetBytes(rewritten, "params.type").Int())
	assert.Equal(t, "load failed", gjson.GetBytes(rewritten, "params.message").Str)
}

func TestSessionCleanShutdownOnClientEOF(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test server relies on cat")
	}

	clientInR, clientInW := io.Pipe()
	session := NewSession(Config{
		Command:   "cat",
		ClientIn:  clientInR,
		ClientOut: io.Discard,
	})

	done := make(chan error, 1)
	go func() { done <- session.Run() }()

	require.NoError(t, clientInW.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after client EOF")
	}
}

func TestSessionSpawnFailure(t *testing.T) {
	session := NewSession(Config{
		Command:   "/nonexistent/definitely-not-a-server",
		ClientIn:  strings.NewReader(""),
		ClientOut: io.Discard,
	})
	err := session.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn")
}
