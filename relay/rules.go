package relay

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"roslyn-wrapper/logger"
	"roslyn-wrapper/workspace"
)

// LSP window/showMessage severities.
const (
	messageTypeError   = 1
	messageTypeWarning = 2
	messageTypeInfo    = 3
)

// Roslyn's toast severities run opposite to the LSP MessageType scale.
// Unrecognized values map to Info.
var toastSeverity = map[int64]int64{
	3: messageTypeError,
	2: messageTypeWarning,
	1: messageTypeInfo,
}

// refreshMethods are unit notifications whose params some clients reject when
// the value is not a JSON object.
var refreshMethods = map[string]bool{
	"workspace/inlayHint/refresh":  true,
	"workspace/diagnostic/refresh": true,
	"workspace/codeLens/refresh":   true,
}

const (
	vendorToastMethod     = "window/_roslyn_showToast"
	diagnosticMethod      = "textDocument/diagnostic"
	emptyDiagnosticReport = `{"kind":"full","items":[]}`
	noSolutionMessage     = "No .sln, .slnx or .csproj file found in the workspace; C# features will be limited."
)

// SolutionFinder locates the best solution or project candidate under a
// workspace root. Injected so rule tests can run without touching the
// filesystem.
type SolutionFinder func(root string) (string, bool)

// Rules applies the stateful interception rules to decoded messages. All
// field inspection and rewriting happens directly on the raw body, so
// messages the relay does not understand pass through byte-for-byte.
type Rules struct {
	state *State
	find  SolutionFinder
	lg    *logger.Logger
}

// NewRules builds the rule set over the given state. A nil finder uses real
// workspace discovery; a nil logger disables diagnostics.
func NewRules(state *State, find SolutionFinder, lg *logger.Logger) *Rules {
	if find == nil {
		find = workspace.FindBestCandidate
	}
	if lg == nil {
		lg = logger.Nop()
	}
	return &Rules{state: state, find: find, lg: lg}
}

// Outcome lists the messages produced for one inbound message. ToClient is
// written before ToServer: the only rule that fills both requires the
// initialize response to reach the client before the injected solution/open
// reaches the server.
type Outcome struct {
	ToClient [][]byte
	ToServer [][]byte
}

// FromClient inspects a client-originated message. The message itself is
// always forwarded to the server unchanged; only session state is updated.
func (r *Rules) FromClient(body []byte) Outcome {
	method := gjson.GetBytes(body, "method").Str
	switch {
	case method == "initialize":
		r.captureInitialize(body)
	case trackedMethods[method]:
		if id := gjson.GetBytes(body, "id"); id.Exists() {
			r.state.TrackRequest(id.String(), method)
			r.lg.Debug("relay: tracking %s request id=%s", method, id.String())
		}
	}
	return Outcome{ToServer: [][]byte{body}}
}

// captureInitialize records workspace roots and any explicitly pinned
// solution from the initialize request. rootUri, when resolvable, replaces
// the root list; workspaceFolders only populate an empty list.
func (r *Rules) captureInitialize(body []byte) {
	params := gjson.GetBytes(body, "params")

	replaced := false
	if rootURI := params.Get("rootUri"); rootURI.Exists() {
		if p, ok := workspace.URIToPath(rootURI.Str); ok {
			r.state.SetWorkspaceRoots([]string{p})
			r.lg.Info("relay: workspace root %s", p)
			replaced = true
		}
	}
	if !replaced && !r.state.HasWorkspaceRoots() {
		for _, folder := range params.Get("workspaceFolders").Array() {
			if p, ok := workspace.URIToPath(folder.Get("uri").Str); ok {
				r.state.AppendWorkspaceRoot(p)
				r.lg.Info("relay: workspace folder %s", p)
			}
		}
	}

	if sol := params.Get("initializationOptions.solution"); sol.Exists() {
		r.state.SetSolutionURI(sol.Str)
		r.lg.Info("relay: client pinned solution %s", sol.Str)
	}
}

// FromServer inspects a server-originated message and produces the outbound
// messages in the order they must be written. The rules are mutually
// exclusive by trigger shape; the first match wins.
func (r *Rules) FromServer(body []byte) Outcome {
	method := gjson.GetBytes(body, "method").Str

	if refreshMethods[method] {
		return Outcome{ToClient: [][]byte{r.normalizeRefresh(body, method)}}
	}

	// Initialization detection is a heuristic: the first response carrying a
	// capabilities key wins, without correlating the request id.
	if result := gjson.GetBytes(body, "result"); result.Exists() && result.Get("capabilities").Exists() {
		if r.state.MarkInitialized() {
			return r.afterInitialize(body)
		}
	}

	if id := gjson.GetBytes(body, "id"); id.Exists() && method == "" {
		if tracked, ok := r.state.ConsumeRequest(id.String()); ok {
			return Outcome{ToClient: [][]byte{r.normalizeResponse(body, tracked)}}
		}
	}

	if method == vendorToastMethod {
		return Outcome{ToClient: [][]byte{r.rewriteToast(body)}}
	}

	return Outcome{ToClient: [][]byte{body}}
}

// normalizeRefresh strips a params field that is present but not an object.
func (r *Rules) normalizeRefresh(body []byte, method string) []byte {
	params := gjson.GetBytes(body, "params")
	if !params.Exists() || params.IsObject() {
		return body
	}
	stripped, err := sjson.DeleteBytes(body, "params")
	if err != nil {
		return body
	}
	r.lg.Debug("relay: stripped non-object params from %s", method)
	return stripped
}

// normalizeResponse rewrites the response to a tracked request. A diagnostic
// response with a missing or null result becomes an explicit empty full
// report; error responses are left alone.
func (r *Rules) normalizeResponse(body []byte, tracked string) []byte {
	if tracked != diagnosticMethod {
		return body
	}
	if gjson.GetBytes(body, "error").Exists() {
		return body
	}
	result := gjson.GetBytes(body, "result")
	if result.Exists() && result.Type != gjson.Null {
		return body
	}
	rewritten, err := sjson.SetRawBytes(body, "result", []byte(emptyDiagnosticReport))
	if err != nil {
		return body
	}
	r.lg.Debug("relay: replaced null diagnostic result with empty report")
	return rewritten
}

// afterInitialize forwards the initialize response and then either injects
// solution/open toward the server or warns the client that no solution or
// project could be found.
func (r *Rules) afterInitialize(body []byte) Outcome {
	out := Outcome{ToClient: [][]byte{body}}
	r.lg.Info("relay: server initialized")

	target := r.state.SolutionURI()
	if target == "" {
		for _, root := range r.state.WorkspaceRoots() {
			if uri, ok := r.find(root); ok {
				target = uri
				break
			}
		}
	}

	if target == "" {
		r.lg.Warn("relay: no solution or project found under workspace roots")
		if warn, err := notification("window/showMessage", map[string]any{
			"type":    messageTypeWarning,
			"message": noSolutionMessage,
		}); err == nil {
			out.ToClient = append(out.ToClient, warn)
		}
		return out
	}

	r.lg.Info("relay: opening solution %s", target)
	if open, err := notification("solution/open", map[string]any{
		"solution": target,
	}); err == nil {
		out.ToServer = append(out.ToServer, open)
	}
	return out
}

// rewriteToast turns the vendor toast notification into a standard
// window/showMessage. Toasts without a params object pass through unchanged.
func (r *Rules) rewriteToast(body []byte) []byte {
	params := gjson.GetBytes(body, "params")
	if !params.IsObject() {
		return body
	}

	mapped := int64(messageTypeInfo)
	if t, ok := toastSeverity[params.Get("messageType").Int()]; ok {
		mapped = t
	}
	rewritten, err := notification("window/showMessage", map[string]any{
		"type":    mapped,
		"message": params.Get("message").Str,
	})
	if err != nil {
		return body
	}
	r.lg.Debug("relay: rewrote toast (severity %d)", mapped)
	return rewritten
}

func notification(method string, params any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}
