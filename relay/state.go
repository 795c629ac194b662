package relay

import "sync"

// trackedMethods are client request methods whose responses the relay must
// normalize. The request id is remembered so the matching response can be
// recognized.
var trackedMethods = map[string]bool{
	"textDocument/diagnostic": true,
}

// State is the cross-cutting session state shared by both relay directions.
// One coarse mutex covers every field; mutation only happens around
// initialization and tracked requests, so contention is negligible.
type State struct {
	mu             sync.Mutex
	initialized    bool
	solutionURI    string
	workspaceRoots []string
	pending        map[string]string // stringified request id -> method
}

// NewState returns an empty session state.
func NewState() *State {
	return &State{pending: make(map[string]string)}
}

// MarkInitialized flips the one-way initialized flag. It returns true only on
// the actual transition, so later capability-bearing responses are forwarded
// as plain responses without re-triggering injection.
func (s *State) MarkInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	s.initialized = true
	return true
}

// Initialized reports whether the server has completed initialization.
func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// SetSolutionURI records the solution the client pinned explicitly.
func (s *State) SetSolutionURI(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solutionURI = uri
}

// SolutionURI returns the pinned solution URI, or "" if none was given.
func (s *State) SolutionURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.solutionURI
}

// SetWorkspaceRoots replaces the workspace root list.
func (s *State) SetWorkspaceRoots(roots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaceRoots = append([]string(nil), roots...)
}

// AppendWorkspaceRoot adds one root to the list.
func (s *State) AppendWorkspaceRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaceRoots = append(s.workspaceRoots, root)
}

// HasWorkspaceRoots reports whether any root has been recorded.
func (s *State) HasWorkspaceRoots() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaceRoots) > 0
}

// WorkspaceRoots returns a copy of the ordered root list.
func (s *State) WorkspaceRoots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.workspaceRoots...)
}

// TrackRequest remembers a tracked request id until its response arrives.
func (s *State) TrackRequest(id, method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = method
}

// ConsumeRequest removes and returns the method tracked for id. The entry is
// consumed whether or not the response ends up needing normalization.
func (s *State) ConsumeRequest(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	method, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return method, ok
}
