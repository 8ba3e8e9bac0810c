// Package appstate owns the mutable application state shared with the
// monitoring core. The core reads it and writes only the issue buckets;
// everything else is mutated by the application layer (webview/tab glue,
// camera pipeline, OBS controller) through Update.
package appstate

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// DATA STRUCTURES
// ============================================================================

// State is a point-in-time view of the application. Copies returned by
// Store.Get are value snapshots; mutating them has no effect on the store.
type State struct {
	CurrentTab string       `json:"currentTab"`
	Camera     CameraState  `json:"camera"`
	OBS        OBSState     `json:"obs"`
	Windows    WindowStates `json:"windows"`
	Session    SessionState `json:"session"`

	// Issues detected by the monitoring core, bucketed by subsystem.
	// Written exclusively through ReplaceIssues.
	Issues map[string][]Issue `json:"issues"`
}

// CameraState mirrors the virtual-camera pipeline status.
type CameraState struct {
	Active            bool    `json:"active"`
	DeviceConnected   bool    `json:"deviceConnected"`
	PermissionGranted bool    `json:"permissionGranted"`
	FaceSwapEnabled   bool    `json:"faceSwapEnabled"`
	FPS               float64 `json:"fps"`
}

// OBSState mirrors the OBS controller status.
type OBSState struct {
	Connected         bool   `json:"connected"`
	CurrentScene      string `json:"currentScene"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
}

// WindowStates maps tab names (whatsapp/messenger/line) to webview health.
type WindowStates map[string]WindowState

type WindowState struct {
	Loaded        bool      `json:"loaded"`
	Responsive    bool      `json:"responsive"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	UnreadCount   int       `json:"unreadCount"`
}

// SessionState carries application-layer session data the core treats as
// opaque payload. It exists so persistence round-trips have something real
// to carry.
type SessionState struct {
	StartedAt   time.Time      `json:"startedAt"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Issue is a detected operational problem written into a state bucket.
type Issue struct {
	ID         string         `json:"id"`
	Category   string         `json:"category"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
	Actions    []IssueAction  `json:"actions,omitempty"`
	DetectedAt time.Time      `json:"detectedAt"`
	Context    map[string]any `json:"context,omitempty"`
}

// IssueAction is a recovery action offered for an issue, annotated with
// whether the executor could run it at detection time.
type IssueAction struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// IssueBuckets are the recognized bucket names, in display order.
var IssueBuckets = []string{"camera", "obs", "windows", "system"}

// ============================================================================
// STORE
// ============================================================================

// Store is the concurrency-safe holder of the application state.
type Store struct {
	mu    sync.RWMutex
	state State
	subs  map[int]func()
	nextS int
}

// NewStore creates a store with an initialized (empty) state.
func NewStore() *Store {
	return &Store{
		state: State{
			Windows: WindowStates{},
			Issues:  map[string][]Issue{},
			Session: SessionState{StartedAt: time.Now()},
		},
		subs: map[int]func(){},
	}
}

// Get returns a deep-enough copy of the current state for read-only use.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Update applies fn to the state under the write lock and notifies
// subscribers afterwards.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.notify()
}

// ReplaceIssues clears and rewrites one issue bucket. This is the only
// write path the monitoring core uses; incremental patching is deliberately
// not offered so stale issues cannot accumulate.
func (s *Store) ReplaceIssues(bucket string, issues []Issue) {
	s.mu.Lock()
	if s.state.Issues == nil {
		s.state.Issues = map[string][]Issue{}
	}
	s.state.Issues[bucket] = append([]Issue(nil), issues...)
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers a change-notification callback and returns a cancel
// function. Callbacks run synchronously on the mutating goroutine and must
// be cheap; the persistence debounce absorbs bursts.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextS
	s.nextS++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// ============================================================================
// PERSISTENCE HOOKS
// ============================================================================

// Snapshot returns the state as a JSON-serializable value for checkpointing.
func (s *Store) Snapshot() any {
	return s.Get()
}

// Restore replaces the state wholesale from a persisted snapshot payload.
// Subscribers are not notified: a restore precedes normal operation and must
// not trigger an immediate save of what was just read.
func (s *Store) Restore(raw json.RawMessage) error {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("decode state payload: %w", err)
	}
	if st.Windows == nil {
		st.Windows = WindowStates{}
	}
	if st.Issues == nil {
		st.Issues = map[string][]Issue{}
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

func (st State) clone() State {
	out := st
	out.Windows = make(WindowStates, len(st.Windows))
	for k, v := range st.Windows {
		out.Windows[k] = v
	}
	out.Issues = make(map[string][]Issue, len(st.Issues))
	for k, v := range st.Issues {
		out.Issues[k] = append([]Issue(nil), v...)
	}
	if st.Session.Preferences != nil {
		prefs := make(map[string]any, len(st.Session.Preferences))
		for k, v := range st.Session.Preferences {
			prefs[k] = v
		}
		out.Session.Preferences = prefs
	}
	return out
}
