// Package actions defines the recovery-action boundary. The monitoring core
// only sees a capability map of named actions; the application layer decides
// what each action actually does (restart a webview, reconnect OBS, release
// the camera device).
package actions

import (
	"context"
	"fmt"
	"sync"
)

// Result is the structured outcome of one action invocation. Handler errors
// and panics are folded into a failed Result rather than propagated.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler performs one recovery action.
type Handler func(ctx context.Context, params map[string]any) Result

// Executor is the capability map consumed by the issue detector.
type Executor interface {
	// Available reports which action names can currently be executed.
	Available() map[string]bool
	// Execute runs a named action. Unknown names yield a failed Result.
	Execute(ctx context.Context, name string, params map[string]any) Result
}

// ============================================================================
// REGISTRY
// ============================================================================

// Registry is the default Executor: a mutable map of named handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register adds or replaces a handler. Registering nil removes the action.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, name)
		return
	}
	r.handlers[name] = h
}

// Available reports which action names are currently registered.
func (r *Registry) Available() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.handlers))
	for name := range r.handlers {
		out[name] = true
	}
	return out
}

// Execute runs the named action, converting a handler panic into a failed
// Result so a broken recovery path cannot take the monitor down with it.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (res Result) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("action %q not registered", name)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Success: false, Error: fmt.Sprintf("action %q panicked: %v", name, rec)}
		}
	}()
	return h(ctx, params)
}
