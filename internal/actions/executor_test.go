package actions

import (
	"context"
	"strings"
	"testing"
)

func TestRegistryExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register("reconnect-obs", func(ctx context.Context, params map[string]any) Result {
		if params["issueId"] != "obs-disconnected" {
			t.Errorf("unexpected params: %v", params)
		}
		return Result{Success: true, Message: "ok"}
	})

	res := reg.Execute(context.Background(), "reconnect-obs", map[string]any{"issueId": "obs-disconnected"})
	if !res.Success || res.Message != "ok" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	reg := NewRegistry()
	res := reg.Execute(context.Background(), "missing", nil)
	if res.Success {
		t.Error("unknown action must fail")
	}
	if !strings.Contains(res.Error, "not registered") {
		t.Errorf("unexpected error: %q", res.Error)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register("boom", func(ctx context.Context, params map[string]any) Result {
		panic("handler exploded")
	})

	res := reg.Execute(context.Background(), "boom", nil)
	if res.Success {
		t.Error("panicking handler must yield a failed result")
	}
	if !strings.Contains(res.Error, "handler exploded") {
		t.Errorf("panic value missing from error: %q", res.Error)
	}
}

func TestAvailable(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", func(context.Context, map[string]any) Result { return Result{Success: true} })
	reg.Register("b", func(context.Context, map[string]any) Result { return Result{Success: true} })

	avail := reg.Available()
	if !avail["a"] || !avail["b"] || len(avail) != 2 {
		t.Errorf("unexpected availability: %v", avail)
	}

	// Registering nil removes the action.
	reg.Register("a", nil)
	if reg.Available()["a"] {
		t.Error("expected action removed after nil registration")
	}
}
