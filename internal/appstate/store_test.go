package appstate

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGetReturnsClone(t *testing.T) {
	s := NewStore()
	s.Update(func(st *State) {
		st.CurrentTab = "whatsapp"
		st.Windows["whatsapp"] = WindowState{Loaded: true, Responsive: true}
		st.Session.Preferences = map[string]any{"theme": "dark"}
	})

	got := s.Get()
	got.Windows["whatsapp"] = WindowState{}
	got.Session.Preferences["theme"] = "light"
	got.CurrentTab = "messenger"

	fresh := s.Get()
	if !fresh.Windows["whatsapp"].Loaded {
		t.Error("mutating a returned copy leaked into the store (windows)")
	}
	if fresh.Session.Preferences["theme"] != "dark" {
		t.Error("mutating a returned copy leaked into the store (preferences)")
	}
	if fresh.CurrentTab != "whatsapp" {
		t.Error("mutating a returned copy leaked into the store (scalar)")
	}
}

func TestUpdateNotifiesSubscribers(t *testing.T) {
	s := NewStore()
	calls := 0
	cancel := s.Subscribe(func() { calls++ })

	s.Update(func(st *State) { st.Camera.Active = true })
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}

	cancel()
	s.Update(func(st *State) { st.Camera.Active = false })
	if calls != 1 {
		t.Errorf("expected no notification after cancel, got %d", calls)
	}
}

func TestReplaceIssuesClearsBucket(t *testing.T) {
	s := NewStore()
	s.ReplaceIssues("camera", []Issue{
		{ID: "camera-low-fps", Category: "camera", Severity: "warning"},
	})
	if n := len(s.Get().Issues["camera"]); n != 1 {
		t.Fatalf("expected 1 camera issue, got %d", n)
	}

	s.ReplaceIssues("camera", nil)
	if n := len(s.Get().Issues["camera"]); n != 0 {
		t.Errorf("expected empty camera bucket after replace with nil, got %d", n)
	}
}

func TestReplaceIssuesNotifies(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func() { calls++ })
	s.ReplaceIssues("obs", []Issue{{ID: "obs-disconnected"}})
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	src := NewStore()
	src.Update(func(st *State) {
		st.CurrentTab = "line"
		st.Camera = CameraState{Active: true, DeviceConnected: true, FPS: 30}
		st.OBS = OBSState{Connected: true, CurrentScene: "main"}
		st.Windows["line"] = WindowState{Loaded: true, Responsive: true, LastHeartbeat: time.Now()}
	})

	raw, err := json.Marshal(src.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	dst := NewStore()
	if err := dst.Restore(raw); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	got := dst.Get()
	if got.CurrentTab != "line" {
		t.Errorf("CurrentTab = %q; want %q", got.CurrentTab, "line")
	}
	if !got.Camera.Active || got.Camera.FPS != 30 {
		t.Errorf("camera state not restored: %+v", got.Camera)
	}
	if !got.Windows["line"].Loaded {
		t.Error("window state not restored")
	}
}

func TestRestoreRejectsBadPayload(t *testing.T) {
	s := NewStore()
	s.Update(func(st *State) { st.CurrentTab = "whatsapp" })

	if err := s.Restore(json.RawMessage(`{"currentTab": 42}`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if s.Get().CurrentTab != "whatsapp" {
		t.Error("failed restore must leave the state untouched")
	}
}

func TestRestoreInitializesMaps(t *testing.T) {
	s := NewStore()
	if err := s.Restore(json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	st := s.Get()
	if st.Windows == nil || st.Issues == nil {
		t.Error("restore must leave maps non-nil")
	}
}

func TestRestoreDoesNotNotify(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func() { calls++ })

	if err := s.Restore(json.RawMessage(`{"currentTab":"messenger"}`)); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if calls != 0 {
		t.Errorf("restore must not notify subscribers, got %d calls", calls)
	}
}
