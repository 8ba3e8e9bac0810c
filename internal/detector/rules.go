package detector

import (
	"time"

	"vigil/internal/appstate"
)

// heartbeatStaleAfter is how long a loaded webview may go without a
// heartbeat before it is considered stalled.
const heartbeatStaleAfter = 30 * time.Second

// DefaultRules returns the built-in detection rules in registration order.
// Leaf rules read live subsystem state; the trailing meta-rules read the
// issue buckets, which hold the previous tick's results (one-tick lag).
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "camera-device-disconnected",
			Category: "camera",
			Severity: SeverityCritical,
			Condition: func(st appstate.State) bool {
				return st.Camera.Active && !st.Camera.DeviceConnected
			},
			Message:     "virtual camera is active but the device is disconnected",
			Suggestion:  "reconnect the camera device or restart the pipeline",
			Actions:     []string{"reconnect-camera", "restart-pipeline"},
			AutoRecover: true,
		},
		{
			ID:       "camera-permission-denied",
			Category: "camera",
			Severity: SeverityError,
			Condition: func(st appstate.State) bool {
				return st.Camera.Active && !st.Camera.PermissionGranted
			},
			Message:    "camera access has not been granted",
			Suggestion: "grant camera permission in system settings",
		},
		{
			ID:       "camera-low-fps",
			Category: "camera",
			Severity: SeverityWarning,
			Condition: func(st appstate.State) bool {
				return st.Camera.Active && st.Camera.FaceSwapEnabled && st.Camera.FPS > 0 && st.Camera.FPS < 15
			},
			Message:    "face-swap pipeline frame rate dropped below 15 fps",
			Suggestion: "lower the output resolution or disable face swap",
			Actions:    []string{"restart-pipeline"},
		},
		{
			ID:       "obs-disconnected",
			Category: "obs",
			Severity: SeverityError,
			Condition: func(st appstate.State) bool {
				return !st.OBS.Connected && st.OBS.ReconnectAttempts > 0
			},
			Message:     "OBS connection lost",
			Suggestion:  "check that OBS is running and the WebSocket server is enabled",
			Actions:     []string{"reconnect-obs"},
			AutoRecover: true,
		},
		{
			ID:       "window-unresponsive",
			Category: "windows",
			Severity: SeverityError,
			Condition: func(st appstate.State) bool {
				for _, w := range st.Windows {
					if w.Loaded && !w.Responsive {
						return true
					}
				}
				return false
			},
			Message:    "a chat webview stopped responding",
			Suggestion: "reload the affected webview",
			Actions:    []string{"reload-webview"},
		},
		{
			ID:       "window-heartbeat-stale",
			Category: "windows",
			Severity: SeverityWarning,
			Condition: func(st appstate.State) bool {
				for _, w := range st.Windows {
					if w.Loaded && !w.LastHeartbeat.IsZero() && time.Since(w.LastHeartbeat) > heartbeatStaleAfter {
						return true
					}
				}
				return false
			},
			Message:    "a chat webview has not sent a heartbeat recently",
			Suggestion: "the tab may be throttled or hung; reload it if this persists",
			Actions:    []string{"reload-webview"},
		},
		{
			ID:       "multiple-critical-issues",
			Category: "system",
			Severity: SeverityCritical,
			Condition: func(st appstate.State) bool {
				critical := 0
				for bucket, issues := range st.Issues {
					if bucket == "system" {
						continue
					}
					for _, iss := range issues {
						if iss.Severity == SeverityCritical {
							critical++
						}
					}
				}
				return critical >= 2
			},
			Message:    "multiple critical issues are active at once",
			Suggestion: "restart the application if recovery actions do not resolve them",
		},
		{
			ID:       "system-degraded",
			Category: "system",
			Severity: SeverityWarning,
			Condition: func(st appstate.State) bool {
				total := 0
				for bucket, issues := range st.Issues {
					if bucket == "system" {
						continue
					}
					total += len(issues)
				}
				return total >= 4
			},
			Message:    "several subsystems are reporting problems",
			Suggestion: "review active issues; overall stability is degraded",
		},
	}
}
