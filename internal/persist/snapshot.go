package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Persisted file names, relative to the engine's directory.
const (
	StateFileName     = "system-state.json"
	CrashFileName     = "crash-recovery.json"
	EmergencyFileName = "emergency-state.json"
	ConfigFileName    = "system-config.json"

	backupPrefix = "backup-"
	backupSuffix = "-" + StateFileName

	// Millisecond precision keeps backups taken within the same
	// wall-clock second from colliding on the same filename.
	backupStampLayout = "2006-01-02T15-04-05.000Z"
)

// SchemaVersion is the current snapshot schema version.
const SchemaVersion = 1

// Snapshot is the persisted state artifact. State is opaque to the engine.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
	ProcessID int             `json:"processId"`
	UptimeSec float64         `json:"uptimeSec"`
	State     json.RawMessage `json:"state"`
	Metadata  Metadata        `json:"metadata"`
}

// Metadata records where and when a snapshot was taken.
type Metadata struct {
	SavedAt   time.Time `json:"savedAt"`
	Platform  string    `json:"platform"`
	Arch      string    `json:"arch"`
	GoVersion string    `json:"goVersion"`
	Hostname  string    `json:"hostname"`
}

func newMetadata(now time.Time) Metadata {
	host, _ := os.Hostname()
	return Metadata{
		SavedAt:   now,
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
		Hostname:  host,
	}
}

// validate checks the required snapshot fields. A snapshot failing this is
// treated as InvalidFormat regardless of how it parsed.
func (s *Snapshot) validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidFormat)
	}
	if s.Version <= 0 {
		return fmt.Errorf("%w: missing version", ErrInvalidFormat)
	}
	if len(s.State) == 0 {
		return fmt.Errorf("%w: missing state object", ErrInvalidFormat)
	}
	return nil
}

// parseSnapshot reads and validates one snapshot file.
func parseSnapshot(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
