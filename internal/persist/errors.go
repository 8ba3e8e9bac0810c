package persist

import "errors"

var (
	// ErrNotFound means no persisted state exists. First run, not a failure.
	ErrNotFound = errors.New("no persisted state found")

	// ErrInvalidFormat means a persisted file exists but is unparseable or
	// missing required fields.
	ErrInvalidFormat = errors.New("persisted state has invalid format")

	// ErrRestoreFailed means the canonical file and every backup failed
	// validation. The caller must not proceed as if state were empty.
	ErrRestoreFailed = errors.New("state restore failed: no valid snapshot or backup")
)
