package controller

import (
	"errors"
	"fmt"
)

// Validation failures are surfaced to the command caller with an
// explanation; they never leave state half-applied.
var (
	// ErrUnknownStation means the requested station is not in the catalog.
	ErrUnknownStation = errors.New("unknown station")
	// ErrNoStation means play was called without a station and no default
	// is configured.
	ErrNoStation = errors.New("no station specified and no default configured")
)

// VolumeError reports a volume outside the accepted 0-100 range. The level
// is left unchanged.
type VolumeError struct {
	Got int
}

func (e *VolumeError) Error() string {
	return fmt.Sprintf("volume %d out of range 0-100", e.Got)
}

// BackendError wraps a playback-engine failure. Station and monitor state
// are rolled back to their pre-command values before it is returned.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("playback backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
