package announce

import (
	"sync"
	"time"
)

// CommandLock marks a short window after a playback command during which
// announcements must yield, so a track callout never talks over the
// response to the command itself. Commands hold it, the dispatcher
// consults it.
type CommandLock struct {
	mu        sync.Mutex
	heldUntil time.Time
}

// Hold extends the lock to cover d from now. A shorter hold never shrinks
// an existing longer one.
func (l *CommandLock) Hold(d time.Duration) {
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.heldUntil) {
		l.heldUntil = until
	}
	l.mu.Unlock()
}

// Held reports whether the lock covers the given instant.
func (l *CommandLock) Held(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Before(l.heldUntil)
}

// HeldUntil returns the current expiry instant.
func (l *CommandLock) HeldUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heldUntil
}
