// Package retriever implements the per-station strategies that fetch
// now-playing track information (player-backend tags, ICY headers, JSON
// APIs, HTML scraping) behind a single Source interface.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// Snapshot is one best-effort observation of the currently playing track.
// An empty Title means the source could not tell what is playing. Snapshots
// are never mutated after creation.
type Snapshot struct {
	Title     string
	Artist    string
	FetchedAt time.Time
}

// Known reports whether the snapshot carries a usable title.
func (s Snapshot) Known() bool { return strings.TrimSpace(s.Title) != "" }

func (s Snapshot) String() string {
	if !s.Known() {
		return "(unknown)"
	}
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

// Source yields a metadata snapshot for a station. Implementations must
// honour ctx cancellation and return a *Error on failure.
type Source interface {
	Fetch(ctx context.Context, st catalog.Station) (Snapshot, error)
}

// Logger is a small logging interface used by sources for non-fatal errors.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// ErrorKind classifies retrieval failures.
type ErrorKind int

const (
	// KindTimeout means the source did not answer within the fetch deadline.
	KindTimeout ErrorKind = iota
	// KindParseFailure means the source answered with data we cannot use.
	KindParseFailure
	// KindUnreachable means the source could not be contacted at all.
	KindUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindParseFailure:
		return "parse failure"
	case KindUnreachable:
		return "unreachable"
	}
	return "unknown"
}

// Error is the failure type every source returns. It is always recovered by
// the monitor, never propagated further.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// parseError builds a ParseFailure for op.
func parseError(op string, err error) *Error {
	return &Error{Kind: KindParseFailure, Op: op, Err: err}
}

// transportError classifies a transport-level failure: context deadlines
// become timeouts, everything else is unreachable.
func transportError(op string, err error) *Error {
	kind := KindUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
