package retriever

import (
	"context"
	"strings"
	"time"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// TagReader is the slice of the playback backend the fallback source needs:
// whatever stream tags the media engine has already parsed.
type TagReader interface {
	NowPlaying() (title, artist string, err error)
}

// backendSource reads metadata tags from the embedded player backend. It is
// the universal fallback: fast and free, but blind on streams the backend
// cannot parse, where it simply reports unknown.
type backendSource struct {
	tags TagReader
}

// NewBackendSource wraps a playback backend as a metadata source. A nil
// reader yields a source that always reports unknown, which lets tools run
// without a media engine attached.
func NewBackendSource(tags TagReader) Source {
	return &backendSource{tags: tags}
}

func (s *backendSource) Fetch(_ context.Context, _ catalog.Station) (Snapshot, error) {
	if s.tags == nil {
		return Snapshot{FetchedAt: time.Now()}, nil
	}
	title, artist, err := s.tags.NowPlaying()
	if err != nil {
		return Snapshot{}, &Error{Kind: KindUnreachable, Op: "backend tags", Err: err}
	}
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if artist == "" && title != "" {
		// engines often deliver a combined "Artist - Title" tag
		artist, title = SplitTitle(title)
	}
	return Snapshot{Title: title, Artist: artist, FetchedAt: time.Now()}, nil
}
