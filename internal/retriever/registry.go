package retriever

import (
	"net/http"
	"strings"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// Kind names a retriever strategy in the station catalog.
type Kind string

const (
	// KindBackend reads tags from the embedded player backend.
	KindBackend Kind = "backend"
	// KindICY probes the stream for inline ICY metadata.
	KindICY Kind = "icy"
	// KindIcecast polls an Icecast status-json endpoint.
	KindIcecast Kind = "icecast"
	// KindSomaFM polls the SomaFM song API.
	KindSomaFM Kind = "somafm"
	// KindScrape extracts track text from a now-playing web page.
	KindScrape Kind = "scrape"
)

// Registry maps stations to the metadata source that works for them.
// Registration is static configuration; Resolve never fails, the worst case
// is the backend fallback with unknown-heavy metadata.
type Registry struct {
	fallback  Source
	byKind    map[Kind]Source
	byStation map[string]Source
	logger    Logger
}

// NewRegistry builds a registry with every built-in source installed.
// backend becomes both the KindBackend source and the fallback. A nil client
// gives each HTTP source its own suitable default.
func NewRegistry(client *http.Client, backend Source, log Logger) *Registry {
	if log == nil {
		log = nopLogger{}
	}
	if backend == nil {
		backend = NewBackendSource(nil)
	}
	return &Registry{
		fallback: backend,
		byKind: map[Kind]Source{
			KindBackend: backend,
			KindICY:     newICYSource(client, log),
			KindIcecast: newIcecastSource(client, log),
			KindSomaFM:  newSomaFMSource(client, log),
			KindScrape:  newScrapeSource(client, log),
		},
		byStation: make(map[string]Source),
		logger:    log,
	}
}

// RegisterStation installs a station-specific source that wins over the
// station's kind tag.
func (r *Registry) RegisterStation(name string, s Source) {
	if s == nil {
		return
	}
	r.byStation[strings.ToLower(strings.TrimSpace(name))] = s
}

// Resolve picks the source for a station: exact station override first, then
// the catalog kind tag, then the backend fallback.
func (r *Registry) Resolve(st catalog.Station) Source {
	if s, ok := r.byStation[strings.ToLower(st.Name)]; ok {
		return s
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(st.Retriever)))
	if s, ok := r.byKind[kind]; ok && kind != "" {
		return s
	}
	if kind != "" {
		r.logger.Printf("station %q has unknown retriever kind %q, using backend tags", st.Name, st.Retriever)
	}
	return r.fallback
}
