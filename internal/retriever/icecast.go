package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// icecastSource reads Icecast-style /status-json.xsl endpoints on the same
// host as the stream, extracting track info from the source entries.
type icecastSource struct {
	client *http.Client
	logger Logger
}

func newIcecastSource(client *http.Client, log Logger) *icecastSource {
	return &icecastSource{client: client, logger: log}
}

func (s *icecastSource) Fetch(ctx context.Context, st catalog.Station) (Snapshot, error) {
	apiURL := strings.TrimSpace(st.MetadataURL)
	if apiURL == "" {
		var err error
		apiURL, err = buildStatusURL(st.URL)
		if err != nil {
			return Snapshot{}, parseError("icecast "+st.URL, err)
		}
	}

	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Snapshot{}, parseError("icecast "+apiURL, err)
	}
	req.Header.Set("User-Agent", defaultUA)

	resp, err := client.Do(req)
	if err != nil {
		return Snapshot{}, transportError("icecast "+apiURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Snapshot{}, transportError("icecast "+apiURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	var stats iceStats
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	if err := dec.Decode(&stats); err != nil {
		return Snapshot{}, parseError("icecast "+apiURL, err)
	}

	for _, src := range extractSources(stats.IceStats.Source) {
		if strings.TrimSpace(src.Title) == "" {
			continue
		}
		artist, title := SplitTitle(fixMojibake(src.Title))
		return Snapshot{Title: title, Artist: artist, FetchedAt: time.Now()}, nil
	}
	return Snapshot{}, parseError("icecast "+apiURL, errors.New("no source with a title"))
}

// buildStatusURL converts a stream URL ("/live/rock") into its sibling JSON
// endpoint ("/live/status-json.xsl").
func buildStatusURL(streamURL string) (string, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join("/", path.Dir(u.Path), "status-json.xsl")
	return u.String(), nil
}

type iceStats struct {
	IceStats struct {
		Source any `json:"source"`
	} `json:"icestats"`
}

type iceSource struct {
	Title   string `json:"title"`
	Server  string `json:"server_name"`
	IcyName string `json:"icy-name"`
}

// extractSources normalizes Icecast's `source` field which may be a single
// object or an array depending on mount counts.
func extractSources(v any) []iceSource {
	out := []iceSource{}
	switch val := v.(type) {
	case map[string]any:
		b, _ := json.Marshal(val)
		var s iceSource
		if json.Unmarshal(b, &s) == nil {
			out = append(out, s)
		}
	case []any:
		for _, it := range val {
			b, _ := json.Marshal(it)
			var s iceSource
			if json.Unmarshal(b, &s) == nil {
				out = append(out, s)
			}
		}
	}
	return out
}
