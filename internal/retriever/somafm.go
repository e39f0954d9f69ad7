package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// somafmBase is the public SomaFM API host.
const somafmBase = "https://somafm.com"

// somafmSource asks the SomaFM song API for the most recent track of a
// channel. The channel id is derived from the stream mount
// ("https://ice.somafm.com/groovesalad" -> "groovesalad") unless the station
// sets MetadataURL to a full songs endpoint.
type somafmSource struct {
	client *http.Client
	logger Logger
	base   string
}

func newSomaFMSource(client *http.Client, log Logger) *somafmSource {
	return &somafmSource{client: client, logger: log, base: somafmBase}
}

func (s *somafmSource) Fetch(ctx context.Context, st catalog.Station) (Snapshot, error) {
	songsURL := strings.TrimSpace(st.MetadataURL)
	channel := mountName(st.URL)
	if songsURL == "" {
		if channel == "" {
			return Snapshot{}, parseError("somafm "+st.URL, errors.New("cannot derive channel id"))
		}
		songsURL = fmt.Sprintf("%s/songs/%s.json", s.base, channel)
	}

	snap, err := s.fetchSongs(ctx, songsURL)
	if err == nil {
		return snap, nil
	}
	var rerr *Error
	if errors.As(err, &rerr) && rerr.Kind != KindParseFailure {
		return Snapshot{}, err
	}

	// The songs feed lags for a few stations; the channel directory carries
	// a lastPlaying string we can fall back to.
	if channel != "" {
		if snap, cerr := s.fetchChannels(ctx, channel); cerr == nil {
			return snap, nil
		}
	}
	return Snapshot{}, err
}

type somaSong struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

func (s *somafmSource) fetchSongs(ctx context.Context, songsURL string) (Snapshot, error) {
	body, err := s.get(ctx, songsURL)
	if err != nil {
		return Snapshot{}, err
	}

	// The feed is usually {"songs":[...]} but has historically also been a
	// bare array; accept both.
	var wrapped struct {
		Songs []somaSong `json:"songs"`
	}
	var songs []somaSong
	if jerr := json.Unmarshal(body, &wrapped); jerr == nil && len(wrapped.Songs) > 0 {
		songs = wrapped.Songs
	} else if jerr := json.Unmarshal(body, &songs); jerr != nil {
		return Snapshot{}, parseError("somafm "+songsURL, jerr)
	}
	if len(songs) == 0 {
		return Snapshot{}, parseError("somafm "+songsURL, errors.New("empty song list"))
	}

	first := songs[0]
	if strings.TrimSpace(first.Title) == "" {
		return Snapshot{}, parseError("somafm "+songsURL, errors.New("song without title"))
	}
	return Snapshot{
		Title:     fixMojibake(first.Title),
		Artist:    fixMojibake(first.Artist),
		FetchedAt: time.Now(),
	}, nil
}

func (s *somafmSource) fetchChannels(ctx context.Context, channel string) (Snapshot, error) {
	chURL := s.base + "/channels.json"
	body, err := s.get(ctx, chURL)
	if err != nil {
		return Snapshot{}, err
	}

	var listing struct {
		Channels []struct {
			ID          string `json:"id"`
			LastPlaying string `json:"lastPlaying"`
		} `json:"channels"`
	}
	if jerr := json.Unmarshal(body, &listing); jerr != nil {
		return Snapshot{}, parseError("somafm "+chURL, jerr)
	}
	for _, ch := range listing.Channels {
		if ch.ID != channel || strings.TrimSpace(ch.LastPlaying) == "" {
			continue
		}
		artist, title := SplitTitle(fixMojibake(ch.LastPlaying))
		return Snapshot{Title: title, Artist: artist, FetchedAt: time.Now()}, nil
	}
	return Snapshot{}, parseError("somafm "+chURL, fmt.Errorf("channel %q not listed", channel))
}

func (s *somafmSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, parseError("somafm "+rawURL, err)
	}
	req.Header.Set("User-Agent", defaultUA)

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError("somafm "+rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, transportError("somafm "+rawURL, fmt.Errorf("status %d", resp.StatusCode))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportError("somafm "+rawURL, err)
	}
	return b, nil
}
