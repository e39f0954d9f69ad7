package retriever

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// icySource opens the stream with Icy-MetaData enabled and reads exactly one
// inline metadata block, then disconnects. The station's MetadataURL may
// point at a lossy sibling mount when the primary stream carries no ICY data.
type icySource struct {
	client *http.Client
	logger Logger
}

func newICYSource(client *http.Client, log Logger) *icySource {
	return &icySource{client: client, logger: log}
}

// maxRedirectHops bounds manual redirect following; automatic following
// would drop the icy-metaint response header on some servers.
const maxRedirectHops = 3

func (s *icySource) Fetch(ctx context.Context, st catalog.Station) (Snapshot, error) {
	target := strings.TrimSpace(st.MetadataURL)
	if target == "" {
		target = st.URL
	}

	for hop := 0; hop <= maxRedirectHops; hop++ {
		snap, redirect, err := s.probe(ctx, target)
		if err != nil {
			return Snapshot{}, err
		}
		if redirect != "" {
			target = redirect
			continue
		}
		return snap, nil
	}
	return Snapshot{}, parseError("icy "+target, errors.New("too many redirects"))
}

func (s *icySource) probe(ctx context.Context, target string) (Snapshot, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Snapshot{}, "", parseError("icy "+target, err)
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", defaultUA)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return Snapshot{}, "", transportError("icy "+target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return Snapshot{}, "", parseError("icy "+target, errors.New("redirect without location"))
		}
		return Snapshot{}, loc, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Snapshot{}, "", transportError("icy "+target, fmt.Errorf("status %d", resp.StatusCode))
	}

	metaInt, err := strconv.Atoi(resp.Header.Get("icy-metaint"))
	if err != nil || metaInt <= 0 {
		return Snapshot{}, "", parseError("icy "+target, errors.New("icy metadata unavailable"))
	}

	// A zero-length block means the title has not rotated in yet; keep
	// reading a few frames before reporting unknown.
	reader := bufio.NewReader(resp.Body)
	const maxBlocks = 4
	for i := 0; i < maxBlocks; i++ {
		raw, err := firstMetaBlock(ctx, reader, metaInt)
		if err == nil {
			artist, title := SplitTitle(fixMojibake(raw))
			return Snapshot{Title: title, Artist: artist, FetchedAt: time.Now()}, "", nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Snapshot{}, "", transportError("icy "+target, err)
		}
	}
	return Snapshot{FetchedAt: time.Now()}, "", nil
}

func (s *icySource) httpClient() *http.Client {
	if s.client != nil {
		return s.client
	}
	return defaultICYClient
}

// defaultICYClient avoids HTTP/2 (ICY servers speak a pre-HTTP dialect) and
// never follows redirects automatically.
var defaultICYClient = &http.Client{
	Transport: &http.Transport{
		ForceAttemptHTTP2: false,
		Proxy:             http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   7 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 7 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS10},
	},
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}
