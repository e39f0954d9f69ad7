package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

// scrapeSource pulls a station's now-playing web page and extracts the track
// text from the first element matching a known id/class. Markup breakage is
// contained to the one station whose page changed.
type scrapeSource struct {
	client *http.Client
	logger Logger
}

func newScrapeSource(client *http.Client, log Logger) *scrapeSource {
	return &scrapeSource{client: client, logger: log}
}

// selectorCandidates are the id/class names stations commonly give their
// now-playing element, in probe order.
var selectorCandidates = []string{"nowplaying", "playing", "current-track", "song-title"}

func (s *scrapeSource) Fetch(ctx context.Context, st catalog.Station) (Snapshot, error) {
	pageURL := strings.TrimSpace(st.MetadataURL)
	if pageURL == "" {
		return Snapshot{}, parseError("scrape "+st.Name, errors.New("station has no now-playing page configured"))
	}

	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Snapshot{}, parseError("scrape "+pageURL, err)
	}
	req.Header.Set("User-Agent", defaultUA)

	resp, err := client.Do(req)
	if err != nil {
		return Snapshot{}, transportError("scrape "+pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Snapshot{}, transportError("scrape "+pageURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Snapshot{}, parseError("scrape "+pageURL, err)
	}

	for _, sel := range selectorCandidates {
		node := findBySelector(doc, sel)
		if node == nil {
			continue
		}
		text := strings.TrimSpace(collapseText(node))
		// very short matches are navigation cruft, not track info
		if len(text) <= 3 {
			continue
		}
		artist, title := SplitTitle(fixMojibake(text))
		return Snapshot{Title: title, Artist: artist, FetchedAt: time.Now()}, nil
	}
	return Snapshot{}, parseError("scrape "+pageURL, errors.New("no now-playing element found"))
}

// findBySelector walks the parse tree for the first element whose id or
// class attribute contains name.
func findBySelector(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key != "id" && attr.Key != "class" {
				continue
			}
			for _, f := range strings.Fields(attr.Val) {
				if strings.EqualFold(f, name) {
					return n
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBySelector(c, name); found != nil {
			return found
		}
	}
	return nil
}

// collapseText concatenates the text content below n, normalising whitespace.
func collapseText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
