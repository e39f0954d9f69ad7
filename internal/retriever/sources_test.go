package retriever

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

type testLogger struct{}

func (testLogger) Printf(string, ...any) {}

func buildICYBody(title string) []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte(0) // first audio byte skipped
	meta := fmt.Sprintf("StreamTitle='%s';", title)
	for len(meta)%16 != 0 {
		meta += "\x00"
	}
	buf.WriteByte(byte(len(meta) / 16))
	buf.WriteString(meta)
	return buf.Bytes()
}

func TestICYFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			t.Error("Icy-MetaData header missing")
		}
		w.Header().Set("icy-metaint", "1")
		w.Header().Set("icy-name", "Rock Paradise")
		w.Write(buildICYBody("Orbital - Halcyon"))
	}))
	defer srv.Close()

	src := newICYSource(srv.Client(), testLogger{})
	snap, err := src.Fetch(context.Background(), catalog.Station{Name: "Rock", URL: srv.URL + "/rock"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Orbital" || snap.Title != "Halcyon" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestICYFetchFollowsRedirect(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("icy-metaint", "1")
		w.Write(buildICYBody("A - B"))
	}))
	defer target.Close()

	redir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/stream", http.StatusFound)
	}))
	defer redir.Close()

	// nil client uses the non-following default, so the manual hop is exercised
	src := newICYSource(nil, testLogger{})
	snap, err := src.Fetch(context.Background(), catalog.Station{Name: "X", URL: redir.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Title != "B" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestICYFetchNoMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("flac stream without icy"))
	}))
	defer srv.Close()

	src := newICYSource(srv.Client(), testLogger{})
	_, err := src.Fetch(context.Background(), catalog.Station{Name: "X", URL: srv.URL})
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindParseFailure {
		t.Fatalf("want ParseFailure, got %v", err)
	}
}

func TestICYFetchUsesMetadataURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rock-128" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("icy-metaint", "1")
		w.Write(buildICYBody("C - D"))
	}))
	defer srv.Close()

	src := newICYSource(srv.Client(), testLogger{})
	st := catalog.Station{Name: "X", URL: srv.URL + "/rock-flac", MetadataURL: srv.URL + "/rock-128"}
	snap, err := src.Fetch(context.Background(), st)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "C" || snap.Title != "D" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestIcecastFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status-json.xsl" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"icestats":{"source":{"title":"Foo - Bar","server_name":"Station"}}}`)
	}))
	defer srv.Close()

	src := newIcecastSource(srv.Client(), testLogger{})
	snap, err := src.Fetch(context.Background(), catalog.Station{Name: "X", URL: srv.URL + "/stream"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Foo" || snap.Title != "Bar" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestIcecastFetchSourceArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"icestats":{"source":[{"title":""},{"title":"A - B"}]}}`)
	}))
	defer srv.Close()

	src := newIcecastSource(srv.Client(), testLogger{})
	st := catalog.Station{Name: "X", URL: srv.URL + "/stream", MetadataURL: srv.URL + "/status-json.xsl"}
	snap, err := src.Fetch(context.Background(), st)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "A" || snap.Title != "B" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestIcecastFetchBrokenJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{broken"))
	}))
	defer srv.Close()

	src := newIcecastSource(srv.Client(), testLogger{})
	_, err := src.Fetch(context.Background(), catalog.Station{Name: "X", URL: srv.URL + "/stream"})
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindParseFailure {
		t.Fatalf("want ParseFailure, got %v", err)
	}
}

func TestSomaFMFetchSongs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/songs/groovesalad.json" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"songs":[{"title":"Halcyon","artist":"Orbital","album":"x"},{"title":"old"}]}`)
	}))
	defer srv.Close()

	src := newSomaFMSource(srv.Client(), testLogger{})
	src.base = srv.URL
	snap, err := src.Fetch(context.Background(), catalog.Station{Name: "GS", URL: "https://ice.somafm.com/groovesalad"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Orbital" || snap.Title != "Halcyon" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSomaFMFetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"title":"T","artist":"A"}]`)
	}))
	defer srv.Close()

	src := newSomaFMSource(srv.Client(), testLogger{})
	st := catalog.Station{Name: "GS", URL: "https://ice.somafm.com/groovesalad", MetadataURL: srv.URL + "/songs/groovesalad.json"}
	snap, err := src.Fetch(context.Background(), st)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "A" || snap.Title != "T" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSomaFMFallsBackToChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/songs/groovesalad.json":
			io.WriteString(w, `{"songs":[]}`)
		case "/channels.json":
			io.WriteString(w, `{"channels":[{"id":"groovesalad","lastPlaying":"Boards of Canada - Olson"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := newSomaFMSource(srv.Client(), testLogger{})
	src.base = srv.URL
	snap, err := src.Fetch(context.Background(), catalog.Station{Name: "GS", URL: "https://ice.somafm.com/groovesalad"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Boards of Canada" || snap.Title != "Olson" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestScrapeFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<div class="header">Menu</div>
			<div id="nowplaying"><span>Aphex Twin</span> - <span>Xtal</span></div>
		</body></html>`)
	}))
	defer srv.Close()

	src := newScrapeSource(srv.Client(), testLogger{})
	st := catalog.Station{Name: "X", URL: "http://stream", MetadataURL: srv.URL + "/now"}
	snap, err := src.Fetch(context.Background(), st)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Aphex Twin" || snap.Title != "Xtal" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestScrapeFetchClassSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p class="big current-track">Plaid - Eyen</p></body></html>`)
	}))
	defer srv.Close()

	src := newScrapeSource(srv.Client(), testLogger{})
	st := catalog.Station{Name: "X", URL: "http://stream", MetadataURL: srv.URL}
	snap, err := src.Fetch(context.Background(), st)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Plaid" || snap.Title != "Eyen" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestScrapeFetchNoElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>nothing here</p></body></html>`)
	}))
	defer srv.Close()

	src := newScrapeSource(srv.Client(), testLogger{})
	st := catalog.Station{Name: "X", URL: "http://stream", MetadataURL: srv.URL}
	_, err := src.Fetch(context.Background(), st)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindParseFailure {
		t.Fatalf("want ParseFailure, got %v", err)
	}
}

func TestFetchTimeoutClassified(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	src := newIcecastSource(slow.Client(), testLogger{})
	st := catalog.Station{Name: "X", URL: slow.URL + "/stream"}
	_, err := src.Fetch(ctx, st)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindTimeout {
		t.Fatalf("want Timeout, got %v", err)
	}
}

type fakeTags struct {
	title, artist string
	err           error
}

func (f fakeTags) NowPlaying() (string, string, error) { return f.title, f.artist, f.err }

func TestBackendSource(t *testing.T) {
	st := catalog.Station{Name: "X", URL: "http://stream"}

	snap, err := NewBackendSource(fakeTags{title: "Underworld - Rez"}).Fetch(context.Background(), st)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if snap.Artist != "Underworld" || snap.Title != "Rez" {
		t.Fatalf("combined tag not split: %+v", snap)
	}

	snap, err = NewBackendSource(fakeTags{title: "Rez", artist: "Underworld"}).Fetch(context.Background(), st)
	if err != nil || snap.Artist != "Underworld" || snap.Title != "Rez" {
		t.Fatalf("separate tags mangled: %+v err=%v", snap, err)
	}

	snap, err = NewBackendSource(nil).Fetch(context.Background(), st)
	if err != nil || snap.Known() {
		t.Fatalf("nil reader should report unknown, got %+v err=%v", snap, err)
	}

	_, err = NewBackendSource(fakeTags{err: errors.New("engine gone")}).Fetch(context.Background(), st)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindUnreachable {
		t.Fatalf("want Unreachable, got %v", err)
	}
}
