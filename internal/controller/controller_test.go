package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/grafana/dskit/services"

	"github.com/edward-ap/radiowatch/internal/announce"
	"github.com/edward-ap/radiowatch/internal/catalog"
	"github.com/edward-ap/radiowatch/internal/monitor"
	"github.com/edward-ap/radiowatch/internal/playback"
	"github.com/edward-ap/radiowatch/internal/retriever"
)

type fakeBackend struct {
	mu      sync.Mutex
	opens   []string
	failURL string
	stopped int
	volume  int
}

var _ playback.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) Open(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == f.failURL {
		return errors.New("stream unreachable")
	}
	f.opens = append(f.opens, url)
	return nil
}

func (f *fakeBackend) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeBackend) SetVolume(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *fakeBackend) NowPlaying() (string, string, error) { return "", "", nil }
func (f *fakeBackend) Release()                            {}

func (f *fakeBackend) openedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.opens))
	copy(out, f.opens)
	return out
}

// stillSource always reports the same track.
type stillSource struct {
	title, artist string
}

func (s stillSource) Fetch(ctx context.Context, st catalog.Station) (retriever.Snapshot, error) {
	return retriever.Snapshot{Title: s.title, Artist: s.artist, FetchedAt: time.Now()}, nil
}

type chanSink struct{ got chan string }

func (s *chanSink) Announce(title, artist string) {
	select {
	case s.got <- artist + " - " + title:
	default:
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Station{
		{Name: "Alpha FM", URL: "http://alpha.example/stream", Retriever: "icy"},
		{Name: "Beta FM", URL: "http://beta.example/stream", Retriever: "icy"},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func newTestController(t *testing.T, backend playback.Backend, defaultStation string) (*Controller, *chanSink) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	sink := &chanSink{got: make(chan string, 8)}
	lock := &announce.CommandLock{}
	disp := announce.New(announce.Config{SuppressionWindow: time.Minute, Enabled: true}, sink, lock, logger)
	if err := services.StartAndAwaitRunning(context.Background(), disp); err != nil {
		t.Fatalf("start dispatcher: %v", err)
	}
	t.Cleanup(func() {
		_ = services.StopAndAwaitTerminated(context.Background(), disp)
	})

	reg := retriever.NewRegistry(nil, nil, nil)
	for _, name := range []string{"Alpha FM", "Beta FM"} {
		reg.RegisterStation(name, stillSource{title: "Song One", artist: "Artist"})
	}

	c := New(Config{
		DefaultStation:  defaultStation,
		DefaultVolume:   70,
		CommandLockHold: 10 * time.Millisecond,
		Monitor: monitor.Config{
			LazyInterval:   5 * time.Millisecond,
			ActiveInterval: 5 * time.Millisecond,
			FetchTimeout:   50 * time.Millisecond,
		},
	}, testCatalog(t), reg, backend, disp, lock, logger)
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c, sink
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestPlayUnknownStation(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{}, "")
	_, err := c.Play(context.Background(), "No Such FM")
	if !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("want ErrUnknownStation, got %v", err)
	}
	if st := c.Status(); st.IsPlaying {
		t.Fatal("failed play must not report playing")
	}
}

func TestPlayWithoutNameUsesDefault(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{}, "Beta FM")
	msg, err := c.Play(context.Background(), "")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if msg != "Playing Beta FM" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPlayWithoutNameNoDefault(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{}, "")
	if _, err := c.Play(context.Background(), ""); !errors.Is(err, ErrNoStation) {
		t.Fatalf("want ErrNoStation, got %v", err)
	}
}

func TestSetVolumeValidation(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{}, "")

	var ve *VolumeError
	if _, err := c.SetVolume(150); !errors.As(err, &ve) {
		t.Fatalf("want VolumeError, got %v", err)
	}
	if got := c.Status().Volume; got != 70 {
		t.Fatalf("rejected volume must not change state, got %d", got)
	}

	msg, err := c.SetVolume(40)
	if err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if msg != "Volume set to 40" {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := c.Status().Volume; got != 40 {
		t.Fatalf("volume not applied, got %d", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{}, "")
	for i := 0; i < 2; i++ {
		msg, err := c.Stop(context.Background())
		if err != nil {
			t.Fatalf("stop #%d: %v", i+1, err)
		}
		if msg != "Radio stopped." {
			t.Fatalf("unexpected message %q", msg)
		}
	}
	if st := c.Status(); st.IsPlaying || st.Station != "" {
		t.Fatalf("expected idle status, got %+v", st)
	}
}

func TestOpenFailureRollsBack(t *testing.T) {
	backend := &fakeBackend{failURL: "http://beta.example/stream"}
	c, _ := newTestController(t, backend, "")

	if _, err := c.Play(context.Background(), "Alpha FM"); err != nil {
		t.Fatalf("play alpha: %v", err)
	}

	var be *BackendError
	if _, err := c.ChangeStation(context.Background(), "Beta FM"); !errors.As(err, &be) {
		t.Fatalf("want BackendError, got %v", err)
	}

	st := c.Status()
	if !st.IsPlaying || st.Station != "Alpha FM" {
		t.Fatalf("expected rollback to Alpha FM, got %+v", st)
	}
	// alpha opened, beta failed, alpha reopened
	urls := backend.openedURLs()
	want := []string{"http://alpha.example/stream", "http://alpha.example/stream"}
	if len(urls) != len(want) || urls[0] != want[0] || urls[1] != want[1] {
		t.Fatalf("unexpected open sequence %v", urls)
	}
}

func TestCommandsHoldAnnouncementLock(t *testing.T) {
	backend := &fakeBackend{}
	c, _ := newTestController(t, backend, "")
	if _, err := c.Play(context.Background(), "Alpha FM"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !c.lock.Held(time.Now()) {
		t.Fatal("command must leave the lock held")
	}
}

func TestPlayAnnouncesTrack(t *testing.T) {
	c, sink := newTestController(t, &fakeBackend{}, "")
	if _, err := c.Play(context.Background(), "Alpha FM"); err != nil {
		t.Fatalf("play: %v", err)
	}

	select {
	case got := <-sink.got:
		if got != "Artist - Song One" {
			t.Fatalf("unexpected announcement %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no announcement after play")
	}

	st := c.Status()
	if st.CurrentTrack == "" {
		t.Fatal("status must expose current track after a change event")
	}
}

func TestAnnouncementsToggle(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{}, "")
	msg, err := c.SetAnnouncementsEnabled(false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if msg != "Announcements disabled." {
		t.Fatalf("unexpected message %q", msg)
	}
	if c.Status().AnnouncementsEnabled {
		t.Fatal("status must reflect disabled announcements")
	}
}
