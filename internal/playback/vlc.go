package playback

import (
	"fmt"
	"strings"
	"sync"

	vlc "github.com/adrg/libvlc-go/v3"
)

// VLC drives playback through libVLC. Every libVLC invocation is serialized
// behind one mutex (the C side is not reentrant-safe for our use), while a
// second mutex guards the Go-side fields.
type VLC struct {
	p      *vlc.Player
	media  *vlc.Media
	volume int

	// single lock guarding all C/libVLC invocations
	vlcMu sync.Mutex
	// internal lock for Go fields (not for libVLC)
	mu sync.Mutex

	parseTimeout int // ms
}

// NewVLC constructs the backend but does not initialize libVLC. Call Init
// before Open.
func NewVLC() *VLC {
	return &VLC{
		volume:       70,
		parseTimeout: 4000,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Init configures libVLC with stream-friendly caching arguments and applies
// the initial volume.
func (b *VLC) Init(volume int) error {
	b.vlcMu.Lock()
	err := vlc.Init(
		"--no-video",
		"--no-color",
		"--network-caching=1500", // 1.5s for HLS/stream buffering
		"--live-caching=1500",
		"--http-reconnect",
	)
	b.vlcMu.Unlock()
	if err != nil {
		return fmt.Errorf("libvlc init failed: %w", err)
	}

	b.vlcMu.Lock()
	player, err := vlc.NewPlayer()
	b.vlcMu.Unlock()
	if err != nil {
		b.vlcMu.Lock()
		vlc.Release()
		b.vlcMu.Unlock()
		return fmt.Errorf("new vlc player failed: %w", err)
	}
	b.p = player

	b.mu.Lock()
	b.volume = clamp(volume, 0, 100)
	v := b.volume
	b.mu.Unlock()

	b.vlcMu.Lock()
	_ = b.p.SetVolume(v)
	b.vlcMu.Unlock()
	return nil
}

// Open loads the stream URL into a fresh media instance and starts playback.
// Media parsing runs in the background so NowPlaying becomes safe to call
// shortly after.
func (b *VLC) Open(url string) error {
	b.vlcMu.Lock()
	if b.p == nil {
		b.vlcMu.Unlock()
		return fmt.Errorf("vlc player not initialized")
	}
	if b.media != nil {
		b.media.Release()
		b.media = nil
	}

	// trim whitespace/CRLF that may sneak in from config files
	u := strings.TrimSpace(url)

	m, err := vlc.NewMediaFromURL(u)
	if err != nil {
		b.vlcMu.Unlock()
		return fmt.Errorf("new media from url failed: %w", err)
	}

	// enable metadata, robust demux, and sane caching/reconnect
	_ = m.AddOptions(
		":metadata-network-access=1",
		":icy-metadata=1",
		":demux=any",
		":network-caching=1500",
		":live-caching=1500",
		":http-reconnect",
	)

	if err := b.p.SetMedia(m); err != nil {
		m.Release()
		b.vlcMu.Unlock()
		return fmt.Errorf("set media failed: %w", err)
	}
	b.media = m

	err = b.p.Play()
	b.vlcMu.Unlock()
	if err != nil {
		return fmt.Errorf("play failed: %w", err)
	}

	// Ask libVLC to parse media before metadata reads for safety; reading a
	// Meta string before parse completes risks an invalid pointer.
	go func(mm *vlc.Media, timeout int) {
		_ = mm.ParseWithOptions(timeout, vlc.MediaParseNetwork, vlc.MediaFetchNetwork)
	}(m, b.parseTimeout)

	return nil
}

// Stop halts playback. The media instance is kept so late NowPlaying calls
// stay valid until the next Open.
func (b *VLC) Stop() error {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p == nil {
		return nil
	}
	return b.p.Stop()
}

// SetVolume clamps and applies an absolute volume level (0-100).
func (b *VLC) SetVolume(v int) error {
	v = clamp(v, 0, 100)
	b.vlcMu.Lock()
	var err error
	if b.p != nil {
		err = b.p.SetVolume(v)
	}
	b.vlcMu.Unlock()
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.volume = v
	b.mu.Unlock()
	return nil
}

// Volume returns the last applied level.
func (b *VLC) Volume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// NowPlaying reads the engine's metadata tags once parsing has completed.
// Streams without tags yield empty strings, not an error.
func (b *VLC) NowPlaying() (string, string, error) {
	b.vlcMu.Lock()
	media := b.media
	b.vlcMu.Unlock()
	if media == nil {
		return "", "", nil
	}

	// Meta is only safe to access after parsing is DONE
	status, err := media.ParseStatus()
	if err != nil || status != vlc.MediaParseDone {
		return "", "", nil
	}

	var now, title, artist string
	b.vlcMu.Lock()
	now, _ = media.Meta(vlc.MediaNowPlaying)
	if now == "" {
		title, _ = media.Meta(vlc.MediaTitle)
		artist, _ = media.Meta(vlc.MediaArtist)
	}
	b.vlcMu.Unlock()

	if now != "" {
		return now, "", nil
	}
	combined := strings.Trim(strings.TrimSpace(artist+" - "+title), " -")
	if combined == "" || combined == "-" {
		return "", "", nil
	}
	return title, artist, nil
}

// Release frees VLC resources.
func (b *VLC) Release() {
	b.vlcMu.Lock()
	if b.p != nil {
		_ = b.p.Stop()
		b.p.Release()
		b.p = nil
	}
	if b.media != nil {
		b.media.Release()
		b.media = nil
	}
	vlc.Release()
	b.vlcMu.Unlock()
}
