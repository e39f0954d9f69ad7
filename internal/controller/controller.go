// Package controller owns the playback session: current station, volume,
// and the monitor lifecycle behind the command surface exposed to the host
// (voice actions, CLI).
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grafana/dskit/services"

	"github.com/edward-ap/radiowatch/internal/announce"
	"github.com/edward-ap/radiowatch/internal/catalog"
	"github.com/edward-ap/radiowatch/internal/monitor"
	"github.com/edward-ap/radiowatch/internal/playback"
	"github.com/edward-ap/radiowatch/internal/retriever"
)

// Config carries the controller's tunables.
type Config struct {
	// DefaultStation is played when Play is called without a name.
	DefaultStation string
	// DefaultVolume is the level assumed before any SetVolume command.
	DefaultVolume int
	// CommandLockHold is how long each command defers announcements.
	CommandLockHold time.Duration
	// Monitor configures every monitor the controller starts.
	Monitor monitor.Config
}

// Status is the session snapshot reported to the host.
type Status struct {
	Station              string
	IsPlaying            bool
	Volume               int
	AnnouncementsEnabled bool
	CurrentTrack         string
}

// Controller serializes all playback commands behind one mutex: each command
// finishes its lock/state mutation before the next begins. Monitors are
// stopped with a join before any station swap, so a poll cycle for the old
// station can never outlive the switch.
type Controller struct {
	cfg        Config
	catalog    *catalog.Catalog
	registry   *retriever.Registry
	backend    playback.Backend
	dispatcher *announce.Dispatcher
	lock       *announce.CommandLock
	logger     *slog.Logger

	mu          sync.Mutex
	current     *catalog.Station
	lastStation string
	volume      int
	playing     bool
	mon         *monitor.Monitor

	// written by monitor callbacks, read by Status
	trackMu      sync.Mutex
	currentTrack string
}

// New wires a controller. The dispatcher must already be running.
func New(cfg Config, cat *catalog.Catalog, reg *retriever.Registry, backend playback.Backend,
	disp *announce.Dispatcher, lock *announce.CommandLock, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandLockHold <= 0 {
		cfg.CommandLockHold = 1500 * time.Millisecond
	}
	vol := cfg.DefaultVolume
	if vol < 0 || vol > 100 {
		vol = 70
	}
	return &Controller{
		cfg:         cfg,
		catalog:     cat,
		registry:    reg,
		backend:     backend,
		dispatcher:  disp,
		lock:        lock,
		logger:      logger.With("module", "controller"),
		volume:      vol,
		lastStation: cfg.DefaultStation,
	}
}

// Play starts (or restarts) playback. An empty name falls back to the
// configured default or the last played station.
func (c *Controller) Play(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock.Hold(c.cfg.CommandLockHold)

	if strings.TrimSpace(name) == "" {
		name = c.lastStation
	}
	if strings.TrimSpace(name) == "" {
		return "", ErrNoStation
	}
	return c.playLocked(ctx, name)
}

// ChangeStation switches to another station; the name is mandatory.
func (c *Controller) ChangeStation(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock.Hold(c.cfg.CommandLockHold)

	if strings.TrimSpace(name) == "" {
		return "", ErrNoStation
	}
	return c.playLocked(ctx, name)
}

func (c *Controller) playLocked(ctx context.Context, name string) (string, error) {
	st, ok := c.catalog.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}

	prevStation := c.current
	prevPlaying := c.playing

	c.stopMonitorLocked(ctx)

	if err := c.backend.Open(st.URL); err != nil {
		c.rollbackLocked(ctx, prevStation, prevPlaying)
		return "", &BackendError{Op: "open", Err: err}
	}

	c.current = &st
	c.lastStation = st.Name
	c.playing = true
	c.setCurrentTrack("")
	c.dispatcher.Reset()

	if err := c.startMonitorLocked(ctx, st); err != nil {
		// playback itself succeeded; run without announcements rather
		// than failing the command
		c.logger.Error("monitor failed to start", "station", st.Name, "err", err)
	}

	c.logger.Info("station started", "station", st.Name)
	return "Playing " + st.Name, nil
}

// Stop halts playback and idles the monitor. Stopping an idle radio is not
// an error.
func (c *Controller) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock.Hold(c.cfg.CommandLockHold)

	c.stopMonitorLocked(ctx)
	if err := c.backend.Stop(); err != nil {
		return "", &BackendError{Op: "stop", Err: err}
	}
	c.current = nil
	c.playing = false
	c.setCurrentTrack("")

	c.logger.Info("station stopped")
	return "Radio stopped.", nil
}

// SetVolume applies an absolute level. Out-of-range input is a validation
// error and leaves the level untouched.
func (c *Controller) SetVolume(v int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock.Hold(c.cfg.CommandLockHold)

	if v < 0 || v > 100 {
		return "", &VolumeError{Got: v}
	}
	if err := c.backend.SetVolume(v); err != nil {
		return "", &BackendError{Op: "set volume", Err: err}
	}
	c.volume = v
	return fmt.Sprintf("Volume set to %d", v), nil
}

// SetAnnouncementsEnabled toggles track callouts.
func (c *Controller) SetAnnouncementsEnabled(enabled bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock.Hold(c.cfg.CommandLockHold)

	c.dispatcher.SetEnabled(enabled)
	if enabled {
		return "Announcements enabled.", nil
	}
	return "Announcements disabled.", nil
}

// Status reports the current session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		IsPlaying:            c.playing,
		Volume:               c.volume,
		AnnouncementsEnabled: c.dispatcher.Enabled(),
	}
	if c.current != nil {
		st.Station = c.current.Name
	}
	c.mu.Unlock()

	c.trackMu.Lock()
	st.CurrentTrack = c.currentTrack
	c.trackMu.Unlock()
	return st
}

// Shutdown idles the monitor and stops the backend; used on process exit.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopMonitorLocked(ctx)
	if c.playing {
		_ = c.backend.Stop()
		c.playing = false
		c.current = nil
	}
}

func (c *Controller) startMonitorLocked(ctx context.Context, st catalog.Station) error {
	src := c.registry.Resolve(st)
	m := monitor.New(st, src, c.cfg.Monitor, c.logger, func(ev monitor.Change) {
		c.setCurrentTrack(ev.Snapshot.String())
		c.dispatcher.OnTrackChanged(ev)
	})
	if err := services.StartAndAwaitRunning(ctx, m); err != nil {
		return err
	}
	c.mon = m
	return nil
}

// stopMonitorLocked cancels the running monitor and joins it; after this
// returns no callback for the old station can fire.
func (c *Controller) stopMonitorLocked(ctx context.Context) {
	if c.mon == nil {
		return
	}
	if err := services.StopAndAwaitTerminated(ctx, c.mon); err != nil {
		c.logger.Error("monitor did not stop cleanly", "err", err)
	}
	c.mon = nil
}

// rollbackLocked restores the pre-command session after a backend failure.
func (c *Controller) rollbackLocked(ctx context.Context, prev *catalog.Station, wasPlaying bool) {
	if !wasPlaying || prev == nil {
		c.current = nil
		c.playing = false
		c.setCurrentTrack("")
		return
	}
	if err := c.backend.Open(prev.URL); err != nil {
		c.logger.Error("rollback reopen failed", "station", prev.Name, "err", err)
		c.current = nil
		c.playing = false
		c.setCurrentTrack("")
		return
	}
	c.current = prev
	c.playing = true
	if err := c.startMonitorLocked(ctx, *prev); err != nil {
		c.logger.Error("rollback monitor restart failed", "station", prev.Name, "err", err)
	}
}

func (c *Controller) setCurrentTrack(s string) {
	c.trackMu.Lock()
	c.currentTrack = s
	c.trackMu.Unlock()
}
