// Package announce turns track-change events into sink invocations, applying
// duplicate suppression and deferring around user-issued commands.
package announce

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/grafana/dskit/services"

	"github.com/edward-ap/radiowatch/internal/monitor"
	"github.com/edward-ap/radiowatch/internal/retriever"
)

// Sink receives announcements. Calls are fire-and-forget from the
// dispatcher's single event goroutine; delivery errors are the sink's own
// business and are never retried.
type Sink interface {
	Announce(title, artist string)
}

// Config carries the dispatcher's debounce tuning.
type Config struct {
	// SuppressionWindow is how long a repeated title stays silent.
	SuppressionWindow time.Duration
	// Enabled is the initial announcements toggle.
	Enabled bool
}

// record remembers the last announcement for duplicate suppression. It is
// superseded, never accumulated.
type record struct {
	normTitle   string
	announcedAt time.Time
}

// Dispatcher consumes track-change events through a buffered channel; a
// single run-loop goroutine owns all suppression state (the record, the
// deferred slot, the expiry timer). It is a dskit service living for the
// whole session.
type Dispatcher struct {
	services.Service

	cfg     Config
	sink    Sink
	lock    *CommandLock
	logger  *slog.Logger
	enabled atomic.Bool

	events chan monitor.Change
	resets chan struct{}

	// run-loop-owned state
	last    record
	pending *monitor.Change // single deferred slot; newer supersedes older
	timer   *time.Timer
}

// New builds a dispatcher delivering to sink, yielding to lock.
func New(cfg Config, sink Sink, lock *CommandLock, logger *slog.Logger) *Dispatcher {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		lock:   lock,
		logger: logger.With("module", "announce"),
		events: make(chan monitor.Change, 16),
		resets: make(chan struct{}, 1),
	}
	d.enabled.Store(cfg.Enabled)
	d.Service = services.NewBasicService(nil, d.running, nil)
	return d
}

// OnTrackChanged hands a change event to the dispatcher. Safe to call from
// any goroutine; if the buffer is full the event is dropped rather than
// stalling the monitor.
func (d *Dispatcher) OnTrackChanged(ev monitor.Change) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("event buffer full, dropping track change", "track", ev.Snapshot.String())
	}
}

// Reset clears suppression state and any deferred announcement. Called on
// station switch so the new station's first track always announces.
func (d *Dispatcher) Reset() {
	select {
	case d.resets <- struct{}{}:
	default:
	}
}

// SetEnabled flips the announcements toggle. While disabled, events still
// update the suppression record so re-enabling does not re-announce the
// track already playing.
func (d *Dispatcher) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Enabled reports the current toggle state.
func (d *Dispatcher) Enabled() bool { return d.enabled.Load() }

func (d *Dispatcher) running(ctx context.Context) error {
	defer d.stopTimer()
	for {
		var timerC <-chan time.Time
		if d.timer != nil {
			timerC = d.timer.C
		}
		select {
		case <-ctx.Done():
			return nil
		case <-d.resets:
			d.last = record{}
			d.pending = nil
			d.stopTimer()
		case ev := <-d.events:
			d.handle(ev, time.Now())
		case <-timerC:
			d.timer = nil
			if d.pending == nil {
				continue
			}
			ev := *d.pending
			d.pending = nil
			// re-run the full policy: the lock may have been extended by
			// another command in the meantime
			d.handle(ev, time.Now())
		}
	}
}

func (d *Dispatcher) handle(ev monitor.Change, now time.Time) {
	normTitle := retriever.NormalizeTitle(ev.Snapshot.Title)

	if normTitle == d.last.normTitle && now.Sub(d.last.announcedAt) < d.cfg.SuppressionWindow {
		suppressedTotal.Inc()
		return
	}

	if d.lock != nil && d.lock.Held(now) {
		d.pending = &ev
		deferredTotal.Inc()
		d.schedule(d.lock.HeldUntil().Sub(now) + 10*time.Millisecond)
		return
	}

	d.last = record{normTitle: normTitle, announcedAt: now}
	if !d.enabled.Load() {
		// record updated above so a later enable does not replay this track
		return
	}
	announcedTotal.Inc()
	d.logger.Info("announcing track", "track", ev.Snapshot.String(), "station", ev.Station.Name)
	d.sink.Announce(ev.Snapshot.Title, ev.Snapshot.Artist)
}

func (d *Dispatcher) schedule(in time.Duration) {
	d.stopTimer()
	if in < time.Millisecond {
		in = time.Millisecond
	}
	d.timer = time.NewTimer(in)
}

func (d *Dispatcher) stopTimer() {
	if d.timer == nil {
		return
	}
	d.timer.Stop()
	d.timer = nil
}
