// Package monitor polls a station's metadata source on an adaptive schedule
// and turns genuine title transitions into change events.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/grafana/dskit/services"

	"github.com/edward-ap/radiowatch/internal/catalog"
	"github.com/edward-ap/radiowatch/internal/retriever"
)

// Mode is the polling cadence the monitor is currently in. An unbound
// monitor (none constructed, or stopped) is the idle state.
type Mode int

const (
	// ModeLazy polls at the relaxed interval.
	ModeLazy Mode = iota
	// ModeActive polls at the tightened interval around an expected
	// transition.
	ModeActive
)

func (m Mode) String() string {
	if m == ModeActive {
		return "active"
	}
	return "lazy"
}

// failureReportThreshold is how many consecutive fetch failures warrant a
// log line. Polling continues regardless.
const failureReportThreshold = 3

// Config carries the tunable polling thresholds. The streak/interval values
// are guesses about source freshness, so they are configuration rather than
// constants.
type Config struct {
	LazyInterval   time.Duration
	ActiveInterval time.Duration
	FetchTimeout   time.Duration
	// StreakToActive is how many consecutive identical titles switch the
	// monitor to active polling.
	StreakToActive int
}

func (c Config) withDefaults() Config {
	if c.LazyInterval <= 0 {
		c.LazyInterval = 20 * time.Second
	}
	if c.ActiveInterval <= 0 {
		c.ActiveInterval = 5 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.StreakToActive <= 0 {
		c.StreakToActive = 2
	}
	return c
}

// Change is emitted once per genuine title transition. Emission is the
// monitor's only externally observable side effect.
type Change struct {
	Station  catalog.Station
	Snapshot retriever.Snapshot
}

// Monitor watches exactly one station through one source. It is a dskit
// service: start it with services.StartAndAwaitRunning and switch stations
// by stopping it (StopAndAwaitTerminated joins the poll loop, so a late
// fetch for the old station can never leak into the new one) and starting a
// fresh Monitor.
//
// All mutable state below the service handle is owned by the poll loop
// goroutine; nothing else reads or writes it.
type Monitor struct {
	services.Service

	cfg      Config
	station  catalog.Station
	source   retriever.Source
	logger   *slog.Logger
	onChange func(Change)

	mode      Mode
	lastTitle string // normalized form of the last known title
	streak    int    // consecutive polls that returned lastTitle
	changed   bool   // a change event has been emitted since start
	failures  int    // consecutive fetch failures
}

// New builds a monitor bound to one station and source. onChange is invoked
// from the poll loop goroutine, in emission order.
func New(st catalog.Station, src retriever.Source, cfg Config, logger *slog.Logger, onChange func(Change)) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:      cfg.withDefaults(),
		station:  st,
		source:   src,
		logger:   logger.With("module", "monitor", "station", st.Name),
		onChange: onChange,
		mode:     ModeLazy,
	}
	m.Service = services.NewBasicService(nil, m.running, m.stopping)
	return m
}

// Station returns the station this monitor is bound to.
func (m *Monitor) Station() catalog.Station { return m.station }

func (m *Monitor) running(ctx context.Context) error {
	m.logger.Info("monitor started", "retriever", m.station.Retriever)
	for {
		m.poll(ctx)
		timer := time.NewTimer(m.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (m *Monitor) stopping(_ error) error {
	m.logger.Info("monitor stopped")
	return nil
}

func (m *Monitor) interval() time.Duration {
	if m.mode == ModeActive {
		return m.cfg.ActiveInterval
	}
	return m.cfg.LazyInterval
}

// poll performs one fetch-and-compare cycle. Retrieval errors are contained
// here: they never stop the monitor and never mutate comparison state.
func (m *Monitor) poll(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	snap, err := m.source.Fetch(fctx, m.station)
	cancel()

	if ctx.Err() != nil {
		// the station was stopped or switched while the fetch was in
		// flight; whatever came back belongs to a dead binding
		return
	}

	if err != nil {
		pollsTotal.WithLabelValues(resultError).Inc()
		m.failures++
		if m.failures == failureReportThreshold {
			m.logger.Warn("metadata source failing", "failures", m.failures, "err", err)
		}
		return
	}
	m.failures = 0

	if !snap.Known() {
		// an unknown title is not a transition in either direction; the
		// previous known title stays authoritative
		pollsTotal.WithLabelValues(resultUnknown).Inc()
		return
	}
	pollsTotal.WithLabelValues(resultOK).Inc()

	title := retriever.NormalizeTitle(snap.Title)
	switch {
	case m.lastTitle == "":
		m.emit(snap, title)
	case title == m.lastTitle:
		m.streak++
		if m.mode == ModeLazy && m.changed && m.streak >= m.cfg.StreakToActive {
			m.logger.Debug("same title repeating, tightening poll cadence", "streak", m.streak)
			m.mode = ModeActive
		}
	default:
		m.emit(snap, title)
	}
}

// emit records the new title, resets to lazy polling, and delivers the
// change event.
func (m *Monitor) emit(snap retriever.Snapshot, normTitle string) {
	m.lastTitle = normTitle
	m.streak = 1
	m.changed = true
	m.mode = ModeLazy
	trackChangesTotal.Inc()
	m.logger.Info("track changed", "track", snap.String())
	if m.onChange != nil {
		m.onChange(Change{Station: m.station, Snapshot: snap})
	}
}
