package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK      = "ok"
	resultUnknown = "unknown"
	resultError   = "error"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radiowatch",
		Subsystem: "monitor",
		Name:      "polls_total",
		Help:      "Metadata poll cycles by result.",
	}, []string{"result"})

	trackChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiowatch",
		Subsystem: "monitor",
		Name:      "track_changes_total",
		Help:      "Genuine track transitions observed.",
	})
)
