package announce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	announcedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiowatch",
		Subsystem: "announce",
		Name:      "delivered_total",
		Help:      "Announcements delivered to the sink.",
	})

	suppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiowatch",
		Subsystem: "announce",
		Name:      "suppressed_total",
		Help:      "Track changes dropped as duplicates inside the suppression window.",
	})

	deferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiowatch",
		Subsystem: "announce",
		Name:      "deferred_total",
		Help:      "Announcements deferred while a command lock was held.",
	})
)
