package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsStartedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ontrak",
		Subsystem: "progression",
		Name:      "sessions_started_total",
		Help:      "Number of sessions created from templates.",
	})
	sessionsCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ontrak",
		Subsystem: "progression",
		Name:      "sessions_completed_total",
		Help:      "Number of sessions that advanced past their final day.",
	})
	activitiesCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ontrak",
		Subsystem: "progression",
		Name:      "activities_completed_total",
		Help:      "Number of activities completed by advance, skip, or end-of-day close-out.",
	})
	undoCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ontrak",
		Subsystem: "progression",
		Name:      "undo_total",
		Help:      "Number of undo operations performed against sessions.",
	})
	progressionWriteGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ontrak",
		Subsystem: "progression",
		Name:      "last_write_timestamp_seconds",
		Help:      "Unix timestamp of the most recent progression write.",
	})
)

func init() {
	prometheus.MustRegister(
		sessionsStartedCounter,
		sessionsCompletedCounter,
		activitiesCompletedCounter,
		undoCounter,
		progressionWriteGauge,
	)
}

// RecordSessionStarted increments the sessions-started counter.
func RecordSessionStarted() {
	sessionsStartedCounter.Inc()
}

// RecordSessionCompleted increments the sessions-completed counter.
func RecordSessionCompleted() {
	sessionsCompletedCounter.Inc()
}

// RecordActivityCompleted increments the activities-completed counter.
func RecordActivityCompleted() {
	activitiesCompletedCounter.Inc()
}

// RecordUndo increments the undo counter.
func RecordUndo() {
	undoCounter.Inc()
}

// RecordProgressionWrite updates the progression write watermark gauge.
func RecordProgressionWrite(ts time.Time) {
	if ts.IsZero() {
		return
	}
	progressionWriteGauge.Set(float64(ts.Unix()))
}
