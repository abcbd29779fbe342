package app

import (
	"sync/atomic"
	"time"
)

// Metrics counts host activity. All methods are safe for concurrent use.
type Metrics struct {
	writes        atomic.Uint64
	notifications atomic.Uint64

	reloads        atomic.Uint64
	reloadFailures atomic.Uint64

	scriptRuns    atomic.Uint64
	scriptErrors  atomic.Uint64
	scriptTotalNs atomic.Int64
	scriptMinNs   atomic.Int64
	scriptMaxNs   atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
	}
	// Initialize min to max int64 so the first run will be smaller
	m.scriptMinNs.Store(1<<63 - 1)
	return m
}

// RecordWrite records a write made by the host.
func (m *Metrics) RecordWrite() {
	m.writes.Add(1)
}

// RecordNotification records one delivered store notification.
func (m *Metrics) RecordNotification() {
	m.notifications.Add(1)
}

// RecordReload records a reload attempt.
func (m *Metrics) RecordReload(err error) {
	if err != nil {
		m.reloadFailures.Add(1)
		return
	}
	m.reloads.Add(1)
}

// RecordScript records a script run and its duration.
func (m *Metrics) RecordScript(duration time.Duration, err error) {
	ns := duration.Nanoseconds()

	m.scriptRuns.Add(1)
	m.scriptTotalNs.Add(ns)
	if err != nil {
		m.scriptErrors.Add(1)
	}

	for {
		old := m.scriptMinNs.Load()
		if ns >= old || m.scriptMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.scriptMaxNs.Load()
		if ns <= old || m.scriptMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	runs := m.scriptRuns.Load()

	var avg time.Duration
	if runs > 0 {
		avg = time.Duration(m.scriptTotalNs.Load() / int64(runs))
	}

	minNs := m.scriptMinNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	return MetricsSnapshot{
		Uptime:         time.Since(m.startTime),
		Writes:         m.writes.Load(),
		Notifications:  m.notifications.Load(),
		Reloads:        m.reloads.Load(),
		ReloadFailures: m.reloadFailures.Load(),
		ScriptRuns:     runs,
		ScriptErrors:   m.scriptErrors.Load(),
		AvgScriptTime:  avg,
		MinScriptTime:  time.Duration(minNs),
		MaxScriptTime:  time.Duration(m.scriptMaxNs.Load()),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.writes.Store(0)
	m.notifications.Store(0)
	m.reloads.Store(0)
	m.reloadFailures.Store(0)
	m.scriptRuns.Store(0)
	m.scriptErrors.Store(0)
	m.scriptTotalNs.Store(0)
	m.scriptMinNs.Store(1<<63 - 1)
	m.scriptMaxNs.Store(0)
	m.startTime = time.Now()
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration
	Writes         uint64
	Notifications  uint64
	Reloads        uint64
	ReloadFailures uint64
	ScriptRuns     uint64
	ScriptErrors   uint64
	AvgScriptTime  time.Duration
	MinScriptTime  time.Duration
	MaxScriptTime  time.Duration
}
