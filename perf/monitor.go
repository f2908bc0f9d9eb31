// Package perf samples frame timing and memory into smoothed figures,
// raises leveled alerts against configured thresholds, and escalates a
// degradation level consumed by the layout engine and render pipeline.
package perf

import (
	"runtime"
	"time"

	"github.com/matchgrid/matchgrid"
	"github.com/matchgrid/matchgrid/cache"
)

// Monitor configuration constants.
const (
	// WindowSize is the rolling frame-sample window.
	WindowSize = 60

	// AlertRingSize bounds the retained alert history.
	AlertRingSize = 50

	// DefaultSustainSamples is how many consecutive breaching samples
	// escalate the degradation level by one tier.
	DefaultSustainSamples = 30

	// DefaultCalmSamples is how many consecutive healthy samples decay
	// the degradation level by one tier.
	DefaultCalmSamples = 120

	// DefaultSweepInterval is how often the periodic pressure sweep
	// (cache eviction, pool resizing) runs.
	DefaultSweepInterval = 2 * time.Second

	// memSampleEvery throttles runtime.ReadMemStats, which is not free.
	memSampleEvery = 30

	bytesPerMB = 1024 * 1024
)

// Thresholds are the performance limits the monitor alerts on.
type Thresholds struct {
	// TargetFPS is the desired frame rate. FPS below 90% of target is
	// a warning; below 50% is critical.
	TargetFPS float64

	// MaxHeapMB is the heap ceiling in megabytes.
	MaxHeapMB float64

	// MaxCacheBytes is the ceiling for cached resource memory.
	MaxCacheBytes int64

	// MinHitRate is the minimum acceptable cache hit rate once the
	// cache has seen traffic.
	MinHitRate float64
}

// DefaultThresholds returns the standard thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TargetFPS:     60,
		MaxHeapMB:     256,
		MaxCacheBytes: cache.DefaultMaxBytes,
		MinHitRate:    0.5,
	}
}

// AlertLevel grades an alert.
type AlertLevel uint8

// Alert levels.
const (
	// AlertWarning indicates a soft threshold breach.
	AlertWarning AlertLevel = iota

	// AlertCritical indicates a hard threshold breach.
	AlertCritical
)

// String returns a human-readable name for the alert level.
func (l AlertLevel) String() string {
	switch l {
	case AlertWarning:
		return "Warning"
	case AlertCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Alert is one recorded threshold breach.
type Alert struct {
	// Level grades the breach.
	Level AlertLevel
	// Metric names the breached metric ("fps", "heap", "cache-memory",
	// "cache-hit-rate").
	Metric string
	// Value is the observed figure.
	Value float64
	// At is the sample timestamp.
	At time.Time
}

// Snapshot is the monitor's current smoothed view.
type Snapshot struct {
	// FPS is the smoothed frame rate over the rolling window.
	FPS float64
	// HeapMB and SysMB are the last sampled memory figures.
	HeapMB float64
	SysMB  float64
	// Degrade is the current degradation level.
	Degrade matchgrid.DegradeLevel
	// Samples is the number of frames in the window.
	Samples int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholds overrides the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Monitor) { m.thresholds = t }
}

// WithSustainSamples overrides how many consecutive breaching samples
// escalate degradation.
func WithSustainSamples(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.sustainSamples = n
		}
	}
}

// WithCalmSamples overrides how many consecutive healthy samples decay
// degradation.
func WithCalmSamples(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.calmSamples = n
		}
	}
}

// WithSweepInterval overrides the periodic sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// Monitor tracks frame and memory health. It is driven from the frame
// tick and is not safe for concurrent use.
type Monitor struct {
	thresholds     Thresholds
	sustainSamples int
	calmSamples    int
	sweepInterval  time.Duration

	frames     [WindowSize]time.Duration
	frameSum   time.Duration
	frameIdx   int
	frameCount int

	memStats    runtime.MemStats
	heapMB      float64
	sysMB       float64
	sampleCount uint64

	alerts   [AlertRingSize]Alert
	alertIdx int
	alertN   int

	degrade    matchgrid.DegradeLevel
	breachRun  int
	calmRun    int
	lastCrit   bool
	lastSweep  time.Time
	sweepers   []func(now time.Time)
	cacheStats func() cache.Stats
}

// New creates a monitor with default thresholds.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		thresholds:     DefaultThresholds(),
		sustainSamples: DefaultSustainSamples,
		calmSamples:    DefaultCalmSamples,
		sweepInterval:  DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetCacheStats installs the provider used for cache memory and
// hit-rate checks (typically Pipeline.SpriteCache().Stats).
func (m *Monitor) SetCacheStats(fn func() cache.Stats) {
	m.cacheStats = fn
}

// AddSweeper registers a function run by the periodic pressure sweep
// (cache eviction, pool resizing).
func (m *Monitor) AddSweeper(fn func(now time.Time)) {
	m.sweepers = append(m.sweepers, fn)
}

// Sample records one frame duration at timestamp now, updates smoothed
// figures, evaluates thresholds and runs the periodic sweep when due.
func (m *Monitor) Sample(frameDur time.Duration, now time.Time) {
	// Rolling window update.
	m.frameSum -= m.frames[m.frameIdx]
	m.frames[m.frameIdx] = frameDur
	m.frameSum += frameDur
	m.frameIdx = (m.frameIdx + 1) % WindowSize
	if m.frameCount < WindowSize {
		m.frameCount++
	}

	// Memory sampling is throttled; ReadMemStats stops the world.
	if m.sampleCount%memSampleEvery == 0 {
		runtime.ReadMemStats(&m.memStats)
		m.heapMB = float64(m.memStats.Alloc) / bytesPerMB
		m.sysMB = float64(m.memStats.Sys) / bytesPerMB
	}
	m.sampleCount++

	m.evaluate(now)

	if m.lastSweep.IsZero() {
		m.lastSweep = now
	} else if now.Sub(m.lastSweep) >= m.sweepInterval {
		m.lastSweep = now
		for _, fn := range m.sweepers {
			fn(now)
		}
	}
}

// FPS returns the smoothed frame rate over the rolling window.
func (m *Monitor) FPS() float64 {
	if m.frameCount == 0 || m.frameSum <= 0 {
		return 0
	}
	avg := float64(m.frameSum) / float64(m.frameCount)
	return float64(time.Second) / avg
}

// Degrade returns the current degradation level.
func (m *Monitor) Degrade() matchgrid.DegradeLevel { return m.degrade }

// Stats returns the current smoothed snapshot.
func (m *Monitor) Stats() Snapshot {
	return Snapshot{
		FPS:     m.FPS(),
		HeapMB:  m.heapMB,
		SysMB:   m.sysMB,
		Degrade: m.degrade,
		Samples: m.frameCount,
	}
}

// Alerts returns the retained alerts, oldest first.
func (m *Monitor) Alerts() []Alert {
	out := make([]Alert, 0, m.alertN)
	start := m.alertIdx - m.alertN
	for i := 0; i < m.alertN; i++ {
		out = append(out, m.alerts[(start+i+AlertRingSize)%AlertRingSize])
	}
	return out
}

// evaluate compares smoothed figures against thresholds, records alerts
// and drives degradation escalation/decay.
func (m *Monitor) evaluate(now time.Time) {
	breach := false
	critical := false

	if m.frameCount >= WindowSize/2 && m.thresholds.TargetFPS > 0 {
		fps := m.FPS()
		switch {
		case fps < m.thresholds.TargetFPS*0.5:
			m.raise(AlertCritical, "fps", fps, now)
			breach, critical = true, true
		case fps < m.thresholds.TargetFPS*0.9:
			m.raise(AlertWarning, "fps", fps, now)
			breach = true
		}
	}

	if m.thresholds.MaxHeapMB > 0 && m.heapMB > m.thresholds.MaxHeapMB {
		m.raise(AlertCritical, "heap", m.heapMB, now)
		breach, critical = true, true
	}

	if m.cacheStats != nil {
		cs := m.cacheStats()
		if m.thresholds.MaxCacheBytes > 0 && cs.Size > m.thresholds.MaxCacheBytes {
			m.raise(AlertWarning, "cache-memory", float64(cs.Size), now)
			breach = true
		}
		if m.thresholds.MinHitRate > 0 && cs.Hits+cs.Misses >= 100 &&
			cs.HitRate < m.thresholds.MinHitRate {
			m.raise(AlertWarning, "cache-hit-rate", cs.HitRate, now)
			breach = true
		}
	}

	if breach {
		m.breachRun++
		m.calmRun = 0
		m.lastCrit = critical
		if m.breachRun >= m.sustainSamples {
			m.breachRun = 0
			m.escalate()
		}
		return
	}
	m.breachRun = 0
	m.calmRun++
	if m.calmRun >= m.calmSamples {
		m.calmRun = 0
		m.decay()
	}
}

// raise records an alert in the bounded ring.
func (m *Monitor) raise(level AlertLevel, metric string, value float64, now time.Time) {
	m.alerts[m.alertIdx] = Alert{Level: level, Metric: metric, Value: value, At: now}
	m.alertIdx = (m.alertIdx + 1) % AlertRingSize
	if m.alertN < AlertRingSize {
		m.alertN++
	}
}

// escalate raises the degradation level one tier. Sustained critical
// pressure at Reduced jumps straight to Minimal on the next escalation.
func (m *Monitor) escalate() {
	if m.degrade >= matchgrid.DegradeMinimal {
		return
	}
	m.degrade++
	matchgrid.Logger().Warn("perf: degradation escalated",
		"level", m.degrade.String(), "critical", m.lastCrit)
}

// decay lowers the degradation level one tier after sustained calm.
func (m *Monitor) decay() {
	if m.degrade == matchgrid.DegradeNone {
		return
	}
	m.degrade--
	matchgrid.Logger().Info("perf: degradation relaxed",
		"level", m.degrade.String())
}
