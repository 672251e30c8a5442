package practice

import (
	"context"
	"time"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// DefaultFrameInterval is the display refresh cadence the monitor samples at.
const DefaultFrameInterval = time.Second / 60

// EnergyMeter reports the current loudness of a live stream as the mean
// byte magnitude of its frequency bins, in [0, 255].
type EnergyMeter interface {
	Level() float64
}

// Analyser is an [EnergyMeter] fed with the captured PCM.
// [spectrum.Analyser] is the production implementation.
type Analyser interface {
	EnergyMeter
	Write(pcm []byte, format audio.Format)
}

// MonitorConfig holds the stop thresholds of one attempt.
type MonitorConfig struct {
	EnergyThreshold float64
	SilenceWindow   time.Duration
	MaxDuration     time.Duration
}

// Monitor decides when a recording should stop. A Monitor belongs to one
// session and is not safe for concurrent use.
type Monitor struct {
	cfg          MonitorConfig
	meter        EnergyMeter
	startedAt    time.Time
	lastActivity time.Time
}

// NewMonitor creates a monitor for a recording that started at startedAt.
// The silence window is measured from startedAt until the first voiced
// frame.
func NewMonitor(cfg MonitorConfig, meter EnergyMeter, startedAt time.Time) *Monitor {
	return &Monitor{
		cfg:          cfg,
		meter:        meter,
		startedAt:    startedAt,
		lastActivity: startedAt,
	}
}

// Observe applies one energy reading taken at now and reports whether
// recording should stop.
func (m *Monitor) Observe(now time.Time, level float64) (StopReason, bool) {
	if level > m.cfg.EnergyThreshold {
		m.lastActivity = now
	}
	if now.Sub(m.lastActivity) > m.cfg.SilenceWindow {
		return StopSilence, true
	}
	if now.Sub(m.startedAt) >= m.cfg.MaxDuration {
		return StopMaxDuration, true
	}
	return StopNone, false
}

// Run samples the meter every interval until a stop condition is met or ctx
// ends, and returns the reason together with the time it was decided. A
// deadline timer armed at startedAt+MaxDuration makes the hard cap exact.
//
// The ticker and timer are stopped before Run returns, so no tick is acted
// on after teardown.
func (m *Monitor) Run(ctx context.Context, clk Clock, interval time.Duration) (StopReason, time.Time) {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	deadline := clk.NewTimer(m.startedAt.Add(m.cfg.MaxDuration).Sub(clk.Now()))
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return StopCancelled, clk.Now()
		case now := <-deadline.C():
			return StopMaxDuration, now
		case now := <-ticker.C():
			if ctx.Err() != nil {
				return StopCancelled, now
			}
			if reason, stop := m.Observe(now, m.meter.Level()); stop {
				return reason, now
			}
		}
	}
}
