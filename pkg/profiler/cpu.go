// Package profiler provides the process-wide CPU profiler switch used by
// sampled collector sessions.
package profiler

import (
	"bytes"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-collect/pkg/collector"
)

// DefaultFrequencyHz is the sampling rate runtime/pprof uses on its own.
const DefaultFrequencyHz = 100

// Config holds configuration for the CPU toggle.
type Config struct {
	FrequencyHz int // Sampling frequency (default: 100Hz)
}

// CPUToggle records a pprof CPU profile between Enable and Disable.
// The Go runtime allows a single CPU profile per process, so a toggle
// refuses to enable twice and never stops a profile it did not start.
type CPUToggle struct {
	logger zerolog.Logger
	config Config

	mu      sync.Mutex
	enabled bool
	buf     *bytes.Buffer

	// Overridable in tests.
	start func(w *bytes.Buffer) error
	stop  func()
}

var _ collector.Profiler = (*CPUToggle)(nil)

// NewCPUToggle creates a CPU toggle.
func NewCPUToggle(logger zerolog.Logger, config Config) *CPUToggle {
	if config.FrequencyHz <= 0 {
		config.FrequencyHz = DefaultFrequencyHz
	}

	t := &CPUToggle{
		logger: logger.With().Str("component", "cpu-toggle").Logger(),
		config: config,
		stop:   pprof.StopCPUProfile,
	}
	t.start = t.startCPUProfile
	return t
}

func (t *CPUToggle) startCPUProfile(w *bytes.Buffer) error {
	if t.config.FrequencyHz != DefaultFrequencyHz {
		// pprof.StartCPUProfile keeps a rate that was set beforehand.
		runtime.SetCPUProfileRate(t.config.FrequencyHz)
	}
	return pprof.StartCPUProfile(w)
}

// Enable starts CPU profiling into an in-memory buffer.
func (t *CPUToggle) Enable() {
	t.acquire()
}

// Disable stops CPU profiling and returns the gzipped pprof profile.
// It returns nil when profiling was not enabled by this toggle.
func (t *CPUToggle) Disable() collector.Dataset {
	return t.release()
}

// Lease returns a Profiler for one session. Concurrent sessions share the
// single process CPU profile: only the lease that enabled it first records
// data, the others get a nil dataset.
func (t *CPUToggle) Lease() collector.Profiler {
	return &lease{toggle: t}
}

func (t *CPUToggle) acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enabled {
		t.logger.Debug().Msg("CPU profiling already enabled, ignoring enable")
		return false
	}

	buf := &bytes.Buffer{}
	if err := t.start(buf); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to start CPU profile")
		return false
	}

	t.buf = buf
	t.enabled = true
	t.logger.Debug().Int("frequency_hz", t.config.FrequencyHz).Msg("CPU profiling enabled")
	return true
}

func (t *CPUToggle) release() collector.Dataset {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		t.logger.Debug().Msg("CPU profiling not enabled, ignoring disable")
		return nil
	}

	t.stop()
	t.enabled = false
	data := collector.Dataset(t.buf.Bytes())
	t.buf = nil

	t.logger.Debug().Int("bytes", len(data)).Msg("CPU profiling disabled")
	return data
}

// lease is a per-session view of a CPUToggle.
type lease struct {
	toggle *CPUToggle
	owned  bool
}

func (l *lease) Enable() {
	if l.owned {
		return
	}
	l.owned = l.toggle.acquire()
}

func (l *lease) Disable() collector.Dataset {
	if !l.owned {
		return nil
	}
	l.owned = false
	return l.toggle.release()
}

// Enabled reports whether the toggle currently owns the CPU profile.
func (t *CPUToggle) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}
