// Package logsink emits finished profiling sessions as structured log
// events.
package logsink

import (
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/sink"
)

// Sink implements collector.Backend by logging every stored item.
type Sink struct {
	logger zerolog.Logger
	level  zerolog.Level
}

var _ collector.Backend = (*Sink)(nil)

// New creates a Sink that logs at info level.
func New(logger zerolog.Logger) *Sink {
	return &Sink{
		logger: logger.With().Str("component", "log-sink").Logger(),
		level:  zerolog.InfoLevel,
	}
}

// WithLevel returns a copy of s logging at level.
func (s *Sink) WithLevel(level zerolog.Level) *Sink {
	c := *s
	c.level = level
	return &c
}

// StoreProfile logs a sampled session. The dataset itself is summarized by
// size and digest.
func (s *Sink) StoreProfile(name string, data collector.Dataset, timers []collector.CustomTimer) {
	arr := zerolog.Arr()
	for _, t := range timers {
		arr.Dict(zerolog.Dict().
			Str("group", t.Group).
			Str("label", t.Label).
			Int64("duration_us", t.DurationMicros).
			Bool("closed", t.Closed))
	}

	s.logger.WithLevel(s.level).
		Str("operation", name).
		Int("dataset_bytes", len(data)).
		Str("dataset_digest", sink.Digest(data)).
		Array("timers", arr).
		Msg("Profile")
}

// StoreMeasurement logs an unsampled session.
func (s *Sink) StoreMeasurement(name string, durationMillis int64, opType collector.OperationType) {
	s.logger.WithLevel(s.level).
		Str("operation", name).
		Int64("duration_ms", durationMillis).
		Stringer("operation_type", opType).
		Msg("Measurement")
}
