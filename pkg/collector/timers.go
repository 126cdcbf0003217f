package collector

import "time"

// TimerHandle identifies a custom timer inside the current session.
type TimerHandle int

// NoTimer is returned when no timer was opened. It never refers to a timer.
const NoTimer TimerHandle = -1

// CustomTimer is a named sub-interval of a sampled session.
type CustomTimer struct {
	Group string
	Label string
	// DurationMicros is the rounded duration in microseconds; valid once
	// Closed is true.
	DurationMicros int64
	Closed         bool

	startedAt time.Time
}

func (c *Collector) lookupOpenTimer(h TimerHandle) *CustomTimer {
	if h < 0 || int(h) >= len(c.timers) {
		return nil
	}
	t := &c.timers[h]
	if t.Closed {
		return nil
	}
	return t
}

func roundMicros(d time.Duration) int64 {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Microsecond).Microseconds()
}

func roundMillis(d time.Duration) int64 {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Millisecond).Milliseconds()
}
