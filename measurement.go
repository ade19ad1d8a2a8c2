package hcsr04

import (
	"strconv"
	"time"
)

// TimeoutSentinel is the value reported in place of a pulse width when no
// echo completed within the timeout bound.
const TimeoutSentinel = -1

// Measurement expresses a sensor measurement: either the width of the echo
// pulse or a timeout.
type Measurement struct {
	timeOfFlight time.Duration
	timedOut     bool
}

// TimedOut reports whether the measurement ended without a complete echo.
func (m Measurement) TimedOut() bool {
	return m.timedOut
}

// InMicroseconds returns the raw time of flight measurement, or
// TimeoutSentinel.
func (m Measurement) InMicroseconds() int64 {
	if m.timedOut {
		return TimeoutSentinel
	}
	return m.timeOfFlight.Microseconds()
}

// Duration returns the time of flight. It is zero for a timeout.
func (m Measurement) Duration() time.Duration {
	if m.timedOut {
		return 0
	}
	return m.timeOfFlight
}

// String renders the measurement the way the value attribute reports it.
func (m Measurement) String() string {
	return strconv.FormatInt(m.InMicroseconds(), 10)
}
