package hcsr04

import (
	"sync/atomic"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// state is the record shared between the edge handler and Measure.
//
// complete is the only synchronization between the two: the handler writes
// the timestamps and then stores complete, and Measure only reads the
// timestamps after it has loaded complete as true. While complete is true the
// handler does not write.
type state struct {
	echoStart time.Time
	echoEnd   time.Time
	complete  atomic.Bool
}

func newState() *state {
	s := &state{}
	// Idle is modeled as a finished measurement with stale values.
	s.complete.Store(true)
	return s
}

// reset arms the state for a new measurement. The timestamps keep their
// stale values until the handler overwrites them.
func (s *state) reset() {
	s.complete.Store(false)
}

func (s *state) done() bool {
	return s.complete.Load()
}

// recordEdge stores ts as the start of the echo when the line reads high,
// and as the end otherwise. The end closes the measurement. It is a no-op
// once the measurement is complete.
func (s *state) recordEdge(level gpio.Level, ts time.Time) {
	if s.complete.Load() {
		return
	}
	if level == gpio.High {
		s.echoStart = ts
		return
	}
	s.echoEnd = ts
	s.complete.Store(true)
}

func (s *state) snapshot() (start, end time.Time, complete bool) {
	complete = s.complete.Load()
	return s.echoStart, s.echoEnd, complete
}
