// Package hcsr04 facilitates measuring distance with an HC-SR04 ultrasonic
// ranging module by timing its echo pulse.
//
// A measurement fires a 10µs pulse on the trigger line and then busy-waits,
// for at most TimeoutIterations polls of PollInterval, while an edge handler
// registered on the echo line stamps the rising and falling edges of the
// echo. The result is the raw pulse width in microseconds, or
// TimeoutSentinel when no echo completed in time.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
package hcsr04

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"

	"github.com/derekstavis/hc-sr04/line"
)

const (
	// DefaultTrigger and DefaultEcho are the BCM numbers the module is
	// usually wired to on a Raspberry Pi.
	DefaultTrigger = "4"
	DefaultEcho    = "17"

	// TriggerPulseWidth is how long the trigger line is held high.
	TriggerPulseWidth = 10 * time.Microsecond

	// PollInterval is the busy-wait between two checks for a complete echo.
	PollInterval = time.Microsecond

	// TimeoutIterations bounds the poll loop at ~23.2ms, the round trip
	// time of the module's ~4m rated range.
	TimeoutIterations = 23200
)

var (
	// ErrBusy is returned by Measure while another measurement is in flight.
	ErrBusy = errors.New("measurement already in progress")

	// ErrClosed is returned by Measure after Close.
	ErrClosed = errors.New("sensor closed")
)

// Delay holds the caller for d without sleeping.
type Delay func(d time.Duration)

// Option configures a Sensor.
type Option func(*Sensor)

// WithClock sets the clock used to timestamp echo edges. The default is the
// real monotonic clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Sensor) { s.clock = c }
}

// WithDelay sets the busy-wait primitive used for the trigger pulse and the
// poll loop. The default spins on the sensor's clock, yielding the processor
// on every turn so the goroutine delivering echo edges keeps running.
func WithDelay(d Delay) Option {
	return func(s *Sensor) { s.delay = d }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sensor) { s.log = l }
}

// Sensor represents an HC-SR04 ultrasonic ranging module.
//
// Measure calls must not overlap; an overlapping call fails with ErrBusy
// rather than corrupting the measurement in flight.
type Sensor struct {
	EchoPin    line.Input
	TriggerPin line.Output

	state *state
	clock clockwork.Clock
	delay Delay
	log   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New acquires the trigger and echo lines from p and returns a ready Sensor.
//
// The trigger line is configured as an output driven low, the echo line as an
// input whose edges feed the sensor. If any step fails, whatever was acquired
// is released and no Sensor is returned.
func New(p line.Provider, trigger, echo string, opts ...Option) (*Sensor, error) {
	s := &Sensor{
		state: newState(),
		clock: clockwork.NewRealClock(),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.delay == nil {
		s.delay = spin(s.clock)
	}
	s.log = s.log.With("component", "sensor")
	s.log.Info("initializing", "trigger", trigger, "echo", echo)

	var err error
	if s.TriggerPin, err = p.Output(trigger); err != nil {
		return nil, errors.Wrapf(err, "requesting trigger line %s", trigger)
	}
	if s.EchoPin, err = p.Input(echo); err != nil {
		s.release()
		return nil, errors.Wrapf(err, "requesting echo line %s", echo)
	}
	if err := s.EchoPin.Watch(s.handleEdge); err != nil {
		s.release()
		return nil, errors.Wrapf(err, "registering edge handler on %s", echo)
	}

	s.log.Info("ready")
	return s, nil
}

// Measure takes one measurement.
//
// A missing or overlong echo is not an error: the returned Measurement has
// TimedOut set and reports TimeoutSentinel.
func (s *Sensor) Measure() (Measurement, error) {
	if !s.mu.TryLock() {
		return Measurement{}, ErrBusy
	}
	defer s.mu.Unlock()
	if s.closed {
		return Measurement{}, ErrClosed
	}

	// Arm before triggering so the first edge of this echo is never
	// mistaken for a late edge of the previous one.
	s.state.reset()
	s.trigger()

	for counter := 0; !s.state.done(); {
		counter++
		if counter > TimeoutIterations {
			s.log.Debug("no echo", "polls", TimeoutIterations)
			return Measurement{timedOut: true}, nil
		}
		s.delay(PollInterval)
	}

	start, end, _ := s.state.snapshot()
	return Measurement{timeOfFlight: end.Sub(start)}, nil
}

// Close releases both lines. Release failures are logged, not returned, and
// calling Close again is a no-op.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()
	s.log.Info("unloaded")
	return nil
}

func (s *Sensor) release() {
	if s.EchoPin != nil {
		if err := s.EchoPin.Close(); err != nil {
			s.log.Warn("releasing echo line", "line", s.EchoPin.Name(), "err", err)
		}
	}
	if s.TriggerPin != nil {
		if err := s.TriggerPin.Close(); err != nil {
			s.log.Warn("releasing trigger line", "line", s.TriggerPin.Name(), "err", err)
		}
	}
}

// trigger briefly raises the trigger line to make the module emit a burst.
func (s *Sensor) trigger() {
	if err := s.TriggerPin.Out(gpio.High); err != nil {
		s.log.Debug("driving trigger high", "err", err)
	}
	s.delay(TriggerPulseWidth)
	if err := s.TriggerPin.Out(gpio.Low); err != nil {
		s.log.Debug("driving trigger low", "err", err)
	}
}

// handleEdge runs on every transition of the echo line.
//
// The edge direction is inferred from the level read now: high is taken as
// the rising edge, anything else as the falling edge that ends the echo. A
// repeated rising edge re-stamps the start, so the last one before the
// falling edge wins.
func (s *Sensor) handleEdge() {
	if s.state.done() {
		return
	}
	now := s.clock.Now()
	s.state.recordEdge(s.EchoPin.Read(), now)
}

func spin(c clockwork.Clock) Delay {
	return func(d time.Duration) {
		deadline := c.Now().Add(d)
		for c.Now().Before(deadline) {
			runtime.Gosched()
		}
	}
}
