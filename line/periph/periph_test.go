package periph

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/gpio/gpiotest"

	hcsr04 "github.com/derekstavis/hc-sr04"
	"github.com/derekstavis/hc-sr04/line"
)

// triggerPin reports every falling edge it is driven to, so the simulated
// module never misses the 10µs pulse.
type triggerPin struct {
	gpiotest.Pin
	fell chan struct{}
}

func (p *triggerPin) Out(l gpio.Level) error {
	err := p.Pin.Out(l)
	if l == gpio.Low {
		select {
		case p.fell <- struct{}{}:
		default:
		}
	}
	return err
}

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

	quietEdge = make(chan gpio.Level, 2)
	quietPin  = gpiotest.Pin{N: "HCSR04_QUIET", Num: 9001, L: gpio.Low, EdgesChan: quietEdge}
	quietTrig = gpiotest.Pin{N: "HCSR04_QUIET_TRIG", Num: 9002, L: gpio.Low, EdgesChan: make(chan gpio.Level, 2)}

	echoEdge = make(chan gpio.Level, 2)
	echoPin  = gpiotest.Pin{N: "HCSR04_ECHO", Num: 9003, L: gpio.Low, EdgesChan: echoEdge}
	trigPin  = triggerPin{
		Pin:  gpiotest.Pin{N: "HCSR04_TRIG", Num: 9004, L: gpio.Low, EdgesChan: make(chan gpio.Level, 2)},
		fell: make(chan struct{}, 1),
	}

	watchEdge = make(chan gpio.Level, 4)
	watchPin  = gpiotest.Pin{N: "HCSR04_WATCH", Num: 9005, L: gpio.Low, EdgesChan: watchEdge}
)

func init() {
	gpioreg.Register(&quietPin)
	gpioreg.Register(&quietTrig)
	gpioreg.Register(&echoPin)
	gpioreg.Register(&trigPin)
	gpioreg.Register(&watchPin)
}

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(WithLogger(quiet), WithEdgeWait(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return p
}

// echo drives the echo pin the way the module does after each trigger.
func echo(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-trigPin.fell:
		}
		// simulate the delay of sending the sonic burst
		time.Sleep(200 * time.Microsecond)
		setEcho(gpio.High)
		// Hold the echo pin high to simulate the time of flight
		time.Sleep(300 * time.Microsecond)
		setEcho(gpio.Low)
	}
}

func setEcho(l gpio.Level) {
	echoPin.Lock()
	echoPin.L = l
	echoPin.Unlock()
	echoPin.EdgesChan <- l
}

func TestNoSensor(t *testing.T) {
	s, err := hcsr04.New(newProvider(t), "HCSR04_QUIET_TRIG", "HCSR04_QUIET", hcsr04.WithLogger(quiet))
	if err != nil {
		t.Fatalf("initializing sensor: %s", err)
	}
	defer s.Close()
	m, err := s.Measure()
	if err != nil {
		t.Fatalf("Measure: %s", err)
	}
	if !m.TimedOut() {
		t.Errorf("no timeout reported when no sensor is attached, got %d", m.InMicroseconds())
	}
}

func TestSensor(t *testing.T) {
	s, err := hcsr04.New(newProvider(t), "HCSR04_TRIG", "HCSR04_ECHO", hcsr04.WithLogger(quiet))
	if err != nil {
		t.Fatalf("initializing sensor: %s", err)
	}
	defer s.Close()

	// Forget the falling edge from acquiring the trigger.
	select {
	case <-trigPin.fell:
	default:
	}
	stop := make(chan struct{})
	defer close(stop)
	go echo(stop)

	m, err := s.Measure()
	if err != nil {
		t.Fatalf("Measure: %s", err)
	}
	d := m.InMicroseconds()
	t.Logf("Timing result: %d", d)
	if m.TimedOut() {
		t.Fatalf("Measure timed out")
	}
	if d < 300 {
		t.Errorf("Measure: want: >=300, got: %d", d)
	}
}

func TestUnknownPin(t *testing.T) {
	p := newProvider(t)
	if _, err := p.Output("HCSR04_NOPE"); !errors.Is(err, line.ErrUnknownLine) {
		t.Errorf("Output: want ErrUnknownLine, got %v", err)
	}
	if _, err := p.Input("HCSR04_NOPE"); !errors.Is(err, line.ErrUnknownLine) {
		t.Errorf("Input: want ErrUnknownLine, got %v", err)
	}
}

func TestInputWatchAndClose(t *testing.T) {
	in, err := newProvider(t).Input("HCSR04_WATCH")
	if err != nil {
		t.Fatalf("Input: %s", err)
	}
	var calls atomic.Int32
	seen := make(chan struct{}, 4)
	if err := in.Watch(func() {
		calls.Add(1)
		seen <- struct{}{}
	}); err != nil {
		t.Fatalf("Watch: %s", err)
	}

	watchEdge <- gpio.High
	select {
	case <-seen:
	case <-time.After(time.Second):
		t.Fatal("handler not called for an edge")
	}
	if got := in.Read(); got != gpio.High {
		t.Errorf("Read after rising edge: want High, got %s", got)
	}

	if err := in.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("second Close: %s", err)
	}
	watchEdge <- gpio.Low
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
	if err := in.Watch(func() {}); !errors.Is(err, line.ErrClosed) {
		t.Errorf("Watch after Close: want ErrClosed, got %v", err)
	}
	// Drain what the stopped watcher left behind.
	<-watchEdge
}

func TestTeardown(t *testing.T) {
	for _, p := range []*gpiotest.Pin{&quietPin, &quietTrig, &echoPin, &trigPin.Pin, &watchPin} {
		if err := p.Halt(); err != nil {
			t.Errorf("%s.Halt(): %s", p.N, err)
		}
	}
}
