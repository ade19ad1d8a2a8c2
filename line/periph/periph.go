// Package periph provides lines backed by periph.io's GPIO registry.
//
// Line identifiers are anything gpioreg.ByName accepts. For a Raspberry Pi,
// this corresponds to the BCM pin number as a string.
package periph

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/derekstavis/hc-sr04/line"
)

// DefaultEdgeWait bounds each WaitForEdge call of an input's watcher, which
// is how quickly a closed input notices it should stop.
const DefaultEdgeWait = 100 * time.Millisecond

// Option configures a Provider.
type Option func(*Provider)

// WithEdgeWait overrides DefaultEdgeWait.
func WithEdgeWait(d time.Duration) Option {
	return func(p *Provider) { p.edgeWait = d }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// Provider hands out periph pins.
type Provider struct {
	edgeWait time.Duration
	log      *slog.Logger
}

// New initializes the periph host drivers and returns a Provider.
func New(opts ...Option) (*Provider, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing periph host")
	}
	p := &Provider{edgeWait: DefaultEdgeWait, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "line", "driver", "periph")
	return p, nil
}

func (p *Provider) byName(id string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(id)
	if pin == nil {
		return nil, errors.Wrapf(line.ErrUnknownLine, "no GPIO pin named: %s", id)
	}
	return pin, nil
}

// Output implements line.Provider.
func (p *Provider) Output(id string) (line.Output, error) {
	pin, err := p.byName(id)
	if err != nil {
		return nil, err
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "setting %s as output", id)
	}
	p.log.Debug("acquired output", "line", pin.Name())
	return &output{pin: pin}, nil
}

// Input implements line.Provider.
func (p *Provider) Input(id string) (line.Input, error) {
	pin, err := p.byName(id)
	if err != nil {
		return nil, err
	}
	if err := pin.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, errors.Wrapf(err, "setting %s as input", id)
	}
	p.log.Debug("acquired input", "line", pin.Name())
	return &input{pin: pin, wait: p.edgeWait}, nil
}

// Close implements line.Provider. periph keeps no provider-wide state.
func (p *Provider) Close() error { return nil }

type output struct {
	pin gpio.PinIO

	mu     sync.Mutex
	closed bool
}

func (o *output) Name() string { return o.pin.Name() }

func (o *output) Out(l gpio.Level) error {
	return o.pin.Out(l)
}

func (o *output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	// Park the line as a pulled-down input, like the kernel does on free.
	return errors.Wrapf(o.pin.In(gpio.PullDown, gpio.NoEdge), "releasing %s", o.pin.Name())
}

// input turns WaitForEdge into handler calls on a single watcher goroutine.
type input struct {
	pin  gpio.PinIO
	wait time.Duration

	mu     sync.Mutex
	fn     line.EdgeFunc
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func (in *input) Name() string { return in.pin.Name() }

func (in *input) Read() gpio.Level { return in.pin.Read() }

func (in *input) Watch(fn line.EdgeFunc) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return line.ErrClosed
	}
	in.fn = fn
	if in.stop == nil {
		in.stop = make(chan struct{})
		in.done = make(chan struct{})
		go in.watch()
	}
	return nil
}

func (in *input) handler() line.EdgeFunc {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.fn
}

func (in *input) watch() {
	defer close(in.done)
	for {
		select {
		case <-in.stop:
			return
		default:
		}
		if !in.pin.WaitForEdge(in.wait) {
			continue
		}
		if fn := in.handler(); fn != nil {
			fn()
		}
	}
}

func (in *input) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	in.fn = nil
	stop, done := in.stop, in.done
	in.mu.Unlock()

	if stop != nil {
		close(stop)
		// Halt interrupts a pending WaitForEdge on drivers that support it;
		// the others return within wait.
		_ = in.pin.Halt()
		<-done
	}
	return errors.Wrapf(in.pin.In(gpio.PullDown, gpio.NoEdge), "releasing %s", in.pin.Name())
}
