// Package gpiomem provides lines backed by go-rpio's memory mapped access to
// the Raspberry Pi GPIO block.
//
// Line identifiers are BCM numbers. The hardware edge-detect latch is polled
// by one goroutine per watched input, so two edges closer together than the
// poll interval arrive as a single handler call.
package gpiomem

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/periph/conn/gpio"

	"github.com/derekstavis/hc-sr04/line"
)

// DefaultPollInterval is how often a watched input's edge latch is checked.
const DefaultPollInterval = 20 * time.Microsecond

// maxPin is the highest BCM number on the GPIO header.
const maxPin = 27

// ErrBadID is returned for identifiers that are not BCM numbers.
var ErrBadID = errors.New("malformed BCM pin number")

// Option configures a Provider.
type Option func(*Provider)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.poll = d }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// Provider hands out pins from the mapped GPIO block.
type Provider struct {
	poll time.Duration
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New maps the GPIO memory. Close unmaps it.
func New(opts ...Option) (*Provider, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "mapping gpio memory")
	}
	p := &Provider{poll: DefaultPollInterval, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "line", "driver", "rpio")
	return p, nil
}

// ParsePin converts a BCM number identifier to a pin.
func ParsePin(id string) (rpio.Pin, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 || n > maxPin {
		return 0, errors.Wrapf(ErrBadID, "%q", id)
	}
	return rpio.Pin(n), nil
}

func (p *Provider) pin(id string) (rpio.Pin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, line.ErrClosed
	}
	return ParsePin(id)
}

// Output implements line.Provider.
func (p *Provider) Output(id string) (line.Output, error) {
	pin, err := p.pin(id)
	if err != nil {
		return nil, err
	}
	pin.Output()
	pin.Low()
	p.log.Debug("acquired output", "line", id)
	return &output{id: id, pin: pin}, nil
}

// Input implements line.Provider.
func (p *Provider) Input(id string) (line.Input, error) {
	pin, err := p.pin(id)
	if err != nil {
		return nil, err
	}
	pin.Input()
	pin.PullDown()
	p.log.Debug("acquired input", "line", id)
	return &input{id: id, pin: pin, poll: p.poll}, nil
}

// Close unmaps the GPIO memory. Lines handed out must not be used after.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Wrap(rpio.Close(), "unmapping gpio memory")
}

func state(l gpio.Level) rpio.State {
	if l == gpio.High {
		return rpio.High
	}
	return rpio.Low
}

type output struct {
	id  string
	pin rpio.Pin

	mu     sync.Mutex
	closed bool
}

func (o *output) Name() string { return o.id }

func (o *output) Out(l gpio.Level) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return line.ErrClosed
	}
	o.pin.Write(state(l))
	return nil
}

func (o *output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		o.pin.Input()
	}
	return nil
}

type input struct {
	id   string
	pin  rpio.Pin
	poll time.Duration

	mu     sync.Mutex
	fn     line.EdgeFunc
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func (in *input) Name() string { return in.id }

func (in *input) Read() gpio.Level {
	return in.pin.Read() == rpio.High
}

func (in *input) Watch(fn line.EdgeFunc) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return line.ErrClosed
	}
	in.fn = fn
	if in.stop == nil {
		in.pin.Detect(rpio.AnyEdge)
		in.stop = make(chan struct{})
		in.done = make(chan struct{})
		go in.watch()
	}
	return nil
}

func (in *input) watch() {
	defer close(in.done)
	t := time.NewTicker(in.poll)
	defer t.Stop()
	for {
		select {
		case <-in.stop:
			return
		case <-t.C:
		}
		if !in.pin.EdgeDetected() {
			continue
		}
		in.mu.Lock()
		fn := in.fn
		in.mu.Unlock()
		if fn != nil {
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
		<-done
		in.pin.Detect(rpio.NoEdge)
	}
	return nil
}
