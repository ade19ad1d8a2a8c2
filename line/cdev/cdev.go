// Package cdev provides lines backed by the Linux GPIO character device.
//
// Line identifiers are "<offset>" on the provider's default chip, or
// "<chip>:<offset>" to name the chip explicitly, e.g. "gpiochip1:17".
// Edges are detected by the kernel and handed to the registered handler from
// go-gpiocdev's event goroutine. The kernel's event timestamp is not passed
// on: the handler stamps the edge when it runs, so the delivery latency of
// each edge adds to, or cancels out of, the measured width.
package cdev

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/periph/conn/gpio"

	"github.com/derekstavis/hc-sr04/line"
)

const (
	// DefaultChip is used for identifiers without a chip prefix.
	DefaultChip = "gpiochip0"

	triggerConsumer = "hc-sr04.gpio.trigger"
	echoConsumer    = "hc-sr04.gpio.echo"
)

// ErrBadID is returned for identifiers that are not "[chip:]offset".
var ErrBadID = errors.New("malformed line identifier")

// Option configures a Provider.
type Option func(*Provider)

// WithChip overrides DefaultChip.
func WithChip(chip string) Option {
	return func(p *Provider) { p.chip = chip }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// Provider requests lines from GPIO character devices.
type Provider struct {
	chip string
	log  *slog.Logger
}

// New returns a Provider. No device is opened until a line is requested.
func New(opts ...Option) *Provider {
	p := &Provider{chip: DefaultChip, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "line", "driver", "cdev")
	return p
}

// ParseID splits an identifier into chip and offset, using chip for
// identifiers without a prefix.
func ParseID(id, chip string) (string, int, error) {
	off := id
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		chip, off = id[:i], id[i+1:]
		if chip == "" {
			return "", 0, errors.Wrapf(ErrBadID, "%q has an empty chip", id)
		}
	}
	n, err := strconv.Atoi(off)
	if err != nil || n < 0 {
		return "", 0, errors.Wrapf(ErrBadID, "%q has no valid offset", id)
	}
	return chip, n, nil
}

// Output implements line.Provider.
func (p *Provider) Output(id string) (line.Output, error) {
	chip, off, err := ParseID(id, p.chip)
	if err != nil {
		return nil, err
	}
	l, err := gpiocdev.RequestLine(chip, off,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(triggerConsumer))
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s", id)
	}
	p.log.Debug("acquired output", "line", id)
	return &output{id: id, l: l}, nil
}

// Input implements line.Provider.
func (p *Provider) Input(id string) (line.Input, error) {
	chip, off, err := ParseID(id, p.chip)
	if err != nil {
		return nil, err
	}
	in := &input{id: id, log: p.log}
	// The kernel only reports edges for a line requested with a handler,
	// so the handler is installed up front and dispatches to whatever
	// Watch registers later.
	in.l, err = gpiocdev.RequestLine(chip, off,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(in.event),
		gpiocdev.WithConsumer(echoConsumer))
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s", id)
	}
	p.log.Debug("acquired input", "line", id)
	return in, nil
}

// Close implements line.Provider. Lines own their chip handles.
func (p *Provider) Close() error { return nil }

func level(v int) gpio.Level {
	return v != 0
}

type output struct {
	id string
	l  *gpiocdev.Line

	mu     sync.Mutex
	closed bool
}

func (o *output) Name() string { return o.id }

func (o *output) Out(l gpio.Level) error {
	v := 0
	if l == gpio.High {
		v = 1
	}
	return o.l.SetValue(v)
}

func (o *output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	// revert line to input on the way out.
	rerr := o.l.Reconfigure(gpiocdev.AsInput)
	if err := o.l.Close(); err != nil {
		return errors.Wrapf(err, "releasing %s", o.id)
	}
	return errors.Wrapf(rerr, "reverting %s to input", o.id)
}

type input struct {
	id  string
	l   *gpiocdev.Line
	log *slog.Logger

	mu     sync.Mutex
	fn     line.EdgeFunc
	closed bool
}

func (in *input) Name() string { return in.id }

func (in *input) Read() gpio.Level {
	v, err := in.l.Value()
	if err != nil {
		in.log.Debug("reading line", "line", in.id, "err", err)
		return gpio.Low
	}
	return level(v)
}

func (in *input) Watch(fn line.EdgeFunc) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return line.ErrClosed
	}
	in.fn = fn
	return nil
}

func (in *input) event(gpiocdev.LineEvent) {
	in.mu.Lock()
	fn := in.fn
	in.mu.Unlock()
	if fn != nil {
		fn()
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
	in.mu.Unlock()
	return errors.Wrapf(in.l.Close(), "releasing %s", in.id)
}
