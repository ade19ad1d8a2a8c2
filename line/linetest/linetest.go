// Package linetest provides in-memory lines for exercising code that
// depends on package line without hardware.
package linetest

import (
	"sync"

	"github.com/derekstavis/hc-sr04/line"
	"periph.io/x/periph/conn/gpio"
)

// Provider hands out Pins from a fixed set. Identifiers not present in Pins
// fail with line.ErrUnknownLine.
type Provider struct {
	sync.Mutex
	Pins map[string]*Pin

	// FailOutput and FailInput, when set, are returned by Output and Input.
	FailOutput error
	FailInput  error
	// FailWatch is returned by Watch on every input handed out.
	FailWatch error

	Closed bool
}

// NewProvider returns a Provider exposing a pin for every name.
func NewProvider(names ...string) *Provider {
	p := &Provider{Pins: map[string]*Pin{}}
	for _, n := range names {
		p.Pins[n] = &Pin{N: n}
	}
	return p
}

// Output implements line.Provider.
func (p *Provider) Output(id string) (line.Output, error) {
	p.Lock()
	defer p.Unlock()
	if p.FailOutput != nil {
		return nil, p.FailOutput
	}
	pin, ok := p.Pins[id]
	if !ok {
		return nil, line.ErrUnknownLine
	}
	pin.acquire(false)
	return pin, nil
}

// Input implements line.Provider.
func (p *Provider) Input(id string) (line.Input, error) {
	p.Lock()
	defer p.Unlock()
	if p.FailInput != nil {
		return nil, p.FailInput
	}
	pin, ok := p.Pins[id]
	if !ok {
		return nil, line.ErrUnknownLine
	}
	pin.acquire(true)
	pin.failWatch = p.FailWatch
	return pin, nil
}

// Close implements line.Provider.
func (p *Provider) Close() error {
	p.Lock()
	defer p.Unlock()
	p.Closed = true
	return nil
}

// Pin is a simulated line usable as both line.Output and line.Input.
type Pin struct {
	N string

	mu        sync.Mutex
	level     gpio.Level
	acquired  bool
	closes    int
	history   []gpio.Level
	handler   line.EdgeFunc
	failWatch error

	// OnOut, if set, is called after every Out with the new level.
	OnOut func(gpio.Level)
}

func (p *Pin) acquire(input bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired = true
	if !input {
		p.level = gpio.Low
	}
}

// Name implements line.Output and line.Input.
func (p *Pin) Name() string { return p.N }

// Out implements line.Output and records the level.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	if !p.acquired {
		p.mu.Unlock()
		return line.ErrClosed
	}
	p.level = l
	p.history = append(p.history, l)
	fn := p.OnOut
	p.mu.Unlock()
	if fn != nil {
		fn(l)
	}
	return nil
}

// Read implements line.Input.
func (p *Pin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Watch implements line.Input.
func (p *Pin) Watch(fn line.EdgeFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWatch != nil {
		return p.failWatch
	}
	if !p.acquired {
		return line.ErrClosed
	}
	p.handler = fn
	return nil
}

// Close implements line.Output and line.Input.
func (p *Pin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.acquired = false
	p.handler = nil
	return nil
}

// Set changes the level without firing the edge handler.
func (p *Pin) Set(l gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = l
}

// Edge sets the level and calls the registered handler synchronously on
// the calling goroutine, the way a backend's watcher would.
func (p *Pin) Edge(l gpio.Level) {
	p.mu.Lock()
	p.level = l
	fn := p.handler
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// History returns the levels passed to Out, oldest first.
func (p *Pin) History() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.history...)
}

// Watched reports whether a handler is registered.
func (p *Pin) Watched() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler != nil
}

// Acquired reports whether the pin is currently held.
func (p *Pin) Acquired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Closes returns how many times Close was called.
func (p *Pin) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}
