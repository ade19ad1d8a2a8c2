// Package line describes the GPIO line control subsystem the sensor core
// depends on.
//
// A Provider hands out lines by identifier. The identifier format belongs to
// the backend: periph uses gpioreg names ("GPIO4", "4"), the character device
// backend uses "<offset>" or "<chip>:<offset>", go-rpio uses BCM numbers.
//
// Every backend reports levels as periph's gpio.Level so the sensor core
// never sees backend types.
package line

import (
	"errors"

	"periph.io/x/periph/conn/gpio"
)

var (
	// ErrUnknownLine is returned when a provider has no line with the
	// requested identifier.
	ErrUnknownLine = errors.New("unknown line")

	// ErrClosed is returned by operations on a released line or provider.
	ErrClosed = errors.New("line closed")
)

// EdgeFunc is called once per transition of a watched input line, for both
// rising and falling edges. Backends call it from a single goroutine per
// line, so an EdgeFunc is never re-entered.
type EdgeFunc func()

// Output is a line configured as an output.
type Output interface {
	Name() string
	// Out drives the line to the given level.
	Out(l gpio.Level) error
	// Close releases the line. It is safe to call more than once.
	Close() error
}

// Input is a line configured as an input.
type Input interface {
	Name() string
	// Read returns the current level of the line.
	Read() gpio.Level
	// Watch registers fn for both edges. A later call replaces fn.
	Watch(fn EdgeFunc) error
	// Close unregisters any handler and releases the line. It is safe to
	// call more than once.
	Close() error
}

// Provider acquires lines by identifier.
type Provider interface {
	// Output acquires id and configures it as an output driven low.
	Output(id string) (Output, error)
	// Input acquires id and configures it as an input.
	Input(id string) (Input, error)
	// Close releases provider-wide resources.
	Close() error
}
