// Package attr implements the sensor's read-only "value" attribute.
//
// Every read performs one full measurement and renders it as a decimal
// line: the echo width in microseconds, or -1 when no echo came back.
// Reads are serialized, so concurrent readers queue instead of tripping the
// sensor's overlap guard.
package attr

import (
	"sync"

	"github.com/pkg/errors"

	hcsr04 "github.com/derekstavis/hc-sr04"
)

// ErrReadOnly is returned by every write.
var ErrReadOnly = errors.New("value is read-only")

// Measurer takes one measurement. *hcsr04.Sensor implements it.
type Measurer interface {
	Measure() (hcsr04.Measurement, error)
}

// Attribute is the "value" attribute of a sensor.
type Attribute struct {
	mu sync.Mutex
	m  Measurer
}

// New returns the attribute for m.
func New(m Measurer) *Attribute {
	return &Attribute{m: m}
}

// Read measures and returns the result followed by a newline.
func (a *Attribute) Read() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.m.Measure()
	if err != nil {
		return "", errors.Wrap(err, "measuring")
	}
	return m.String() + "\n", nil
}

// Write always fails; the attribute has no write semantics.
func (a *Attribute) Write([]byte) error {
	return ErrReadOnly
}
