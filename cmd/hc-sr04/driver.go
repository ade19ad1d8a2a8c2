package main

import (
	"log/slog"

	"github.com/pkg/errors"

	hcsr04 "github.com/derekstavis/hc-sr04"
	"github.com/derekstavis/hc-sr04/internal/config"
	"github.com/derekstavis/hc-sr04/internal/logging"
	"github.com/derekstavis/hc-sr04/line"
	"github.com/derekstavis/hc-sr04/line/cdev"
	"github.com/derekstavis/hc-sr04/line/gpiomem"
	"github.com/derekstavis/hc-sr04/line/periph"
)

// newProvider opens the line driver named by c. Tests replace it.
var newProvider = func(c config.Config, l *slog.Logger) (line.Provider, error) {
	l = logging.For(l, logging.ComponentLine)
	switch c.Driver {
	case config.DriverPeriph:
		return periph.New(periph.WithLogger(l))
	case config.DriverCdev:
		return cdev.New(cdev.WithChip(c.Chip), cdev.WithLogger(l)), nil
	case config.DriverGPIOMem:
		return gpiomem.New(gpiomem.WithPollInterval(c.PollInterval), gpiomem.WithLogger(l))
	}
	return nil, errors.Errorf("no such driver: %q", c.Driver)
}

// openSensor brings up the driver and the sensor. The returned func releases
// both and is safe to call once the sensor is up.
func openSensor(c config.Config, l *slog.Logger) (*hcsr04.Sensor, func(), error) {
	p, err := newProvider(c, l)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s driver", c.Driver)
	}
	s, err := hcsr04.New(p, c.Trigger, c.Echo, hcsr04.WithLogger(l))
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			l.Warn("closing driver", "err", cerr)
		}
		return nil, nil, err
	}
	closer := func() {
		s.Close()
		if err := p.Close(); err != nil {
			l.Warn("closing driver", "err", err)
		}
	}
	return s, closer, nil
}
