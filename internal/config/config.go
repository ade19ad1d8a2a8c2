// Package config loads the driver configuration.
//
// Defaults are applied first, then the YAML file if one is given; the
// command applies flag overrides on top and calls Validate once. The result
// is passed around by value and never changed afterwards.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	hcsr04 "github.com/derekstavis/hc-sr04"
	"github.com/derekstavis/hc-sr04/internal/logging"
)

// Line drivers.
const (
	DriverPeriph  = "periph"
	DriverCdev    = "cdev"
	DriverGPIOMem = "gpiomem"
)

// DefaultListen is the HTTP address served by default.
const DefaultListen = "127.0.0.1:8787"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete driver configuration.
type Config struct {
	Driver  string `yaml:"driver"`
	Trigger string `yaml:"trigger"`
	Echo    string `yaml:"echo"`

	// Chip is the default chip for the cdev driver.
	Chip string `yaml:"chip"`
	// PollInterval is the edge latch poll interval for the gpiomem driver.
	PollInterval time.Duration `yaml:"poll_interval"`

	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Log Log `yaml:"log"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Driver:          DriverPeriph,
		Trigger:         hcsr04.DefaultTrigger,
		Echo:            hcsr04.DefaultEcho,
		Chip:            "gpiochip0",
		PollInterval:    20 * time.Microsecond,
		Listen:          DefaultListen,
		ShutdownTimeout: 5 * time.Second,
		Log:             Log{Level: "info", Format: "text"},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	c, err := Parse(b)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parsing %s", path)
	}
	return c, nil
}

// Parse returns the defaults overlaid with the YAML document b. Unknown keys
// are rejected.
func Parse(b []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, err
	}
	return c, nil
}

// Validate checks that c can be used to start the driver.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPeriph, DriverCdev, DriverGPIOMem:
	default:
		return errors.Wrapf(ErrInvalid, "unknown driver %q", c.Driver)
	}
	if c.Trigger == "" || c.Echo == "" {
		return errors.Wrap(ErrInvalid, "trigger and echo lines are required")
	}
	if c.Trigger == c.Echo {
		return errors.Wrapf(ErrInvalid, "trigger and echo are both %q", c.Trigger)
	}
	if c.Driver == DriverGPIOMem && c.PollInterval <= 0 {
		return errors.Wrap(ErrInvalid, "poll_interval must be positive")
	}
	if c.ShutdownTimeout < 0 {
		return errors.Wrap(ErrInvalid, "shutdown_timeout must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}
