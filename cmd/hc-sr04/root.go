package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/derekstavis/hc-sr04/internal/config"
	"github.com/derekstavis/hc-sr04/internal/logging"
)

var (
	configPath string
	overrides  config.Config

	// Resolved by the root command before any sub-command runs.
	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:          "hc-sr04",
		Short:        "Measure distance with an HC-SR04 ultrasonic ranging module",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyOverrides(cmd.Flags(), &c)
			if err := c.Validate(); err != nil {
				return err
			}
			level, _ := logging.ParseLevel(c.Log.Level)
			format, _ := logging.ParseFormat(c.Log.Format)
			cfg = c
			logger = logging.New(cmd.ErrOrStderr(), format, level)
			slog.SetDefault(logger)
			return nil
		},
	}
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", os.Getenv("HCSR04_CONFIG"), "YAML configuration file. Default: $HCSR04_CONFIG")
	f.StringVar(&overrides.Driver, "driver", "", "line driver (periph, cdev, gpiomem)")
	f.StringVar(&overrides.Trigger, "trigger", "", "trigger line")
	f.StringVar(&overrides.Echo, "echo", "", "echo line")
	f.StringVar(&overrides.Chip, "chip", "", "default chip for the cdev driver")
	f.DurationVar(&overrides.PollInterval, "poll-interval", 0, "edge latch poll interval for the gpiomem driver")
	f.StringVar(&overrides.Log.Level, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&overrides.Log.Format, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(readCmd, serveCmd)
}

// applyOverrides copies every flag the user set onto c. Flags left alone do
// not mask values from the configuration file.
func applyOverrides(fs *pflag.FlagSet, c *config.Config) {
	set := map[string]func(){
		"driver":        func() { c.Driver = overrides.Driver },
		"trigger":       func() { c.Trigger = overrides.Trigger },
		"echo":          func() { c.Echo = overrides.Echo },
		"chip":          func() { c.Chip = overrides.Chip },
		"poll-interval": func() { c.PollInterval = overrides.PollInterval },
		"log-level":     func() { c.Log.Level = overrides.Log.Level },
		"log-format":    func() { c.Log.Format = overrides.Log.Format },
		"listen":        func() { c.Listen = overrides.Listen },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}
