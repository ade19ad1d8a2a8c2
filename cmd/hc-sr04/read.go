package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derekstavis/hc-sr04/internal/attr"
)

var (
	readCount    int
	readInterval time.Duration

	readCmd = &cobra.Command{
		Use:   "read",
		Short: "Take measurements and print them, one per line",
		Long: "Take measurements and print each as a decimal line: the echo width in " +
			"microseconds, or -1 when no echo came back in time.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeSensor, err := openSensor(cfg, logger)
			if err != nil {
				return err
			}
			defer closeSensor()

			value := attr.New(s)
			for i := 0; i < readCount; i++ {
				if i > 0 {
					time.Sleep(readInterval)
				}
				v, err := value.Read()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
)

func init() {
	readCmd.Flags().IntVarP(&readCount, "count", "n", 1, "number of measurements")
	// The module needs ~60ms between triggers to let the previous burst fade.
	readCmd.Flags().DurationVar(&readInterval, "interval", 60*time.Millisecond, "pause between measurements")
}
