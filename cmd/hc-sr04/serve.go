package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/derekstavis/hc-sr04/internal/api"
	"github.com/derekstavis/hc-sr04/internal/attr"
	"github.com/derekstavis/hc-sr04/internal/config"
	"github.com/derekstavis/hc-sr04/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the value attribute over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeSensor, err := openSensor(cfg, logger)
		if err != nil {
			return err
		}
		defer closeSensor()

		srv := api.NewServer(attr.New(s), api.ServerOptions{
			Addr:            cfg.Listen,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          logger,
		})
		srv.Start()

		// Handle shutdown signals
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log := logging.For(logger, logging.ComponentCmd)
		log.Info("shutting down")
		if err := srv.Stop(context.Background()); err != nil {
			log.Warn("graceful shutdown", "err", err)
		}
		log.Info("stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&overrides.Listen, "listen", config.DefaultListen, "HTTP listen address")
}
