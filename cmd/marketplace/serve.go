package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openmarket/marketplace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := marketplace.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := app.Close(closeCtx); err != nil {
				logger.Error("Shutdown incomplete", map[string]interface{}{"error": err.Error()})
			}
		}()

		logger.Info("Starting marketplace", map[string]interface{}{
			"version": marketplace.Version,
			"address": cfg.ListenAddress(),
			"storage": cfg.Storage.Provider,
		})
		return app.Serve(ctx)
	},
}
