package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/config"
	"github.com/raaihank/wellmatch/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(rt *cliState) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve closest-match queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				rt.cfg.Server.Port = port
			}
			log := rt.log

			log.Info("Starting wellmatch",
				zap.String("version", version),
				zap.String("commit", commit),
				zap.String("build_date", date),
				zap.Int("port", rt.cfg.Server.Port),
				zap.String("reference_source", rt.cfg.Reference.Source),
				zap.Bool("cache_enabled", rt.cfg.Cache.Enabled),
				zap.Bool("rate_limit_enabled", rt.cfg.Server.RateLimit.Enabled))

			session, release, err := openSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer release()

			err = config.Watch(rt.cfg, func(next *config.Config) {
				if err := log.SetLevel(next.Logging.Level); err != nil {
					log.Warn("Failed to apply log level", zap.Error(err))
					return
				}
				log.Info("Configuration reloaded", zap.String("log_level", next.Logging.Level))
			}, func(err error) {
				log.Warn("Ignoring configuration change", zap.Error(err))
			})
			if err != nil {
				log.Debug("Configuration watch disabled", zap.Error(err))
			}

			srv := server.New(rt.cfg.Server, session, log, version)

			serverErr := make(chan error, 1)
			go func() {
				log.Info("HTTP server listening", zap.Int("port", rt.cfg.Server.Port))
				serverErr <- srv.Start()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			select {
			case err := <-serverErr:
				return err
			case sig := <-shutdown:
				log.Info("Shutdown signal received", zap.String("signal", sig.String()))
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				log.Error("Graceful shutdown failed", zap.Error(err))
				return err
			}
			log.Info("Server shutdown complete")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server.port")
	return cmd
}
