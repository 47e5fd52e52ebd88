package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/treadpick/infrastructure/relay"
	"github.com/ahrav/treadpick/internal/api"
	"github.com/ahrav/treadpick/internal/logging"
)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := api.NewRouter(api.Dependencies{
				Recommender: a.recommender,
				Feedback:    a.feedback,
				Relay:       relay.NewHandler(a.relay),
				Gatherer:    a.registry,
			}, api.MiddlewareConfig{
				CORSOrigins: cfg.Server.CORSOrigins,
				RateLimit:   cfg.Server.RateLimit,
				RateWindow:  cfg.Server.RateWindow,
			})

			srv := &http.Server{
				Addr:              cfg.Server.Addr(),
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       cfg.Server.ReadTimeout,
				WriteTimeout:      cfg.Server.WriteTimeout,
			}
			return runServer(ctx, srv, cfg.Server.ShutdownTimeout)
		},
	}
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("version", version).Msg("treadpick listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
