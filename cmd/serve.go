package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/photogroup/internal/grouping"
	"github.com/lehigh-university-libraries/photogroup/internal/handlers"
	"github.com/lehigh-university-libraries/photogroup/internal/metrics"
	"github.com/lehigh-university-libraries/photogroup/internal/signedurl"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the photogroup HTTP API",
		Long: `Starts a JSON API exposing fingerprinting, grouping, signed URL issuance
and photo listing, plus Prometheus metrics on /metrics.

Only files under the configured photo root (photoRoot, PHOTOGROUP_PHOTO_ROOT)
are readable through the API, and the credential file is never served.`,
		Example: `  # Start server on the configured address (default 127.0.0.1:8888)
  photogroup serve

  # Start server on custom address
  photogroup serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.cfg.Address
			}

			handler, err := handlers.New(
				grouping.New(opts.cfg.Concurrency),
				signedurl.New(signedurl.FileCredentialProvider{Path: opts.cfg.CredentialsPath}),
				metrics.New(),
				handlers.Options{
					Threshold:   opts.cfg.Threshold,
					PhotoRoot:   opts.cfg.PhotoRoot,
					Denied:      []string{opts.cfg.CredentialsPath},
					CORSOrigins: opts.cfg.CORSOrigins,
				},
			)
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 15 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Photogroup API available", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (defaults to config address)")

	return cmd
}
