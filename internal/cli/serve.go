package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	httpAdapter "github.com/netkrida/myhome-sub001/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// Handler builds the HTTP API of app.
func (a *App) Handler(version string) http.Handler {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(a.Logger),
		httpAdapter.WithVersion(version),
		httpAdapter.WithRateLimit(a.Config.Server.RateLimit, a.Config.Server.Burst),
	}
	if a.Config.Server.Metrics {
		opts = append(opts, httpAdapter.WithMetricsHandler(
			promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}),
		))
	}
	return httpAdapter.NewHandler(a.Sessions, opts...)
}

// Serve runs the HTTP API on addr until ctx is cancelled, then drains
// in-flight requests and flushes every live wizard.
func Serve(ctx context.Context, app *App, addr, version string, out io.Writer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(out, "Starting myhome wizard server on %s", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		printSystemMessage(out, "Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			app.Logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			_ = srv.Close()
		}
		app.Sessions.Shutdown(shutdownCtx)
		printSystemMessage(out, "Server stopped")
		return nil
	}
}
