package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/openml-client/pkg/backend"
	"github.com/Sternrassler/openml-client/pkg/cache"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/logging"
	"github.com/Sternrassler/openml-client/pkg/metrics"
	"github.com/Sternrassler/openml-client/pkg/resource"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a caching HTTP proxy in front of the OpenML API",
		Long: `Serve exposes the OpenML API through the local response cache:

  GET /api/<version>/<path>   proxied GET, cached
  GET /health                 liveness
  GET /ready                  cache backend reachable
  GET /metrics                Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := flags.newBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, addr, newServeMux(b, timeout))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&timeout, "request-timeout", 30*time.Second, "upper bound for one proxied request, retries included")
	return cmd
}

// newServeMux registers the proxy handlers.
func newServeMux(b *backend.Backend, timeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(b.Cache()))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/", apiProxyHandler(b, timeout))
	return mux
}

// serve runs the server until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	logger := logging.NewLogger("serve")
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting OpenML proxy server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down OpenML proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := c.Ping(ctx); err != nil {
			http.Error(w, fmt.Sprintf("cache not ready: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// apiProxyHandler serves GET /api/<version>/<path> from the transport of
// <version>. Responses are cached; ?reset_cache=true forces a refetch.
func apiProxyHandler(b *backend.Backend, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Example: /api/v1/task/31 -> version v1, path task/31
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		versionName, path, _ := strings.Cut(rest, "/")
		version, err := resource.ParseAPIVersion(versionName)
		if err != nil || path == "" {
			http.Error(w, "expected /api/<version>/<path>", http.StatusNotFound)
			return
		}
		transport := b.Transport(version)
		if transport == nil {
			http.Error(w, fmt.Sprintf("API %s is not configured", version), http.StatusNotFound)
			return
		}

		query := r.URL.Query()
		reset := query.Get("reset_cache") == "true"
		query.Del("reset_cache")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp, err := transport.Get(ctx, path, client.GetOptions{
			Params:     query,
			UseCache:   true,
			ResetCache: reset,
		})
		if err != nil {
			writeProxyError(w, err)
			return
		}

		if contentType := resp.Header.Get("Content-Type"); contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		if resp.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Body)
	}
}

// writeProxyError passes upstream client errors through and reports
// everything else as 502.
func writeProxyError(w http.ResponseWriter, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass == client.ErrorClassClient && !apiErr.Exhausted {
		w.WriteHeader(apiErr.StatusCode)
		w.Write(apiErr.Body)
		return
	}
	http.Error(w, fmt.Sprintf("OpenML request failed: %v", err), http.StatusBadGateway)
}
