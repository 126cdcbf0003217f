// Package serve implements the instrumented demo HTTP server.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/coral-mesh/coral-collect/internal/cli/helpers"
	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/httpmw"
)

const shutdownTimeout = 10 * time.Second

// maxWorkMillis bounds the CPU burned by a single /work request.
const maxWorkMillis = 10_000

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		addr    string
		profile bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an instrumented demo HTTP server",
		Long: `Run a demo HTTP server whose requests are recorded by the collector.

Every request becomes one collector session. Sampled sessions store a CPU
profile with their custom timers; the others store a duration measurement.
Requests answering with a 5xx status or panicking are discarded.

Endpoints:
  /work?ms=N   burn N milliseconds of CPU inside a custom timer
  /fail        answer 500
  /panic       panic inside the handler

Examples:
  coral-collect serve
  coral-collect serve --addr :9090 --profile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := helpers.LoadEnv(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				env.Config.Server.Addr = addr
			}
			if cmd.Flags().Changed("profile") {
				env.Config.Sampling.Profile = profile
			}

			backend, release, err := env.OpenBackend()
			if err != nil {
				return err
			}
			defer release()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mw := httpmw.New(backend, env.Decision(),
				httpmw.WithProfiler(env.NewProfiler()),
				httpmw.WithLogger(env.Logger),
			)
			return ListenAndServe(ctx, env.Config.Server.Addr, mw.Handler(NewMux()), env.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&profile, "profile", false, "Profile every request (overrides sampling.profile)")

	return cmd
}

// ListenAndServe serves handler on addr until ctx is done, then shuts the
// server down gracefully. Cleartext HTTP/2 is accepted alongside HTTP/1.1.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Demo server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down demo server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// NewMux returns the demo endpoints.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/work", handleWork)
	mux.HandleFunc("/fail", handleFail)
	mux.HandleFunc("/panic", handlePanic)
	return mux
}

func handleWork(w http.ResponseWriter, r *http.Request) {
	ms := 0
	if raw := r.URL.Query().Get("ms"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > maxWorkMillis {
			http.Error(w, fmt.Sprintf("ms must be an integer between 0 and %d", maxWorkMillis), http.StatusBadRequest)
			return
		}
		ms = v
	}

	c := collector.FromContext(r.Context())
	timer := collector.NoTimer
	if c != nil {
		timer = c.StartCustomTimer("demo", "burn")
	}
	iterations := helpers.Burn(r.Context(), time.Duration(ms)*time.Millisecond)
	if c != nil {
		c.StopCustomTimer(timer)
	}

	_, _ = fmt.Fprintf(w, "burned %dms (%d iterations)\n", ms, iterations)
}

func handleFail(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "demo failure", http.StatusInternalServerError)
}

func handlePanic(http.ResponseWriter, *http.Request) {
	panic("demo panic")
}
