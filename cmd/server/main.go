package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/poker/internal/adapters/http"
	"github.com/dkeye/poker/internal/app"
	"github.com/dkeye/poker/internal/app/orch"
	"github.com/dkeye/poker/internal/config"
	"github.com/dkeye/poker/internal/core"
	"github.com/dkeye/poker/internal/events"
	"github.com/dkeye/poker/internal/metrics"
)

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	if err := newCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "poker",
		Short:         "Planning poker rooms over WebSocket.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	reveal, err := core.ParseRevealPolicy(cfg.RevealPolicy)
	if err != nil {
		return err
	}
	policy, err := app.ParsePolicy(cfg.Backpressure)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer np.Close()
		publisher = np
	}

	clock := clockwork.NewRealClock()
	o := &orch.Orchestrator{
		Registry:     app.NewRegistry(),
		Rooms:        core.NewDirectory(clock),
		Policy:       policy,
		RevealPolicy: reveal,
		Events:       publisher,
		Metrics:      metrics.New(reg),
	}

	janitor := &app.Janitor{
		Rooms:       o.Rooms,
		Registry:    o.Registry,
		Clock:       clock,
		Interval:    cfg.SweepInterval,
		IdleTimeout: cfg.IdleTimeout,
		OnDestroy:   o.JanitorHook,
	}
	go janitor.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.NewHandler(ctx, cfg, o, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("reveal_policy", reveal.String()).Str("backpressure", cfg.Backpressure).Msg("poker server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Int("rooms", o.Rooms.Len()).Msg("Server exited gracefully")
	return nil
}
