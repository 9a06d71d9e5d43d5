package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/Consult/internal/adapters/http"
	wsignal "github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/app/sfu"
	"github.com/dkeye/Consult/internal/security"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay: token endpoint, signaling and media WebSockets, SFU",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink, closeSink := buildSink(ctx)
	defer closeSink()

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Channels: app.NewChannelManager(cfg.AppID),
		Policy:   app.SimplePolicy{},
		Relays:   sfu.NewRelayManager(),
		Tokens:   security.NewTokenProvider(cfg.Secret, cfg.AppID, cfg.TokenTTL),
		Sink:     sink,
	}
	ctl := wsignal.NewController(o, cfg)

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Consult relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
