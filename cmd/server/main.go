package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/meshrtc/sfu/internal/adapters/http"
	sig "github.com/meshrtc/sfu/internal/adapters/signal"
	"github.com/meshrtc/sfu/internal/config"
	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/sfu"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := core.NewRegistry(cfg.MaxParticipantsPerRoom, cfg.RoomGracePeriod)
	relays := sfu.NewManager()
	ctl := sig.NewController(cfg, registry, relays)

	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := registry.SweepIdle(now); removed > 0 {
					log.Info().Int("removed", removed).Msg("idle sweep")
				}
			}
		}
	}()

	r := router.SetupRouter(ctx, cfg, ctl, registry)
	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.SignalingPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SFU server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	registry.Close()
	log.Info().Msg("Server exited gracefully")
}
