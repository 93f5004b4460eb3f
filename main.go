// main.go
//
// Entry point for the apple game server.
// Responsibilities:
//   - Load configuration (.env + environment) and set up zerolog.
//   - Open the SQLite round registry when DATABASE_PATH is set.
//   - Serve the HTTP/WebSocket API and sweep idle rounds in the background.
//   - Shut down gracefully on SIGINT/SIGTERM.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/imbanker-naver/cursor-pjt/internal/config"
	"github.com/imbanker-naver/cursor-pjt/internal/httpserver"
	"github.com/imbanker-naver/cursor-pjt/internal/registry"
	"github.com/imbanker-naver/cursor-pjt/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *registry.Registry
	if cfg.DatabasePath != "" {
		var err error
		reg, err = registry.Open(cfg.DatabasePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open registry")
		}
		defer reg.Close()
		if err := reg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate registry")
		}
	} else {
		log.Warn().Msg("DATABASE_PATH empty; /rounds/current disabled")
	}

	srv := httpserver.New(store.NewMemoryStore(), reg, cfg)
	go janitor(ctx, srv, cfg)

	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Bool("registry", reg != nil).Msg("starting apple-game server")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// janitor evicts finished rounds that have sat idle past cfg.IdleTTL.
func janitor(ctx context.Context, srv *httpserver.Server, cfg config.Config) {
	t := time.NewTicker(cfg.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			srv.Sweep(ctx, cfg.IdleTTL)
		}
	}
}
