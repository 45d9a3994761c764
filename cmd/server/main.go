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

	"huddle/internal/adapters/chat"
	router "huddle/internal/adapters/http"
	"huddle/internal/app"
	"huddle/internal/auth"
	"huddle/internal/config"
	"huddle/internal/store"
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

	st := store.Open(cfg.DatabaseURL)
	defer st.Close()
	if err := st.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to init schema")
	}

	registry := app.NewRegistry()
	notifier := app.NewNotifier(registry)
	messaging := app.NewMessaging(st, notifier, cfg.HistoryLimit, cfg.HistoryMaxLimit)
	moderation := app.NewModeration(st, notifier, messaging, cfg.KickQuorum)
	presence := app.NewPresence(st, notifier)
	reaper := app.NewReaper(st, notifier, cfg.ChannelTTL)
	authSvc := auth.NewService(st)

	ctl := &chat.ChatWSController{
		Cfg:        cfg,
		Auth:       authSvc,
		Store:      st,
		Registry:   registry,
		Moderation: moderation,
		Messaging:  messaging,
		Presence:   presence,
		Reaper:     reaper,
	}

	r := router.SetupRouter(ctx, cfg, authSvc, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("huddle server started")
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
	log.Info().Msg("Server exited gracefully")
}
