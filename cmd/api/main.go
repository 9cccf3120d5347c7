package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/config"
	"github.com/gemchat/backend/internal/handler"
	"github.com/gemchat/backend/internal/logger"
	"github.com/gemchat/backend/internal/model/catalog"
	"github.com/gemchat/backend/internal/service/ai"
	"github.com/gemchat/backend/internal/service/chat"
	"github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	completer, closeCompleter, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise completion backend")
	}
	defer func() {
		if err := closeCompleter(); err != nil {
			log.Warn().Err(err).Msg("failed to close completion backend")
		}
	}()

	store := catalog.NewMemoryStore(cfg.AI.ModelOptions(), catalog.SeedThemes())
	controller := turn.NewController(completer, store, turn.WithHistoryLimit(cfg.AI.HistoryLimit))

	dictation := speech.NewServiceFromConfig(cfg.Speech)
	if dictation == nil {
		log.Info().Msg("speech credentials not configured, dictation disabled")
	}

	router := handler.NewRouter(handler.Services{
		Catalog:    store,
		Chat:       chat.NewService(),
		Controller: controller,
		Dictation:  dictation,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("chat backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
