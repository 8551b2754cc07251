package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gamedesk/backend/internal/ai"
	"github.com/gamedesk/backend/internal/config"
	"github.com/gamedesk/backend/internal/db"
	httpapi "github.com/gamedesk/backend/internal/http"
	"github.com/gamedesk/backend/internal/push"
	"github.com/gamedesk/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "gamedesk-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var assistant ai.Assistant
	if cfg.AssistantBaseURL == "" {
		assistant = &ai.MockAssistant{}
		logger.Info().Msg("using mock assistant")
	} else {
		assistant = &ai.DifyAssistant{
			BaseURL: cfg.AssistantBaseURL,
			APIKey:  cfg.AssistantAPIKey,
			Client:  &http.Client{Timeout: cfg.RequestTimeout},
		}
	}

	hub := push.NewHub()
	sessions := &service.SessionService{
		Store:           store,
		Assistant:       assistant,
		Hub:             hub,
		Logger:          logger,
		BaselineScore:   cfg.BaselineScore,
		WaitPerPosition: cfg.WaitPerPosition,
	}

	router := httpapi.Router(cfg, store, sessions, hub, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
