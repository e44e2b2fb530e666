package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/chat-recall/internal/app"
	"github.com/suPer8Hu/chat-recall/internal/chat"
	"github.com/suPer8Hu/chat-recall/internal/config"
	"github.com/suPer8Hu/chat-recall/internal/httpapi"
	"github.com/suPer8Hu/chat-recall/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-recall/internal/logger"
	"github.com/suPer8Hu/chat-recall/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	l := logger.New("chat-recall-api", cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = l.WithContext(ctx)

	a, err := app.New(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("init services")
	}
	defer a.Close()

	// without a broker the API still serves everything but /chat/async/
	var pub chat.JobPublisher
	if p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		l.Warn().Err(err).Msg("rabbitmq unavailable, async chat disabled")
	} else {
		defer p.Close()
		pub = p
	}

	h := handlers.NewHandler(a.DB, cfg, a.Chat, pub)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(cfg, h),
	}

	go func() {
		l.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	l.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("graceful shutdown failed")
	}
}
