package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/suPer8Hu/recipe-snap/internal/app"
	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi/handlers"
	"github.com/suPer8Hu/recipe-snap/internal/job"
	"github.com/suPer8Hu/recipe-snap/internal/logging"
	"github.com/suPer8Hu/recipe-snap/internal/metrics"
	"github.com/suPer8Hu/recipe-snap/internal/store/rabbitmq"
	"github.com/suPer8Hu/recipe-snap/internal/users"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		logging.New(config.LogConfig{}).Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.Log)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, true)
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}
	defer a.Close()

	// runCtx outlives the HTTP server so shutdown can cancel in-flight jobs last
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	var inline *job.InlineDispatcher
	switch cfg.Dispatch.Mode {
	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.Dispatch.RabbitURL, cfg.Dispatch.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbit publisher")
		}
		defer pub.Close()
		a.Engine.UseDispatcher(pub)
	default:
		inline = job.NewInlineDispatcher(a.Engine.Run, cfg.Dispatch.Concurrency, cfg.Dispatch.Concurrency*16, log)
		inline.Start(runCtx)
		a.Engine.UseDispatcher(inline)
	}

	h := handlers.NewHandler(cfg,
		users.NewService(a.DB, cfg.JWTSecret, cfg.TokenTTL, cfg.Points.StartingGrant),
		a.Ledger, a.Engine, job.NewFeedbackRepo(a.DB), log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(cfg, h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("provider", cfg.Provider.Name).
			Str("dispatch", cfg.Dispatch.Mode).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	if inline != nil {
		cancelRuns()
		inline.Stop()
	}
}
