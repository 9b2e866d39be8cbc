package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/suPer8Hu/recipe-snap/internal/app"
	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/logging"
	"github.com/suPer8Hu/recipe-snap/internal/metrics"
	"github.com/suPer8Hu/recipe-snap/internal/store/rabbitmq"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		logging.New(config.LogConfig{}).Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.Log).With().Str("component", "worker").Logger()
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, &log, true)
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}
	defer a.Close()

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.Dispatch.RabbitURL,
		Queue:       cfg.Dispatch.RabbitQueue,
		Concurrency: cfg.Dispatch.Concurrency,
		MaxRetries:  3,
	}, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit consumer")
	}
	defer consumer.Close()

	if err := consumer.Run(ctx, a.Engine.Run); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
	}
}
