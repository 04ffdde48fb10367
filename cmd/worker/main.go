// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/unclebandit/bulk-messenger/internal/config"
	"github.com/unclebandit/bulk-messenger/internal/db"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/queue"
	"github.com/unclebandit/bulk-messenger/internal/repository"
)

// The worker drains delivery events from RabbitMQ into the Postgres delivery log.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File).WithComponent("worker")
	if envErr != nil {
		log.Warn().Msg("⚠️ no .env file found, relying on OS environment variables")
	}

	conn, err := db.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()
	if err := db.MigrateUp(conn); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	q, err := queue.NewAMQPQueue(cfg.AMQP.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, q, &repository.DeliveryRepository{DB: conn}, log); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}

// run records deliveries until ctx ends, then closes q.
func run(ctx context.Context, q queue.Queue, repo repository.DeliveryRepositoryInterface, log *logger.Logger) error {
	if err := queue.StartDeliveryRecorder(q, repo, log); err != nil {
		q.Close()
		return err
	}
	log.Info().Str("topic", queue.DeliveryTopic).Msg("worker running, waiting for delivery events...")

	<-ctx.Done()
	return q.Close()
}
