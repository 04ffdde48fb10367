// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/bulk-messenger/internal/channel"
	"github.com/unclebandit/bulk-messenger/internal/config"
	"github.com/unclebandit/bulk-messenger/internal/controller"
	"github.com/unclebandit/bulk-messenger/internal/db"
	"github.com/unclebandit/bulk-messenger/internal/handler"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/middleware"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/queue"
	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/router"
	"github.com/unclebandit/bulk-messenger/internal/scheduler"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if envErr != nil {
		log.Warn().Msg("⚠️ no .env file found, relying on OS environment variables")
	}
	log.Info().Msg("starting bulk messenger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Customizer and stores
	customizer := service.NewCustomizer(log)
	if cfg.Data.RulesFile != "" {
		n, err := customizer.LoadRulesFile(cfg.Data.RulesFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Data.RulesFile).Msg("failed to load customization rules")
		}
		log.Info().Int("rules", n).Msg("loaded customization rules")
	}

	templates := service.NewTemplateService(repository.NewTemplateRepository(cfg.Data.TemplatesDir, log), customizer, log)
	if err := templates.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}
	if len(templates.List()) == 0 {
		n, err := templates.SeedDefaults()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed default templates")
		}
		log.Info().Int("templates", n).Msg("seeded default templates")
	}

	contacts := service.NewContactService(repository.NewContactRepository(cfg.Data.ContactsDir, log), log)

	// Delivery channels
	emailSender, err := channel.NewEmailSender(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize email channel")
	}
	smsSender, err := channel.NewSMSSender(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sms channel")
	}

	// Delivery log
	var (
		conn       *sql.DB
		deliveries repository.DeliveryRepositoryInterface
	)
	if cfg.Database.Enabled {
		conn, err = db.NewPostgres(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer conn.Close()
		if err := db.MigrateUp(conn); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		deliveries = &repository.DeliveryRepository{DB: conn}
		log.Info().Msg("✅ connected to PostgreSQL")
	}

	// Delivery events
	var events queue.Queue
	switch {
	case cfg.AMQP.Enabled:
		q, err := queue.NewAMQPQueue(cfg.AMQP.URL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		events = q
		log.Info().Msg("delivery events published to RabbitMQ")
	case deliveries != nil:
		q := queue.NewInMemoryQueue(log)
		if err := queue.StartDeliveryRecorder(q, deliveries, log); err != nil {
			log.Fatal().Err(err).Msg("failed to start delivery recorder")
		}
		events = q
	}

	campaigns := &service.CampaignService{
		Email:      emailSender,
		SMS:        smsSender,
		Customizer: customizer,
		Templates:  templates,
		Events:     events,
		Deliveries: deliveries,
		Sender:     cfg.Sender,
		Log:        log.WithComponent("campaign"),
	}

	// Scheduler
	sched := scheduler.New(repository.NewTaskRepository(cfg.Data.TasksFile), campaigns, log)
	sched.DefaultTimezone = cfg.Campaign.Timezone
	sched.DefaultDelay = func(ch model.Channel) time.Duration { return cfg.Campaign.DelayFor(string(ch)) }
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	// Optional Redis rate limiting
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = db.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("connected to Redis")
	}

	r := router.New(router.Deps{
		Middleware: middleware.New(rdb, log),
		Messaging: &controller.MessagingController{
			Customizer: customizer,
			Campaigns:  campaigns,
			Contacts:   contacts,
			Tasks:      sched,
			Delays:     cfg.Campaign,
			Log:        log,
		},
		Templates: handler.NewTemplateHandler(templates, log),
		Tasks:     handler.NewTaskHandler(sched, log),
		APILimit:  cfg.Redis.APILimit,
		APIWindow: cfg.Redis.APIWindow,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("🚀 HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		sched.Stop()
		if events != nil {
			events.Close()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
