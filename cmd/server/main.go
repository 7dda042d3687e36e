package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/wolfdaybr/validapass/internal/api"
	"github.com/wolfdaybr/validapass/internal/config"
	"github.com/wolfdaybr/validapass/internal/mailer"
	"github.com/wolfdaybr/validapass/internal/pkg/distlock"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
	"github.com/wolfdaybr/validapass/internal/pkg/ratelimit"
	"github.com/wolfdaybr/validapass/internal/queue"
	"github.com/wolfdaybr/validapass/internal/repository/postgres"
	"github.com/wolfdaybr/validapass/internal/webhook"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("database open failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		logger.Error("database ping failed", "error", err.Error())
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unavailable, continuing without lock and limiter", "error", err.Error())
			redisClient = nil
		}
	}

	participants := postgres.NewParticipantRepo(db)
	tickets := postgres.NewTicketRepo(db)
	sales := postgres.NewSaleRepo(db)
	webhookLogs := postgres.NewWebhookLogRepo(db)
	emailQueue := postgres.NewEmailQueueRepo(db)

	inlineSender, queueSender := buildSenders(cfg)
	from := mailer.FromAddress(cfg.Mail.FromName, cfg.Mail.FromEmail)
	builder := mailer.NewTicketEmailBuilder(cfg.Event.ValidationBaseURL, cfg.Event.QRImageBaseURL)
	dispatcher := webhook.NewTicketDispatcher(builder, inlineSender, from, emailQueue, cfg.Queue.MaxRetries)

	pipeline := webhook.NewPipeline(
		webhook.NewResolver(),
		webhook.NewCategoryMapper(cfg.Webhook.OfferCategories, cfg.Webhook.DefaultCategory),
		participants, tickets, sales, webhookLogs, dispatcher,
	)
	webhookHandler := webhook.NewHandler(pipeline, cfg.Webhook.ProviderTokens)

	procOpts := queue.Options{
		BatchSize: cfg.Queue.BatchSize,
		SendDelay: cfg.Queue.SendDelay(),
		Backoff:   cfg.Queue.RetryBackoff(),
	}
	if redisClient != nil {
		procOpts.Lock = distlock.NewRedisLock(redisClient, "email-queue", 2*time.Minute)
		procOpts.Limiter = ratelimit.NewSendLimiter(redisClient, "email-send", cfg.Mail.SendRPS)
	}
	processor := queue.NewProcessor(emailQueue, queueSender, from, procOpts)

	handlers := api.NewHandlers(processor, emailQueue, webhookLogs, participants, tickets, dispatcher)
	router := api.SetupRoutes(handlers, webhookHandler, cfg.Server.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "addr", addr, "mail_provider", cfg.Mail.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
}

// buildSenders returns the inline sender used in the webhook request path
// (one attempt, no retry) and the queue sender (retrying client). SES has no
// retrying wrapper; the AWS SDK retries internally.
func buildSenders(cfg *config.Config) (mailer.Sender, mailer.Sender) {
	switch cfg.Mail.Provider {
	case "ses":
		s := mailer.NewSESSender(cfg.Mail.SES.AccessKey, cfg.Mail.SES.SecretKey, cfg.Mail.SES.Region)
		return s, s
	default:
		timeout := time.Duration(cfg.Mail.Resend.TimeoutSeconds) * time.Second
		inline := mailer.NewResendSender(cfg.Mail.Resend.APIKey, cfg.Mail.Resend.BaseURL, timeout)
		retrying := mailer.NewResendSender(cfg.Mail.Resend.APIKey, cfg.Mail.Resend.BaseURL, timeout).WithRetry(2)
		return inline, retrying
	}
}
