package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/wolfdaybr/validapass/internal/config"
	"github.com/wolfdaybr/validapass/internal/mailer"
	"github.com/wolfdaybr/validapass/internal/pkg/distlock"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
	"github.com/wolfdaybr/validapass/internal/pkg/ratelimit"
	"github.com/wolfdaybr/validapass/internal/queue"
	"github.com/wolfdaybr/validapass/internal/repository/postgres"
)

// The worker process runs the email queue loop and the recovery pass. It can
// run alongside the server; the Redis lock keeps batch runs single-flight.
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

	emailQueue := postgres.NewEmailQueueRepo(db)
	from := mailer.FromAddress(cfg.Mail.FromName, cfg.Mail.FromEmail)
	sender := buildSender(cfg)

	opts := queue.Options{
		BatchSize: cfg.Queue.BatchSize,
		SendDelay: cfg.Queue.SendDelay(),
		Backoff:   cfg.Queue.RetryBackoff(),
	}
	if redisClient != nil {
		opts.Lock = distlock.NewRedisLock(redisClient, "email-queue", 2*time.Minute)
		opts.Limiter = ratelimit.NewSendLimiter(redisClient, "email-send", cfg.Mail.SendRPS)
	}
	processor := queue.NewProcessor(emailQueue, sender, from, opts)

	worker := queue.NewWorker(processor, time.Duration(cfg.Queue.ProcessIntervalSecs)*time.Second)
	recovery := queue.NewRecoveryWorker(emailQueue,
		time.Duration(cfg.Queue.RecoveryIntervalSecs)*time.Second,
		cfg.Queue.StaleSendingAge())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		recovery.Start(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	logger.Info("worker stopped")
}

func buildSender(cfg *config.Config) mailer.Sender {
	switch cfg.Mail.Provider {
	case "ses":
		return mailer.NewSESSender(cfg.Mail.SES.AccessKey, cfg.Mail.SES.SecretKey, cfg.Mail.SES.Region)
	default:
		timeout := time.Duration(cfg.Mail.Resend.TimeoutSeconds) * time.Second
		return mailer.NewResendSender(cfg.Mail.Resend.APIKey, cfg.Mail.Resend.BaseURL, timeout).WithRetry(2)
	}
}
