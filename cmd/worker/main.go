package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"regdesk/internal/config"
	"regdesk/internal/mailer"
	"regdesk/internal/queue"
	"regdesk/internal/store"
)

// Worker consumes queued recovery-mail jobs and delivers them over SMTP.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "regdesk:mail")
	}

	sender := mailer.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	logger.Info("worker started, waiting for mail jobs")
	for msg := range messages {
		if msg.Type != mailer.MessageType {
			continue
		}

		job, err := mailer.DecodeJob(msg)
		if err != nil {
			logger.Warnw("malformed mail job dropped", "error", err)
			continue
		}

		if err := sender.Send(job); err != nil {
			// Recovery mail is fire-and-forget; the holder can request
			// another one after the cooldown.
			logger.Errorw("recovery mail delivery failed", "to", job.To, "error", err)
			continue
		}
		logger.Infow("recovery mail sent", "to", job.To)
	}

	logger.Info("worker stopped")
}
