package main

import (
	"context"
	"os/signal"
	"syscall"

	"chatflow/internal/config"
	"chatflow/internal/database"
	"chatflow/internal/queue"
	"chatflow/internal/repository"
	"chatflow/internal/whatsapp"

	"github.com/sirupsen/logrus"
)

// The worker drains the outbound queue filled by DISPATCH_MODE=queue and
// delivers each message through the WhatsApp Cloud API.
func main() {
	cfg := config.LoadConfig()
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	database.SyncConfig(db, cfg, logger)

	conn, err := queue.Dial(cfg.RabbitMQURL, cfg.OutboundQueue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer conn.Close()

	worker := queue.NewWorker(whatsapp.NewClient(cfg), repository.NewMessageRepository(db), logger)
	if err := worker.Run(ctx, conn.Channel(), conn.Queue()); err != nil {
		logger.Errorf("Worker stopped: %v", err)
	}
	logger.Info("Worker shut down")
}
