package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chatflow/internal/api"
	"chatflow/internal/app"
	"chatflow/internal/config"
	"chatflow/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	if cfg.SchedulerEnabled {
		go func() {
			if err := a.Scheduler.Start(ctx); err != nil {
				logger.WithError(err).Error("Scheduler stopped")
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	webhookHandler := webhook.NewHandler(cfg, a.Contacts, a.Messages, a.Engine, logger)
	automationHandler := api.NewAutomationHandler(a.Rules, a.Logs, a.Scheduled, a.Messages, a.Scheduler, a.Bot, logger)
	router := api.NewRouter(webhookHandler, automationHandler, a.Metrics.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to run server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
}
