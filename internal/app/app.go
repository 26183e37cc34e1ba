package app

import (
	"context"
	"fmt"

	"chatflow/internal/automation"
	"chatflow/internal/cache"
	"chatflow/internal/config"
	"chatflow/internal/database"
	"chatflow/internal/metrics"
	"chatflow/internal/queue"
	"chatflow/internal/repository"
	"chatflow/internal/whatsapp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *gorm.DB

	Rules     *repository.RuleRepository
	Logs      *repository.LogRepository
	Messages  *repository.MessageRepository
	Media     *repository.MediaRepository
	Contacts  *repository.ContactRepository
	Scheduled *repository.ScheduledMessageRepository
	Settings  *repository.SettingRepository

	Metrics   *metrics.Recorder
	Bot       *cache.BotStatus
	Engine    *automation.Engine
	Scheduler *automation.Scheduler

	closers []func() error
}

// New opens the database, migrates it and wires the engine and scheduler
// with the dispatcher selected by DISPATCH_MODE. Redis is optional.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	database.SyncConfig(db, cfg, logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Rules:     repository.NewRuleRepository(db),
		Logs:      repository.NewLogRepository(db),
		Messages:  repository.NewMessageRepository(db),
		Media:     repository.NewMediaRepository(db),
		Contacts:  repository.NewContactRepository(db),
		Scheduled: repository.NewScheduledMessageRepository(db),
		Settings:  repository.NewSettingRepository(db),
		Metrics:   metrics.NewRecorder(),
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	var kv cache.KV
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, bot status served from database only")
		} else {
			kv = cache.NewRedisKV(client)
			a.closers = append(a.closers, client.Close)
		}
	}
	a.Bot = cache.NewBotStatus(a.Settings, kv, logger)

	dispatcher, err := a.newDispatcher()
	if err != nil {
		a.Close()
		return nil, err
	}

	stores := automation.Stores{
		Rules:     a.Rules,
		Logs:      a.Logs,
		Messages:  a.Messages,
		Media:     a.Media,
		Contacts:  a.Contacts,
		Scheduled: a.Scheduled,
	}
	opts := []automation.Option{
		automation.WithLogger(logger),
		automation.WithRecorder(a.Metrics),
		automation.WithBotToggle(a.Bot),
	}
	a.Engine = automation.NewEngine(stores, dispatcher, opts...)
	a.Scheduler = automation.NewScheduler(stores, dispatcher, cfg.SchedulerInterval, opts...)
	return a, nil
}

func (a *App) newDispatcher() (automation.Dispatcher, error) {
	switch a.Config.DispatchMode {
	case config.DispatchNone, "":
		a.Logger.Info("Outbound dispatch disabled, messages are recorded only")
		return nil, nil
	case config.DispatchDirect:
		return whatsapp.NewClient(a.Config), nil
	case config.DispatchQueue:
		conn, err := queue.Dial(a.Config.RabbitMQURL, a.Config.OutboundQueue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		return queue.NewPublisher(conn.Channel(), conn.Queue()), nil
	default:
		return nil, fmt.Errorf("unsupported DISPATCH_MODE %q", a.Config.DispatchMode)
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
