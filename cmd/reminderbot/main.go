package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"reminder-bot/internal/bot"
	"reminder-bot/internal/config"
	"reminder-bot/internal/logger"
	"reminder-bot/internal/repository"
	"reminder-bot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Environment: cfg.AppEnv,
		Level:       cfg.LogLevel,
		Filename:    cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("reminder bot stopped with error", zap.Error(err))
	}
	zl.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	db, err := repository.NewDB(cfg.DatabaseURL, zl)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	taskRepo := repository.NewTaskRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	snoozeRepo := repository.NewSnoozeRepository(db)

	api, err := bot.NewAPI(cfg.TelegramToken, zl)
	if err != nil {
		return err
	}

	reminderSvc := service.NewReminderService(taskRepo, completionRepo, snoozeRepo,
		bot.NewNotifier(api, zl.Named("notifier")), cfg.Location,
		service.WithLogger(zl.Named("scheduler")),
	)
	if err := reminderSvc.Start(ctx); err != nil {
		return err
	}
	defer reminderSvc.Stop()

	taskSvc := service.NewTaskService(taskRepo, reminderSvc, cfg.Location)
	telegramBot := bot.New(api, taskSvc, reminderSvc, cfg.Location, zl.Named("bot"))

	zl.Info("reminder bot started", zap.String("timezone", cfg.Location.String()))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
