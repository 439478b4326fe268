package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"domobot/internal/bot"
	"domobot/internal/config"
	"domobot/internal/database"
	"domobot/internal/events"
	"domobot/internal/logging"
	"domobot/internal/metrics"
	"domobot/internal/models"
	"domobot/internal/repository"
	"domobot/internal/scheduler"
	"domobot/internal/service"
	"domobot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateRepo := initStateRepository(ctx, cfg, logger)

	eventBus := events.NewEventBus()
	subscribeDeletionLogs(eventBus, logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.ObserveBus(eventBus)
		metricsServer := metrics.NewServer(fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), logger)
		go func() {
			if err := metricsServer.Listen(); err != nil {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
		defer func() {
			_ = metricsServer.Shutdown(context.Background())
		}()
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	messageService := service.NewMessageService(db, service.NewTelegramSender(botAPI), eventBus, service.MessageServiceConfig{
		AutoDeleteDelay:    cfg.Messages.AutoDeleteDelay(),
		ErrorDeleteDelay:   cfg.Messages.ErrorDeleteDelay(),
		UserCommandDelay:   cfg.Messages.UserCommandDelay(),
		DeleteUserCommands: cfg.Messages.DeleteUserCommands,
	}, logger)

	deleter := scheduler.NewTelegramDeleter(botAPI, logger)
	cleanup := scheduler.NewDeleteScheduler(db, deleter, eventBus, scheduler.Options{
		PollInterval:  cfg.Cleanup.PollInterval(),
		BatchSize:     cfg.Cleanup.BatchSize,
		RetryBudget:   cfg.Cleanup.RetryBudget,
		RetryDelay:    cfg.Cleanup.RetryDelay(),
		StaleMaxAge:   cfg.Cleanup.StaleMaxAge(),
		PurgeInterval: cfg.Cleanup.PurgeInterval(),
	}, logger)
	cleanup.Start(ctx)
	defer cleanup.Stop()

	if cfg.Monitoring.PrometheusEnabled {
		go reportPendingTasks(ctx, cleanup, cfg.Cleanup.PollInterval(), logger)
	}

	sessions := session.NewRegistry(session.Options{
		MaxAge: cfg.Sessions.MaxAge(),
		Limit:  cfg.Sessions.Limit,
		OnEvict: func(sessionID string) {
			evictCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := messageService.CancelSession(evictCtx, sessionID); err != nil {
				logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to cancel evicted session")
			}
		},
	}, logger)

	telegramBot := bot.NewBot(service.NewTelegramSender(botAPI), cfg, stateRepo, messageService, sessions, cleanup, logger)

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)
	telegramBot.Stop()

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.Component(baseLogger, "bot-main")
	return cfg, logger, closer, nil
}

func initStateRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *repository.FailoverStateRepository {
	var primary *repository.RedisStateRepository
	ttl := time.Duration(models.DefaultRedisTTL) * time.Second

	if cfg.Redis.Address != "" {
		redisClient := repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
		primary = repository.NewRedisStateRepository(redisClient, ttl)
	} else {
		primary = repository.NewRedisStateRepository(nil, ttl)
	}

	fallback := repository.NewMemoryStateRepository(ttl)
	return repository.NewFailoverStateRepository(primary, fallback, logger)
}

// reportPendingTasks refreshes the queue-depth gauge at poll cadence.
func reportPendingTasks(ctx context.Context, cleanup *scheduler.DeleteScheduler, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := cleanup.Status(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to read cleanup status")
				continue
			}
			metrics.SetPendingTasks(int64(status.PendingTasks))
		}
	}
}

func subscribeDeletionLogs(bus *events.EventBus, logger *zerolog.Logger) {
	dropped := func(ev *events.Event) error {
		var payload events.DeletionEventPayload
		if err := ev.Unmarshal(&payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Warn().
			Int64("chat_id", payload.ChatID).
			Int("message_id", payload.MessageID).
			Str("reason", payload.Reason).
			Msg("Deletion task dropped")
		return nil
	}

	bus.Subscribe(events.EventDeletionDropped, dropped)
}
