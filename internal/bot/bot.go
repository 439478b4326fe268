package bot

import (
	"context"
	"os"
	"time"

	"domobot/internal/config"
	"domobot/internal/domain"
	"domobot/internal/scheduler"
	"domobot/internal/service"
	"domobot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StatusReporter exposes the cleanup loop state for the admin command.
type StatusReporter interface {
	Status(ctx context.Context) (scheduler.Status, error)
}

type Bot struct {
	tg       domain.TelegramSender
	config   *config.Config
	states   domain.StateRepository
	messages *service.MessageService
	sessions *session.Registry
	cleanup  StatusReporter
	logger   *zerolog.Logger
}

func NewBot(
	tg domain.TelegramSender,
	config *config.Config,
	states domain.StateRepository,
	messages *service.MessageService,
	sessions *session.Registry,
	cleanup StatusReporter,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tg:       tg,
		config:   config,
		states:   states,
		messages: messages,
		sessions: sessions,
		cleanup:  cleanup,
		logger:   logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		userID := update.Message.From.ID

		if !b.isAdmin(userID) {
			allowed, err := b.states.CheckRateLimit(updateCtx, userID, b.config.Bot.RateLimitMessages, time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
			if err != nil {
				b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
			} else if !allowed {
				b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
				_, _ = b.messages.SendError(updateCtx, update.Message.Chat.ID, "Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
				return
			}
		}

		b.handleMessage(updateCtx, &update)
	})
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.config.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
