package service

import (
	"context"
	"fmt"
	"time"

	"domobot/internal/domain"
	"domobot/internal/events"
	"domobot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MessageService is the producer-facing entry point of the deletion core:
// it sends messages and records their future deletion in the task store.
// It never talks to the platform to delete anything; that is the scheduler's job.
type MessageService struct {
	store            domain.TaskStore
	tg               domain.TelegramSender
	eventBus         domain.EventPublisher
	autoDeleteDelay  time.Duration
	errorDelay       time.Duration
	userCommandDelay time.Duration
	deleteCommands   bool
	logger           *zerolog.Logger
}

type MessageServiceConfig struct {
	AutoDeleteDelay    time.Duration
	ErrorDeleteDelay   time.Duration
	UserCommandDelay   time.Duration
	DeleteUserCommands bool
}

func NewMessageService(store domain.TaskStore, tg domain.TelegramSender, bus domain.EventPublisher, cfg MessageServiceConfig, logger *zerolog.Logger) *MessageService {
	if cfg.AutoDeleteDelay <= 0 {
		cfg.AutoDeleteDelay = models.DefaultAutoDeleteDelay
	}
	if cfg.ErrorDeleteDelay <= 0 {
		cfg.ErrorDeleteDelay = models.DefaultErrorDeleteDelay
	}
	if cfg.UserCommandDelay <= 0 {
		cfg.UserCommandDelay = models.DefaultUserCommandDelay
	}

	return &MessageService{
		store:            store,
		tg:               tg,
		eventBus:         bus,
		autoDeleteDelay:  cfg.AutoDeleteDelay,
		errorDelay:       cfg.ErrorDeleteDelay,
		userCommandDelay: cfg.UserCommandDelay,
		deleteCommands:   cfg.DeleteUserCommands,
		logger:           logger,
	}
}

// ScheduleDeletion records a deletion task for an existing message.
// A negative delay is a contract violation; zero means due on the next
// scheduler cycle. Duplicate keys collapse to the earliest due time.
func (s *MessageService) ScheduleDeletion(ctx context.Context, req models.DeleteRequest) (int64, error) {
	if req.Delay < 0 {
		return 0, fmt.Errorf("negative deletion delay %s for chat %d message %d", req.Delay, req.ChatID, req.MessageID)
	}
	if req.TaskType == "" {
		req.TaskType = models.TaskBotMessage
	}

	now := time.Now()
	task := &models.DeleteTask{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		DeleteAt:  now.Add(req.Delay),
		TaskType:  req.TaskType,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		CreatedAt: now,
		Metadata:  req.Metadata,
	}

	id, err := s.store.UpsertDeleteTask(ctx, task)
	if err != nil {
		return 0, fmt.Errorf("failed to schedule deletion: %w", err)
	}

	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(events.EventDeletionScheduled, events.DeletionEventPayload{
			TaskID:    id,
			ChatID:    req.ChatID,
			MessageID: req.MessageID,
			TaskType:  req.TaskType,
			SessionID: req.SessionID,
		})
	}

	s.logger.Debug().
		Int64("chat_id", req.ChatID).
		Int("message_id", req.MessageID).
		Str("task_type", req.TaskType).
		Dur("delay", req.Delay).
		Msg("Deletion scheduled")
	return id, nil
}

// CancelSession drops every pending deletion of one interactive session.
func (s *MessageService) CancelSession(ctx context.Context, sessionID string) (int64, error) {
	count, err := s.store.RemoveSessionTasks(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel session %s: %w", sessionID, err)
	}

	if count > 0 {
		if s.eventBus != nil {
			_ = s.eventBus.PublishJSON(events.EventSessionCanceled, events.SessionEventPayload{
				SessionID: sessionID,
				Canceled:  count,
			})
		}
		s.logger.Info().Str("session_id", sessionID).Int64("count", count).Msg("Session deletions canceled")
	}
	return count, nil
}

// CancelUser drops every pending deletion owned by a user, optionally by type.
func (s *MessageService) CancelUser(ctx context.Context, userID int64, taskType string) (int64, error) {
	count, err := s.store.RemoveUserTasks(ctx, userID, taskType)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel user %d tasks: %w", userID, err)
	}
	return count, nil
}

// SendWithAutoDelete sends a message and schedules it for deletion after the
// default reply lifetime (or opts.Delay when set).
func (s *MessageService) SendWithAutoDelete(ctx context.Context, msg tgbotapi.Chattable, opts AutoDeleteOptions) (tgbotapi.Message, error) {
	sent, err := s.tg.Send(msg)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("failed to send message: %w", err)
	}

	delay := s.autoDeleteDelay
	if opts.Delay > 0 {
		delay = opts.Delay
	}

	_, err = s.ScheduleDeletion(ctx, models.DeleteRequest{
		ChatID:    sent.Chat.ID,
		MessageID: sent.MessageID,
		Delay:     delay,
		TaskType:  opts.taskTypeOrDefault(),
		UserID:    opts.UserID,
		SessionID: opts.SessionID,
	})
	if err != nil {
		// The message went out; a missing cleanup record must not fail the caller.
		s.logger.Error().Err(err).Int64("chat_id", sent.Chat.ID).Int("message_id", sent.MessageID).Msg("Failed to schedule auto-delete")
	}
	return sent, nil
}

// AutoDeleteOptions tags an outgoing message for cleanup.
type AutoDeleteOptions struct {
	Delay     time.Duration
	TaskType  string
	UserID    int64
	SessionID string
}

func (o AutoDeleteOptions) taskTypeOrDefault() string {
	if o.TaskType == "" {
		return models.TaskBotMessage
	}
	return o.TaskType
}

// SendError sends a short-lived error reply.
func (s *MessageService) SendError(ctx context.Context, chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, "❌ "+text)
	return s.SendWithAutoDelete(ctx, msg, AutoDeleteOptions{Delay: s.errorDelay})
}

// SendSearchResult sends a session-tagged result message so that closing the
// session cancels its pending deletion.
func (s *MessageService) SendSearchResult(ctx context.Context, chatID int64, text string, userID int64, sessionID string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	return s.SendWithAutoDelete(ctx, msg, AutoDeleteOptions{
		TaskType:  models.TaskSearchResult,
		UserID:    userID,
		SessionID: sessionID,
	})
}

// DeleteUserCommand schedules removal of the command message the user sent,
// when that behavior is enabled. Returns true if a task was recorded.
func (s *MessageService) DeleteUserCommand(ctx context.Context, chatID int64, messageID int, userID int64) (bool, error) {
	if !s.deleteCommands {
		return false, nil
	}

	_, err := s.ScheduleDeletion(ctx, models.DeleteRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Delay:     s.userCommandDelay,
		TaskType:  models.TaskUserCommand,
		UserID:    userID,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
