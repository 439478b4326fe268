package domain

import (
	"context"
	"time"

	"domobot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TaskStore is the durable store of pending deletion tasks.
type TaskStore interface {
	UpsertDeleteTask(ctx context.Context, task *models.DeleteTask) (int64, error)
	GetDueDeleteTasks(ctx context.Context, limit int) ([]models.DeleteTask, error)
	RemoveDeleteTask(ctx context.Context, id int64) error
	RemoveDeleteTasks(ctx context.Context, ids []int64) (int64, error)
	RescheduleDeleteTask(ctx context.Context, id int64, retryDelay time.Duration) error
	RemoveSessionTasks(ctx context.Context, sessionID string) (int64, error)
	RemoveUserTasks(ctx context.Context, userID int64, taskType string) (int64, error)
	PurgeStaleTasks(ctx context.Context, maxAge time.Duration) (int64, error)
	CountDeleteTasks(ctx context.Context) (int, error)
}

// StateRepository keeps ephemeral search-flow state per user.
type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.SearchState, error)
	SetState(ctx context.Context, state *models.SearchState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// MessageScheduler is the producer-facing surface of the deletion core.
type MessageScheduler interface {
	ScheduleDeletion(ctx context.Context, req models.DeleteRequest) (int64, error)
	CancelSession(ctx context.Context, sessionID string) (int64, error)
	CancelUser(ctx context.Context, userID int64, taskType string) (int64, error)
}
