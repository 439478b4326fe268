package scheduler

import (
	"context"
	"errors"
	"strings"

	"domobot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ExecResult classifies one deletion attempt.
// OK covers "message already gone": the end state is what matters.
// Permanent marks failures that no retry can fix.
type ExecResult struct {
	OK        bool
	Permanent bool
}

// MessageDeleter performs exactly one platform delete call per Execute.
type MessageDeleter interface {
	Execute(ctx context.Context, task *models.DeleteTask) ExecResult
}

type telegramRequester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramDeleter adapts a DeleteTask into a Bot API deleteMessage call.
// Calls are throttled so a large due batch cannot trip platform limits.
type TelegramDeleter struct {
	tg      telegramRequester
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewTelegramDeleter(tg telegramRequester, logger *zerolog.Logger) *TelegramDeleter {
	return &TelegramDeleter{
		tg:      tg,
		limiter: rate.NewLimiter(rate.Limit(models.TelegramDeleteRPS), models.TelegramDeleteBurst),
		logger:  logger,
	}
}

func (d *TelegramDeleter) Execute(ctx context.Context, task *models.DeleteTask) ExecResult {
	if err := d.limiter.Wait(ctx); err != nil {
		// Shutdown mid-batch; leave the task for the next run.
		return ExecResult{}
	}

	_, err := d.tg.Request(tgbotapi.NewDeleteMessage(task.ChatID, task.MessageID))
	if err == nil {
		return ExecResult{OK: true}
	}

	result := classifyDeleteError(err)
	if !result.OK {
		d.logger.Warn().
			Err(err).
			Int64("chat_id", task.ChatID).
			Int("message_id", task.MessageID).
			Bool("permanent", result.Permanent).
			Msg("Message deletion failed")
	}
	return result
}

func classifyDeleteError(err error) ExecResult {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		// Network error or timeout: worth one retry.
		return ExecResult{}
	}

	msg := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(msg, "message to delete not found"):
		// Already gone, which is the state we wanted.
		return ExecResult{OK: true}
	case apiErr.Code == 429:
		return ExecResult{}
	default:
		// Bad ids, revoked rights, messages past the deletion window.
		return ExecResult{Permanent: true}
	}
}
