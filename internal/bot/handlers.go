package bot

import (
	"context"
	"fmt"
	"strings"

	"domobot/internal/models"
	"domobot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, update *tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := update.Message.Text
	l := zerolog.Ctx(ctx)

	l.Debug().
		Int64("user_id", userID).
		Str("username", update.Message.From.UserName).
		Str("text", text).
		Msg("Handling message")

	if !strings.HasPrefix(text, "/") {
		return
	}

	// The command itself is also cleanup material.
	if _, err := b.messages.DeleteUserCommand(ctx, chatID, update.Message.MessageID, userID); err != nil {
		l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to schedule command cleanup")
	}

	command := update.Message.Command()
	args := strings.TrimSpace(update.Message.CommandArguments())

	switch command {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(ctx, chatID)
	case "search":
		b.handleSearch(ctx, chatID, userID, args)
	case "close":
		b.handleClose(ctx, chatID, userID)
	case "cleanup_status":
		b.handleCleanupStatus(ctx, chatID, userID)
	default:
		_, _ = b.messages.SendError(ctx, chatID, "Неизвестная команда. Используйте /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Привет! Я найду то, что вы ищете, и приберу за собой.\nИспользуйте /search <запрос>.")
	if _, err := b.messages.SendWithAutoDelete(ctx, msg, service.AutoDeleteOptions{}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send start reply")
	}
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) {
	text := "*Команды*\n" +
		"/search <запрос> — начать поиск\n" +
		"/close — закрыть поиск и убрать его сообщения\n" +
		"/help — эта справка\n\n" +
		"Сообщения бота удаляются автоматически."
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	if _, err := b.messages.SendWithAutoDelete(ctx, msg, service.AutoDeleteOptions{}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send help reply")
	}
}

func (b *Bot) handleSearch(ctx context.Context, chatID, userID int64, query string) {
	l := zerolog.Ctx(ctx)

	if query == "" {
		_, _ = b.messages.SendError(ctx, chatID, "Укажите запрос: /search <запрос>")
		return
	}

	sessionID := b.sessions.Open(userID)

	state := &models.SearchState{
		UserID:    userID,
		SessionID: sessionID,
		Query:     query,
		Page:      1,
	}
	if err := b.states.SetState(ctx, state); err != nil {
		l.Error().Err(err).Int64("user_id", userID).Msg("Failed to persist search state")
	}

	text := fmt.Sprintf("🔍 *Поиск:* %s\n\nРезультаты будут удалены автоматически. /close завершает поиск.", query)
	sent, err := b.messages.SendSearchResult(ctx, chatID, text, userID, sessionID)
	if err != nil {
		l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send search result")
		return
	}

	state.MessageIDs = append(state.MessageIDs, sent.MessageID)
	if err := b.states.SetState(ctx, state); err != nil {
		l.Error().Err(err).Int64("user_id", userID).Msg("Failed to update search state")
	}
}

// handleClose ends the user's search session: its pending deletions are
// canceled in bulk and the cached state dropped.
func (b *Bot) handleClose(ctx context.Context, chatID, userID int64) {
	l := zerolog.Ctx(ctx)

	sessionID, ok := b.sessions.Close(userID)
	if !ok {
		_, _ = b.messages.SendError(ctx, chatID, "Нет активного поиска.")
		return
	}

	count, err := b.messages.CancelSession(ctx, sessionID)
	if err != nil {
		l.Error().Err(err).Str("session_id", sessionID).Msg("Failed to cancel session tasks")
	}
	if err := b.states.ClearState(ctx, userID); err != nil {
		l.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear search state")
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Поиск закрыт, отменено удалений: %d", count))
	if _, err := b.messages.SendWithAutoDelete(ctx, msg, service.AutoDeleteOptions{UserID: userID}); err != nil {
		l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send close reply")
	}
}

func (b *Bot) handleCleanupStatus(ctx context.Context, chatID, userID int64) {
	if !b.isAdmin(userID) {
		_, _ = b.messages.SendError(ctx, chatID, "Команда доступна только администраторам.")
		return
	}

	status, err := b.cleanup.Status(ctx)
	if err != nil {
		_, _ = b.messages.SendError(ctx, chatID, "Не удалось получить статус очистки.")
		return
	}

	running := "да"
	if !status.Running {
		running = "нет"
	}
	text := fmt.Sprintf(
		"*Очистка сообщений*\nРаботает: %s\nИнтервал: %s\nПачка: %d\nВ очереди: %d\nПоследний цикл: %s",
		running,
		status.PollInterval,
		status.BatchSize,
		status.PendingTasks,
		status.LastRun.Format("15:04:05"),
	)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	if _, err := b.messages.SendWithAutoDelete(ctx, msg, service.AutoDeleteOptions{UserID: userID}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send status reply")
	}
}
