package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"domobot/internal/config"
	"domobot/internal/database"
	"domobot/internal/models"
	"domobot/internal/repository"
	"domobot/internal/scheduler"
	"domobot/internal/service"
	"domobot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	nextID int
	sent   []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.nextID++
	var chatID int64
	var text string
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		chatID = msg.ChatID
		text = msg.Text
	}
	f.sent = append(f.sent, text)
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: chatID}}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeSender) GetSelf() tgbotapi.User { return tgbotapi.User{UserName: "test_bot"} }

func (f *fakeSender) StopReceivingUpdates() {}

func (f *fakeSender) lastSent() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeStatus struct {
	status scheduler.Status
	err    error
}

func (f *fakeStatus) Status(ctx context.Context) (scheduler.Status, error) {
	return f.status, f.err
}

type testBot struct {
	bot    *Bot
	sender *fakeSender
	store  *database.DB
	states *repository.MemoryStateRepository
	status *fakeStatus
}

func newTestBot(t *testing.T, cfg *config.Config) *testBot {
	t.Helper()
	logger := zerolog.New(zerolog.NewConsoleWriter())

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sender := &fakeSender{}
	states := repository.NewMemoryStateRepository(time.Hour)
	messages := service.NewMessageService(db, sender, nil, service.MessageServiceConfig{
		DeleteUserCommands: true,
	}, &logger)
	sessions := session.NewRegistry(session.Options{}, &logger)
	status := &fakeStatus{status: scheduler.Status{Running: true, PollInterval: 10 * time.Second, BatchSize: 50}}

	b := NewBot(sender, cfg, states, messages, sessions, status, &logger)
	return &testBot{bot: b, sender: sender, store: db, states: states, status: status}
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Telegram: config.TelegramConfig{BotToken: "token"},
		Database: config.DatabaseConfig{Path: "test.db"},
		Admins:   []int64{99},
		Bot:      config.BotConfig{RateLimitMessages: 100, RateLimitWindow: 60},
	}
	return cfg
}

func commandUpdate(userID, chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexAny(text, " "); i > 0 {
		length = i
	}
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1000,
			From:      &tgbotapi.User{ID: userID, UserName: "tester"},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
		},
	}
}

func TestHandleSearchOpensSession(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	update := commandUpdate(7, 70, "/search golang patterns")
	tb.bot.handleMessage(ctx, &update)

	id, ok := tb.bot.sessions.Lookup(7)
	require.True(t, ok)

	state, err := tb.states.GetState(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "golang patterns", state.Query)
	assert.Equal(t, id, state.SessionID)
	assert.Len(t, state.MessageIDs, 1)

	// Both the command message and the result carry deletion tasks.
	count, err := tb.store.CountDeleteTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	update := commandUpdate(7, 70, "/search")
	tb.bot.handleMessage(ctx, &update)

	_, ok := tb.bot.sessions.Lookup(7)
	assert.False(t, ok)
	assert.Contains(t, tb.sender.lastSent(), "❌")
}

func TestHandleCloseCancelsSessionTasks(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	search := commandUpdate(7, 70, "/search books")
	tb.bot.handleMessage(ctx, &search)
	sessionID, ok := tb.bot.sessions.Lookup(7)
	require.True(t, ok)

	closeCmd := commandUpdate(7, 70, "/close")
	tb.bot.handleMessage(ctx, &closeCmd)

	_, ok = tb.bot.sessions.Lookup(7)
	assert.False(t, ok)

	state, err := tb.states.GetState(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, state)

	removed, err := tb.store.RemoveSessionTasks(ctx, sessionID)
	require.NoError(t, err)
	assert.Zero(t, removed, "close already canceled the session tasks")
}

func TestHandleCloseWithoutSession(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	update := commandUpdate(7, 70, "/close")
	tb.bot.handleMessage(ctx, &update)

	assert.Contains(t, tb.sender.lastSent(), "Нет активного поиска")
}

func TestCleanupStatusAdminOnly(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	t.Run("NonAdmin", func(t *testing.T) {
		update := commandUpdate(7, 70, "/cleanup_status")
		tb.bot.handleMessage(ctx, &update)
		assert.Contains(t, tb.sender.lastSent(), "администраторам")
	})

	t.Run("Admin", func(t *testing.T) {
		update := commandUpdate(99, 70, "/cleanup_status")
		tb.bot.handleMessage(ctx, &update)
		assert.Contains(t, tb.sender.lastSent(), "Очистка сообщений")
	})

	t.Run("StatusError", func(t *testing.T) {
		tb.status.err = errors.New("store gone")
		update := commandUpdate(99, 70, "/cleanup_status")
		tb.bot.handleMessage(ctx, &update)
		assert.Contains(t, tb.sender.lastSent(), "Не удалось")
	})
}

func TestProcessUpdateRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Bot.RateLimitMessages = 1
	tb := newTestBot(t, cfg)

	first := commandUpdate(7, 70, "/help")
	tb.bot.processUpdate(context.Background(), first)
	require.NotEmpty(t, tb.sender.sent)

	second := commandUpdate(7, 70, "/help")
	tb.bot.processUpdate(context.Background(), second)
	assert.Contains(t, tb.sender.lastSent(), "слишком часто")
}

func TestUnknownCommand(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	update := commandUpdate(7, 70, "/frobnicate")
	tb.bot.handleMessage(ctx, &update)
	assert.Contains(t, tb.sender.lastSent(), "Неизвестная команда")
}

func TestNonCommandIgnored(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	update := commandUpdate(7, 70, "hello")
	update.Message.Entities = nil
	tb.bot.handleMessage(ctx, &update)

	assert.Empty(t, tb.sender.sent)

	count, err := tb.store.CountDeleteTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUserCommandCleanupScheduled(t *testing.T) {
	tb := newTestBot(t, testConfig())
	ctx := context.Background()

	update := commandUpdate(7, 70, "/help")
	tb.bot.handleMessage(ctx, &update)

	tasks, err := tb.store.GetDueDeleteTasks(ctx, models.DefaultBatchSize)
	require.NoError(t, err)
	assert.Empty(t, tasks, "nothing is due yet, the delays are in the future")

	count, err := tb.store.CountDeleteTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "command message and reply are both scheduled")
}
