package models

import "time"

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultPollInterval cadence of the deletion scheduler loop
	DefaultPollInterval = 10 * time.Second

	// DefaultBatchSize due tasks fetched per scheduler cycle
	DefaultBatchSize = 50

	// DefaultRetryBudget additional attempts after the first failure
	DefaultRetryBudget = 1

	// DefaultRetryDelay cooldown before a failed deletion is retried
	DefaultRetryDelay = 2 * time.Minute

	// DefaultStaleMaxAge tasks older than this are purged regardless of due time
	DefaultStaleMaxAge = 24 * time.Hour

	// DefaultPurgeInterval cadence of the stale-task sweep
	DefaultPurgeInterval = time.Hour

	// DefaultAutoDeleteDelay lifetime of ordinary bot replies
	DefaultAutoDeleteDelay = 180 * time.Second

	// DefaultErrorDeleteDelay error replies disappear quickly
	DefaultErrorDeleteDelay = 5 * time.Second

	// DefaultUserCommandDelay lifetime of the user's own command message
	DefaultUserCommandDelay = 30 * time.Second

	// DefaultRedisTTL время жизни состояния поиска в Redis
	DefaultRedisTTL = 60 * 60 // 1 час в секундах

	// DefaultSessionMaxAge lifetime of an interactive search session
	DefaultSessionMaxAge = time.Hour

	// DefaultSessionLimit upper bound on concurrently tracked sessions
	DefaultSessionLimit = 500

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// TelegramDeleteRPS deletion calls per second against the Bot API
	TelegramDeleteRPS = 25

	// TelegramDeleteBurst burst allowance for deletion calls
	TelegramDeleteBurst = 5
)
