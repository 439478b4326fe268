package models

import "time"

const (
	TaskBotMessage   = "bot_message"
	TaskUserCommand  = "user_command"
	TaskSearchResult = "search_result"
)

// DeleteTask is one pending message deletion. At most one active task
// exists per (chat_id, message_id, task_type).
type DeleteTask struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id"`
	DeleteAt  time.Time `json:"delete_at"`
	TaskType  string    `json:"task_type"`
	UserID    int64     `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  string    `json:"metadata,omitempty"`
	Retries   int       `json:"retries"`
}

// Due reports whether the task is eligible for execution at the given time.
func (t *DeleteTask) Due(now time.Time) bool {
	return !t.DeleteAt.After(now)
}

// DeleteRequest is what producers hand to the scheduling API.
// TaskType defaults to TaskBotMessage; UserID, SessionID and Metadata are optional.
type DeleteRequest struct {
	ChatID    int64
	MessageID int
	Delay     time.Duration
	TaskType  string
	UserID    int64
	SessionID string
	Metadata  string
}
