package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventDeletionScheduled = "deletion_scheduled"
	EventMessageDeleted    = "message_deleted"
	EventDeletionRetried   = "deletion_retried"
	EventDeletionDropped   = "deletion_dropped"
	EventSessionCanceled   = "session_canceled"
)

// Drop reasons carried in DeletionEventPayload.Reason.
const (
	ReasonPermanentFailure = "permanent_failure"
	ReasonRetryExhausted   = "retry_exhausted"
)

// DeletionEventPayload is the minimal task snapshot for event consumers.
type DeletionEventPayload struct {
	TaskID    int64  `json:"task_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	TaskType  string `json:"task_type"`
	SessionID string `json:"session_id,omitempty"`
	Retries   int    `json:"retries"`
	Reason    string `json:"reason,omitempty"`
}

// SessionEventPayload describes a bulk cancellation.
type SessionEventPayload struct {
	SessionID string `json:"session_id"`
	Canceled  int64  `json:"canceled"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Unmarshal decodes the event payload into v.
func (e *Event) Unmarshal(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
