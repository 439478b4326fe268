package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"domobot/internal/events"
)

const Namespace = "domobot"

var (
	DeletionsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "deletions_scheduled_total",
		Help:      "Scheduled message deletions by task type",
	}, []string{"task_type"})

	MessagesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_deleted_total",
		Help:      "Messages removed from Telegram by task type",
	}, []string{"task_type"})

	DeletionsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "deletions_retried_total",
		Help:      "Deletion attempts rescheduled after a transient failure",
	})

	DeletionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "deletions_dropped_total",
		Help:      "Deletion tasks abandoned, by drop reason",
	}, []string{"reason"})

	SessionsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "sessions_canceled_total",
		Help:      "Bulk session cancellations",
	})

	PendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "pending_delete_tasks",
		Help:      "Deletion tasks currently queued",
	})
)

// ObserveBus wires the counters to the lifecycle events. Safe to skip
// when monitoring is disabled, the counters just stay at zero.
func ObserveBus(bus *events.EventBus) {
	if bus == nil {
		return
	}

	bus.Subscribe(events.EventDeletionScheduled, onDeletion(func(p *events.DeletionEventPayload) {
		DeletionsScheduled.WithLabelValues(p.TaskType).Inc()
	}))
	bus.Subscribe(events.EventMessageDeleted, onDeletion(func(p *events.DeletionEventPayload) {
		MessagesDeleted.WithLabelValues(p.TaskType).Inc()
	}))
	bus.Subscribe(events.EventDeletionRetried, onDeletion(func(p *events.DeletionEventPayload) {
		DeletionsRetried.Inc()
	}))
	bus.Subscribe(events.EventDeletionDropped, onDeletion(func(p *events.DeletionEventPayload) {
		DeletionsDropped.WithLabelValues(p.Reason).Inc()
	}))
	bus.Subscribe(events.EventSessionCanceled, func(event *events.Event) error {
		SessionsCanceled.Inc()
		return nil
	})
}

func onDeletion(fn func(*events.DeletionEventPayload)) events.EventHandler {
	return func(event *events.Event) error {
		var payload events.DeletionEventPayload
		if err := event.Unmarshal(&payload); err != nil {
			return err
		}
		fn(&payload)
		return nil
	}
}

// SetPendingTasks publishes the queue depth reported by the poller.
func SetPendingTasks(count int64) {
	PendingTasks.Set(float64(count))
}
