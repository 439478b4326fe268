package scheduler

import (
	"context"
	"sync"
	"time"

	"domobot/internal/domain"
	"domobot/internal/events"
	"domobot/internal/models"

	"github.com/rs/zerolog"
)

// Options tune the scheduler loop. Zero values fall back to the defaults
// in models; RetryBudget is a pointer so an explicit 0 (no retries) survives.
type Options struct {
	PollInterval  time.Duration
	BatchSize     int
	RetryBudget   *int
	RetryDelay    time.Duration
	StaleMaxAge   time.Duration
	PurgeInterval time.Duration
	StopTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = models.DefaultPollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = models.DefaultBatchSize
	}
	if o.RetryBudget == nil {
		budget := models.DefaultRetryBudget
		o.RetryBudget = &budget
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = models.DefaultRetryDelay
	}
	if o.StaleMaxAge <= 0 {
		o.StaleMaxAge = models.DefaultStaleMaxAge
	}
	if o.PurgeInterval <= 0 {
		o.PurgeInterval = models.DefaultPurgeInterval
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 30 * time.Second
	}
}

// Status is a point-in-time snapshot for observability.
type Status struct {
	Running      bool
	PollInterval time.Duration
	BatchSize    int
	PendingTasks int
	LastRun      time.Time
}

// DeleteScheduler is the single consumer of due deletion tasks.
type DeleteScheduler struct {
	store   domain.TaskStore
	deleter MessageDeleter
	events  domain.EventPublisher
	opts    Options
	logger  *zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

func NewDeleteScheduler(store domain.TaskStore, deleter MessageDeleter, bus domain.EventPublisher, opts Options, logger *zerolog.Logger) *DeleteScheduler {
	opts.applyDefaults()
	return &DeleteScheduler{
		store:   store,
		deleter: deleter,
		events:  bus,
		opts:    opts,
		logger:  logger,
	}
}

// Start launches the loop. Calling it while already running is a no-op.
func (s *DeleteScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug().Msg("Delete scheduler already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(loopCtx)
	s.logger.Info().
		Dur("poll_interval", s.opts.PollInterval).
		Int("batch_size", s.opts.BatchSize).
		Int("retry_budget", *s.opts.RetryBudget).
		Msg("Delete scheduler started")
}

// Stop signals the loop and waits for the in-flight batch, bounded by StopTimeout.
func (s *DeleteScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(s.opts.StopTimeout):
		s.logger.Warn().Msg("Delete scheduler stop timed out")
	}
	s.logger.Info().Msg("Delete scheduler stopped")
}

// Status reports loop state plus the pending-task count from the store.
func (s *DeleteScheduler) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	st := Status{
		Running:      s.running,
		PollInterval: s.opts.PollInterval,
		BatchSize:    s.opts.BatchSize,
		LastRun:      s.lastRun,
	}
	s.mu.Unlock()

	pending, err := s.store.CountDeleteTasks(ctx)
	if err != nil {
		return st, err
	}
	st.PendingTasks = pending
	return st, nil
}

func (s *DeleteScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	purgeTicker := time.NewTicker(s.opts.PurgeInterval)
	defer purgeTicker.Stop()

	// Process leftovers from a previous run right away.
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		case <-purgeTicker.C:
			if _, err := s.store.PurgeStaleTasks(ctx, s.opts.StaleMaxAge); err != nil {
				s.logger.Error().Err(err).Msg("Stale task purge failed")
			}
		}
	}
}

// runCycle performs one fetch-execute-reconcile pass. Errors are logged and
// swallowed so one bad cycle never kills the loop.
func (s *DeleteScheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	tasks, err := s.store.GetDueDeleteTasks(ctx, s.opts.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch due delete tasks")
		return
	}
	if len(tasks) == 0 {
		return
	}

	var succeeded []int64
	var failed []failedTask

	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		result := s.deleter.Execute(ctx, &tasks[i])
		if result.OK {
			succeeded = append(succeeded, tasks[i].ID)
			s.publishTaskEvent(events.EventMessageDeleted, &tasks[i], "")
		} else {
			failed = append(failed, failedTask{task: &tasks[i], permanent: result.Permanent})
		}
	}

	if len(succeeded) > 0 {
		if _, err := s.store.RemoveDeleteTasks(ctx, succeeded); err != nil {
			s.logger.Error().Err(err).Ints64("ids", succeeded).Msg("Failed to remove completed delete tasks")
		}
	}

	for _, f := range failed {
		s.reconcileFailure(ctx, f)
	}
}

type failedTask struct {
	task      *models.DeleteTask
	permanent bool
}

func (s *DeleteScheduler) reconcileFailure(ctx context.Context, f failedTask) {
	task := f.task

	if f.permanent || task.Retries >= *s.opts.RetryBudget {
		reason := events.ReasonRetryExhausted
		if f.permanent {
			reason = events.ReasonPermanentFailure
		}
		if err := s.store.RemoveDeleteTask(ctx, task.ID); err != nil {
			s.logger.Error().Err(err).Int64("id", task.ID).Msg("Failed to drop delete task")
			return
		}
		s.publishTaskEvent(events.EventDeletionDropped, task, reason)
		s.logger.Warn().
			Int64("chat_id", task.ChatID).
			Int("message_id", task.MessageID).
			Int("retries", task.Retries).
			Str("reason", reason).
			Msg("Delete task dropped")
		return
	}

	if err := s.store.RescheduleDeleteTask(ctx, task.ID, s.opts.RetryDelay); err != nil {
		s.logger.Error().Err(err).Int64("id", task.ID).Msg("Failed to reschedule delete task")
		return
	}
	s.publishTaskEvent(events.EventDeletionRetried, task, "")
}

func (s *DeleteScheduler) publishTaskEvent(eventType string, task *models.DeleteTask, reason string) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishJSON(eventType, events.DeletionEventPayload{
		TaskID:    task.ID,
		ChatID:    task.ChatID,
		MessageID: task.MessageID,
		TaskType:  task.TaskType,
		SessionID: task.SessionID,
		Retries:   task.Retries,
		Reason:    reason,
	})
}
