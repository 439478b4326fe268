package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"domobot/internal/models"
)

const deleteTaskColumns = `id, chat_id, message_id, delete_at, task_type, user_id, session_id, created_at, metadata, retries`

// UpsertDeleteTask inserts a deletion task or, when a task for the same
// (chat_id, message_id, task_type) already exists, advances it only if the
// new due time is earlier. The surviving row id is returned either way.
func (db *DB) UpsertDeleteTask(ctx context.Context, task *models.DeleteTask) (int64, error) {
	if task.TaskType == "" {
		task.TaskType = models.TaskBotMessage
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
		// A task may already be due when scheduled with zero delay.
		if task.DeleteAt.Before(task.CreatedAt) {
			task.CreatedAt = task.DeleteAt
		}
	} else if task.DeleteAt.Before(task.CreatedAt) {
		return 0, fmt.Errorf("delete_at %s precedes created_at %s", task.DeleteAt, task.CreatedAt)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO delete_tasks (chat_id, message_id, delete_at, task_type, user_id, session_id, created_at, metadata, retries)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
              ON CONFLICT(chat_id, message_id, task_type) DO UPDATE SET
                  delete_at = excluded.delete_at,
                  user_id = excluded.user_id,
                  session_id = excluded.session_id,
                  created_at = excluded.created_at,
                  metadata = excluded.metadata,
                  retries = 0
              WHERE excluded.delete_at < delete_tasks.delete_at`
	if _, err := tx.ExecContext(ctx, query,
		task.ChatID,
		task.MessageID,
		task.DeleteAt.Unix(),
		task.TaskType,
		task.UserID,
		task.SessionID,
		task.CreatedAt.Unix(),
		task.Metadata,
	); err != nil {
		return 0, fmt.Errorf("failed to upsert delete task: %w", err)
	}

	var id int64
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM delete_tasks WHERE chat_id = ? AND message_id = ? AND task_type = ?`,
		task.ChatID, task.MessageID, task.TaskType,
	)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read upserted task id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	task.ID = id
	return id, nil
}

// GetDueDeleteTasks returns up to limit tasks whose due time has passed,
// earliest first. Tasks stay in the store until removed explicitly.
func (db *DB) GetDueDeleteTasks(ctx context.Context, limit int) ([]models.DeleteTask, error) {
	query := `SELECT ` + deleteTaskColumns + `
              FROM delete_tasks
              WHERE delete_at <= ?
              ORDER BY delete_at ASC
              LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, time.Now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due delete tasks: %w", err)
	}
	defer rows.Close()

	return scanDeleteTasks(rows)
}

// GetSessionTasks returns all tasks belonging to a session, earliest first.
func (db *DB) GetSessionTasks(ctx context.Context, sessionID string) ([]models.DeleteTask, error) {
	query := `SELECT ` + deleteTaskColumns + `
              FROM delete_tasks
              WHERE session_id = ?
              ORDER BY delete_at ASC`
	rows, err := db.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session tasks: %w", err)
	}
	defer rows.Close()

	return scanDeleteTasks(rows)
}

// RemoveDeleteTask removes a single task. Removing a missing id is not an error.
func (db *DB) RemoveDeleteTask(ctx context.Context, id int64) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM delete_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove delete task %d: %w", id, err)
	}
	return nil
}

// RemoveDeleteTasks removes a batch of tasks and returns how many rows went away.
func (db *DB) RemoveDeleteTasks(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := db.db.ExecContext(ctx, `DELETE FROM delete_tasks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove delete tasks: %w", err)
	}
	return result.RowsAffected()
}

// RescheduleDeleteTask pushes a failed task into the future and counts the attempt.
func (db *DB) RescheduleDeleteTask(ctx context.Context, id int64, retryDelay time.Duration) error {
	query := `UPDATE delete_tasks SET delete_at = ?, retries = retries + 1 WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, time.Now().Add(retryDelay).Unix(), id); err != nil {
		return fmt.Errorf("failed to reschedule delete task %d: %w", id, err)
	}
	return nil
}

// RemoveSessionTasks cancels every task of one interactive session.
func (db *DB) RemoveSessionTasks(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, nil
	}

	result, err := db.db.ExecContext(ctx, `DELETE FROM delete_tasks WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove session tasks: %w", err)
	}
	return result.RowsAffected()
}

// RemoveUserTasks cancels every task owned by a user, optionally filtered by type.
func (db *DB) RemoveUserTasks(ctx context.Context, userID int64, taskType string) (int64, error) {
	if userID == 0 {
		return 0, nil
	}

	var result sql.Result
	var err error
	if taskType != "" {
		result, err = db.db.ExecContext(ctx,
			`DELETE FROM delete_tasks WHERE user_id = ? AND task_type = ?`, userID, taskType)
	} else {
		result, err = db.db.ExecContext(ctx,
			`DELETE FROM delete_tasks WHERE user_id = ?`, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to remove user tasks: %w", err)
	}
	return result.RowsAffected()
}

// PurgeStaleTasks drops tasks created longer ago than maxAge, whatever their
// due time. Safety valve against rows that never execute cleanly.
func (db *DB) PurgeStaleTasks(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := db.db.ExecContext(ctx, `DELETE FROM delete_tasks WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale tasks: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		db.logger.Info().Int64("count", purged).Msg("Purged stale delete tasks")
	}
	return purged, nil
}

// CountDeleteTasks returns the number of pending tasks.
func (db *DB) CountDeleteTasks(ctx context.Context) (int, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delete_tasks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count delete tasks: %w", err)
	}
	return count, nil
}

func scanDeleteTasks(rows *sql.Rows) ([]models.DeleteTask, error) {
	var tasks []models.DeleteTask
	for rows.Next() {
		var t models.DeleteTask
		var deleteAt, createdAt int64
		if err := rows.Scan(
			&t.ID, &t.ChatID, &t.MessageID, &deleteAt, &t.TaskType,
			&t.UserID, &t.SessionID, &createdAt, &t.Metadata, &t.Retries,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delete task: %w", err)
		}
		t.DeleteAt = time.Unix(deleteAt, 0)
		t.CreatedAt = time.Unix(createdAt, 0)
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
