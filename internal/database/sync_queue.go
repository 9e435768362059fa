package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"
)

const syncTaskColumns = `id, task_type, reservation_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateSyncTask persists a sheet task. An empty status means pending.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncPending
	}
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, reservation_id, payload, status, retry_count, last_error, created_at, next_retry_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.ReservationID, task.Payload, task.Status,
		task.RetryCount, task.LastError, now, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	if task.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get sync task id: %w", err)
	}
	task.CreatedAt = now
	return nil
}

func (db *DB) GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error) {
	tasks, err := db.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, domain.NotFound("sync task", id)
	}
	return &tasks[0], nil
}

// GetPendingSyncTasks returns due pending/retry tasks, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue
		 WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.SyncPending, models.SyncRetry, time.Now(), limit)
}

// GetFailedSyncTasks lists dead-lettered tasks, newest first.
func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = ? ORDER BY created_at DESC, id DESC`,
		models.SyncFailed)
}

// RequeueFailedSyncTasks moves failed tasks back to pending with a fresh
// retry budget and returns how many were moved.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL WHERE status = ?`,
		models.SyncPending, models.SyncFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue sync tasks: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// PurgeCompletedSyncTasks deletes completed tasks processed before cutoff.
func (db *DB) PurgeCompletedSyncTasks(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND processed_at IS NOT NULL AND processed_at < ?`,
		models.SyncCompleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync tasks: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...interface{}) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.ReservationID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateSyncTaskStatus records an attempt outcome. Retry bumps retry_count;
// terminal statuses stamp processed_at. An empty errMsg clears last_error.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	lastError := sql.NullString{String: errMsg, Valid: errMsg != ""}

	var result sql.Result
	var err error
	switch status {
	case models.SyncRetry:
		result, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`,
			status, lastError, nextRetryAt, id)
	case models.SyncCompleted, models.SyncFailed:
		result, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`,
			status, lastError, time.Now(), id)
	default:
		result, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`,
			status, lastError, nextRetryAt, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NotFound("sync task", id)
	}
	return nil
}
