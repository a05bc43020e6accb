package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type taskRepository struct {
	BaseRepository
}

func NewTaskRepository(base BaseRepository) repository.TaskRepository {
	return &taskRepository{base}
}

// Schedule enqueues one durable unit of work. runAt is the minimum
// eligibility time; the worker will not claim the row before it.
func (r *taskRepository) Schedule(ctx context.Context, kind string, payload interface{}, runAt time.Time) (*model.ScheduledTask, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := &model.ScheduledTask{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   data,
		Status:    model.TaskStatusPending,
		RunAt:     runAt,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO scheduled_tasks (id, kind, payload, status, run_at, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		task.ID, task.Kind, task.Payload, task.Status, task.RunAt, task.CreatedAt, task.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to schedule task: %w", err)
	}
	return task, nil
}

// ClaimDue atomically claims up to limit eligible tasks. SKIP LOCKED
// keeps concurrent worker instances from claiming the same row.
func (r *taskRepository) ClaimDue(ctx context.Context, limit int) ([]*model.ScheduledTask, error) {
	var tasks []*model.ScheduledTask
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT id, kind, payload, status, run_at, attempts, error_message, created_at, updated_at
			FROM scheduled_tasks
			WHERE status = $1 AND run_at <= NOW()
			ORDER BY run_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		`
		if err := tx.SelectContext(ctx, &tasks, query, model.TaskStatusPending, limit); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return fmt.Errorf("failed to select due tasks: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(tasks))
		for i, task := range tasks {
			ids[i] = task.ID
			task.Status = model.TaskStatusProcessing
			task.Attempts++
		}

		update, args, err := sqlx.In(
			`UPDATE scheduled_tasks SET status = ?, attempts = attempts + 1, updated_at = NOW() WHERE id IN (?)`,
			model.TaskStatusProcessing, ids,
		)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(update), args...); err != nil {
			return fmt.Errorf("failed to claim tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE scheduled_tasks SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, model.TaskStatusDone, id)
	if err != nil {
		return fmt.Errorf("failed to mark task done: %w", err)
	}
	return nil
}

// MarkFailed records an attempt failure. With retryAt set the task goes
// back to pending for a later claim; without it the task is terminal.
func (r *taskRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	if retryAt != nil {
		query := `
			UPDATE scheduled_tasks
			SET status = $1, error_message = $2, run_at = $3, updated_at = NOW()
			WHERE id = $4
		`
		_, err := r.db.ExecContext(ctx, query, model.TaskStatusPending, errMsg, *retryAt, id)
		if err != nil {
			return fmt.Errorf("failed to reschedule task: %w", err)
		}
		return nil
	}

	query := `UPDATE scheduled_tasks SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, model.TaskStatusFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return nil
}
