package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новую задачу.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	statsJSON, err := json.Marshal(task.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	query := `
		INSERT INTO tasks (id, scope, group_ids, post_limit, status, processed_items,
		                   total_items, progress, skipped_group_vk_ids, stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Scope,
		task.GroupIDs,
		task.PostLimit,
		task.Status,
		task.ProcessedItems,
		task.TotalItems,
		task.Progress,
		task.SkippedGroupVkIDs,
		statsJSON,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает задачу по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, scope, group_ids, post_limit, status, processed_items, total_items,
		       progress, skipped_group_vk_ids, stats, error, started_at, finished_at, created_at
		FROM tasks
		WHERE id = $1
	`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список задач с фильтрацией по статусу.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	query := `
		SELECT id, scope, group_ids, post_limit, status, processed_items, total_items,
		       progress, skipped_group_vk_ids, stats, error, started_at, finished_at, created_at
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Update обновляет задачу.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	statsJSON, err := json.Marshal(task.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = $2, processed_items = $3, total_items = $4, progress = $5,
		    skipped_group_vk_ids = $6, stats = $7, error = $8,
		    started_at = $9, finished_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Status,
		task.ProcessedItems,
		task.TotalItems,
		task.Progress,
		task.SkippedGroupVkIDs,
		statsJSON,
		nullString(task.Error),
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress обновляет счётчики прогресса, не трогая остальные поля.
//
// GREATEST защищает монотонность на уровне БД: конкурирующее
// обновление не может откатить прогресс назад.
func (r *TaskRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, total, progress int) error {
	query := `
		UPDATE tasks
		SET processed_items = GREATEST(processed_items, $2),
		    total_items = $3,
		    progress = GREATEST(progress, $4)
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, processed, total, progress)
	if err != nil {
		return fmt.Errorf("update task progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет задачу.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает задачи в статусе PENDING.
// Используется polling fallback'ом воркера, когда брокер недоступен.
func (r *TaskRepo) ListPending(ctx context.Context, limit int) ([]domain.Task, error) {
	query := `
		SELECT id, scope, group_ids, post_limit, status, processed_items, total_items,
		       progress, skipped_group_vk_ids, stats, error, started_at, finished_at, created_at
		FROM tasks
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// --- Helpers ---

// TaskFilter — параметры фильтрации задач.
type TaskFilter struct {
	Status *string
	Limit  int
	Offset int
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var statsJSON []byte
	var taskError *string

	err := row.Scan(
		&task.ID,
		&task.Scope,
		&task.GroupIDs,
		&task.PostLimit,
		&task.Status,
		&task.ProcessedItems,
		&task.TotalItems,
		&task.Progress,
		&task.SkippedGroupVkIDs,
		&statsJSON,
		&taskError,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if statsJSON != nil {
		if err := json.Unmarshal(statsJSON, &task.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	if taskError != nil {
		task.Error = *taskError
	}

	return &task, nil
}
