package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// EventRepo — журнал событий жизненного цикла задач.
//
// Журнал append-only: события не обновляются и не удаляются,
// каскадное удаление происходит вместе с задачей.
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append записывает событие в журнал.
func (r *EventRepo) Append(ctx context.Context, event *domain.TaskEvent) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO task_events (id, task_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		event.ID,
		event.TaskID,
		event.Type,
		payloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}

// ListByTaskID возвращает события задачи в хронологическом порядке.
func (r *EventRepo) ListByTaskID(ctx context.Context, taskID uuid.UUID) ([]domain.TaskEvent, error) {
	query := `
		SELECT id, task_id, type, payload, created_at
		FROM task_events
		WHERE task_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", err)
	}
	defer rows.Close()

	var events []domain.TaskEvent
	for rows.Next() {
		var e domain.TaskEvent
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Type, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}
		if payloadJSON != nil {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
