package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла задачи.
type EventType string

// События жизненного цикла.
const (
	EventTaskCreated    EventType = "task.created"
	EventTaskStarted    EventType = "task.started"
	EventTaskProgressed EventType = "task.progressed"
	EventTaskCompleted  EventType = "task.completed"
	EventTaskFailed     EventType = "task.failed"
	EventTaskResumed    EventType = "task.resumed"
	EventTaskDeleted    EventType = "task.deleted"
)

// TaskEvent — событие жизненного цикла для аудита и наблюдателей.
//
// События не участвуют в управлении выполнением — это односторонний
// поток для журнала оператора и live-прогресса.
type TaskEvent struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// TaskID — задача, к которой относится событие.
	TaskID uuid.UUID `json:"task_id"`

	// Type — тип события.
	Type EventType `json:"type"`

	// Payload — детали события (прогресс, причина ошибки, статистика).
	Payload map[string]any `json:"payload,omitempty"`

	// CreatedAt — время события.
	CreatedAt time.Time `json:"created_at"`
}
