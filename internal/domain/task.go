package domain

import (
	"time"

	"github.com/google/uuid"
)

// CancelReason — текст ошибки, с которым завершается отменённая задача.
// Отмена моделируется как FAILED с этой причиной, а не отдельным статусом,
// чтобы потребителям не приходилось обрабатывать четвёртое терминальное состояние.
const CancelReason = "cancelled"

// Task — задача парсинга: один логический обход набора VK-групп.
//
// Task создаётся командой Create (API/CLI/Scheduler), после чего
// в очередь публикуется job на выполнение. Выполняется целиком
// одним воркером; при падении воркера job перезапускается с нуля.
type Task struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	// Scope — охват: все группы или выбранные.
	Scope TaskScope `json:"scope"`

	// GroupIDs — VK ID групп (только для ScopeSelected).
	// Порядок сохраняется: группы обрабатываются в этом порядке.
	GroupIDs []int64 `json:"group_ids,omitempty"`

	// PostLimit — максимум постов, загружаемых из одной группы.
	PostLimit int `json:"post_limit"`

	// Status — текущий статус задачи.
	Status TaskStatus `json:"status"`

	// ProcessedItems — число обработанных групп. Монотонно растёт.
	ProcessedItems int `json:"processed_items"`

	// TotalItems — общее число групп в задаче.
	TotalItems int `json:"total_items"`

	// Progress — прогресс 0–100, производный от ProcessedItems/TotalItems.
	Progress int `json:"progress"`

	// SkippedGroupVkIDs — группы, пропущенные из-за закрытой стены.
	SkippedGroupVkIDs []int64 `json:"skipped_group_vk_ids,omitempty"`

	// Stats — итоговая статистика выполнения.
	Stats TaskStats `json:"stats"`

	// Error — текст ошибки для FAILED (в т.ч. CancelReason).
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания задачи.
	CreatedAt time.Time `json:"created_at"`
}

// TaskStats — счётчики, накопленные за один прогон задачи.
type TaskStats struct {
	PostsFetched  int `json:"posts_fetched"`
	PostsSaved    int `json:"posts_saved"`
	CommentsSaved int `json:"comments_saved"`
	AuthorsSaved  int `json:"authors_saved"`
	Errors        int `json:"errors"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если задача ещё не завершена.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если задача завершена (в любом статусе).
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// IsCancelled возвращает true, если задача завершилась отменой.
func (t *Task) IsCancelled() bool {
	return t.Status == TaskStatusFailed && t.Error == CancelReason
}

// MarkRunning переводит задачу в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkCompleted переводит задачу в статус COMPLETED.
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.Progress = 100
	t.FinishedAt = &now
}

// MarkFailed переводит задачу в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkCancelled переводит задачу в терминальное состояние отмены.
func (t *Task) MarkCancelled() {
	t.MarkFailed(CancelReason)
}

// ApplyProgress обновляет счётчики прогресса, сохраняя монотонность:
// ProcessedItems не уменьшается и не превышает TotalItems.
func (t *Task) ApplyProgress(processed int) {
	if processed < t.ProcessedItems {
		return
	}
	if t.TotalItems > 0 && processed > t.TotalItems {
		processed = t.TotalItems
	}
	t.ProcessedItems = processed
	if t.TotalItems > 0 {
		t.Progress = processed * 100 / t.TotalItems
	}
}

// ResetForResume подготавливает незавершённую задачу к повторному запуску.
func (t *Task) ResetForResume() {
	t.Status = TaskStatusPending
	t.Error = ""
	t.FinishedAt = nil
}
