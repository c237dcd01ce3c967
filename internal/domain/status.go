package domain

// TaskStatus — статус выполнения задачи парсинга.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED (ошибка или отмена)
type TaskStatus string

const (
	// TaskStatusPending — задача создана и поставлена в очередь.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — задача выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusCompleted — все группы обработаны (возможно, с пропусками).
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — задача завершилась с ошибкой (включая отмену).
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (задача завершена).
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// TaskScope — охват задачи: все группы или явный список.
type TaskScope string

const (
	// ScopeAll — парсить все группы из справочника.
	ScopeAll TaskScope = "ALL"

	// ScopeSelected — парсить только группы из Task.GroupIDs.
	ScopeSelected TaskScope = "SELECTED"
)

// Valid проверяет, что scope принимает одно из допустимых значений.
func (s TaskScope) Valid() bool {
	return s == ScopeAll || s == ScopeSelected
}
