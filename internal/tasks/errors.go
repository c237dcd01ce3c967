package tasks

import "errors"

// Ошибки команд жизненного цикла. Все они синхронные: команда
// завершилась отказом до публикации job'а.
var (
	// ErrInvalidScope — scope принимает только ALL или SELECTED.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidPostLimit — лимит постов должен быть положительным.
	ErrInvalidPostLimit = errors.New("post limit must be positive")

	// ErrNoGroups — нет групп для парсинга (пустой справочник
	// при scope=ALL или пустой список при scope=SELECTED).
	ErrNoGroups = errors.New("no groups to parse")

	// ErrGroupsNotFound — часть запрошенных групп отсутствует в справочнике.
	ErrGroupsNotFound = errors.New("groups not found in catalog")

	// ErrTaskFinished — операция неприменима к завершённой задаче.
	ErrTaskFinished = errors.New("task already finished")

	// ErrTaskRunning — задача выполняется; удаление отложено до того,
	// как воркер увидит флаг отмены и завершит её.
	ErrTaskRunning = errors.New("task is running, cancellation requested")
)
