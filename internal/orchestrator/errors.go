package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrNoGroupsResolved — охват задачи резолвится в пустое множество групп.
	ErrNoGroupsResolved = errors.New("no groups resolved for task")

	// ErrGroupsMissing — часть запрошенных групп отсутствует в справочнике.
	ErrGroupsMissing = errors.New("groups missing from catalog")
)
