package repo

import "errors"

// Sentinel-ошибки слоя хранения. Вызывающие проверяют их через
// errors.Is и не зависят от pgx-специфики.
var (
	// ErrNotFound — запись отсутствует.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — нарушение уникальности.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция несовместима с текущим состоянием записи.
	ErrInvalidState = errors.New("invalid state")
)
