// Package store — общее key-value хранилище состояния, разделяемого воркерами.
//
// Через него разделяются окно rate limiter'а, состояние circuit breaker'а
// и флаги отмены задач: все воркеры видят одно и то же состояние.
// Требуется только get/set с TTL; строгий CAS не обязателен — допускается
// ограниченная рассинхронизация при конкурентной записи.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound — ключ отсутствует в хранилище.
var ErrNotFound = errors.New("key not found")

// Store — минимальный контракт разделяемого хранилища.
type Store interface {
	// Get возвращает значение ключа или ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set записывает значение с TTL (0 — без истечения).
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete удаляет ключ. Отсутствие ключа не считается ошибкой.
	Delete(ctx context.Context, key string) error
}
