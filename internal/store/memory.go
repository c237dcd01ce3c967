package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore — Store в памяти процесса.
//
// Подходит для однопроцессных развёртываний и тестов.
// Флаги отмены в таком хранилище видны только локальному воркеру.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem

	// now подменяется в тестах.
	now func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time // нулевое время — без истечения
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get возвращает значение ключа или ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !item.expiresAt.IsZero() && s.now().After(item.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return item.value, nil
}

// Set записывает значение с TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = memoryItem{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Delete удаляет ключ.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}
