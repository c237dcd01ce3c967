package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/andr-235/parseVK-sub006/internal/store"
)

// Значения по умолчанию для rate limiter'а.
const (
	defaultMaxRequests = 3
	defaultWindow      = time.Second
)

// RateLimiter — скользящее окно исходящих вызовов поверх общего хранилища.
//
// Это мягкий ограничитель, а не жёсткий барьер допуска: окно читается и
// пишется без блокировки (last-write-wins), поэтому при гонке нескольких
// воркеров возможен небольшой перелёт. Недоступность хранилища трактуется
// как "разрешить" (fail open) — конвейер не должен голодать из-за отказа
// инфраструктуры самого ограничителя.
type RateLimiter struct {
	store       store.Store
	name        string
	maxRequests int
	window      time.Duration
	logger      *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// RateLimiterConfig — конфигурация RateLimiter.
type RateLimiterConfig struct {
	// Store — общее хранилище окна.
	Store store.Store

	// Name — имя лимитера (ключ в хранилище).
	Name string

	// MaxRequests — максимум вызовов в окне (default: 3).
	MaxRequests int

	// Window — ширина окна (default: 1s).
	Window time.Duration

	// Logger
	Logger *slog.Logger
}

// NewRateLimiter создаёт новый RateLimiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = defaultMaxRequests
	}

	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "vk-api"
	}

	return &RateLimiter{
		store:       cfg.Store,
		name:        name,
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
		now:         time.Now,
	}
}

// Allow проверяет окно и возвращает true, если вызов допущен.
// Допущенный вызов сразу записывается в окно; отклонённый — нет.
func (l *RateLimiter) Allow(ctx context.Context) bool {
	key := "ratelimit:" + l.name
	now := l.now()

	timestamps, err := l.loadWindow(ctx, key)
	if err != nil {
		// Политика fail open: лимитер не должен останавливать конвейер.
		l.logger.Warn("rate limiter store unavailable, allowing call",
			"limiter", l.name,
			"error", err,
		)
		return true
	}

	// Отбрасываем записи старше окна
	cutoff := now.Add(-l.window).UnixMilli()
	alive := timestamps[:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			alive = append(alive, ts)
		}
	}

	if len(alive) >= l.maxRequests {
		return false
	}

	alive = append(alive, now.UnixMilli())
	if err := l.saveWindow(ctx, key, alive); err != nil {
		l.logger.Warn("rate limiter store write failed",
			"limiter", l.name,
			"error", err,
		)
	}

	return true
}

// loadWindow читает список меток времени из хранилища.
func (l *RateLimiter) loadWindow(ctx context.Context, key string) ([]int64, error) {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var timestamps []int64
	if err := json.Unmarshal([]byte(raw), &timestamps); err != nil {
		// Повреждённое окно — начинаем заново
		return nil, nil
	}
	return timestamps, nil
}

// saveWindow записывает список меток времени с TTL в ширину окна.
func (l *RateLimiter) saveWindow(ctx context.Context, key string, timestamps []int64) error {
	raw, err := json.Marshal(timestamps)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, string(raw), l.window)
}
