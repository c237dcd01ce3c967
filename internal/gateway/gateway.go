// Package gateway — слой устойчивости перед внешним API.
//
// Каждый исходящий вызов проходит единственную точку входа Gateway.Do:
// rate limiter → circuit breaker → retry → сам вызов. Порядок важен:
// разомкнутый breaker отсекает вызов до единственной попытки retry
// (самый дешёвый путь отказа первым), а не сработавший breaker всё ещё
// выигрывает от повторов transient-ошибок.
package gateway

import (
	"context"
	"log/slog"
	"time"
)

// limiterPause — шаг опроса окна rate limiter'а, когда оно исчерпано.
const limiterPause = 100 * time.Millisecond

// Gateway — композиция rate limiter'а, circuit breaker'а и retry.
type Gateway struct {
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   *Retry
	logger  *slog.Logger

	// pause подменяется в тестах.
	pause time.Duration
}

// Config — конфигурация Gateway.
type Config struct {
	Limiter *RateLimiter
	Breaker *CircuitBreaker
	Retry   *Retry
	Logger  *slog.Logger
}

// New создаёт новый Gateway.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		limiter: cfg.Limiter,
		breaker: cfg.Breaker,
		retry:   cfg.Retry,
		logger:  logger,
		pause:   limiterPause,
	}
}

// Do выполняет вызов внешнего API через все три уровня защиты.
//
// Исчерпанное окно rate limiter'а — это задержка вызова, а не его
// ошибка: Do блокируется до освобождения окна, наружу просачивается
// только отмена контекста.
//
// Исчерпавший retry вызов засчитывается breaker'у как ОДНА ошибка,
// независимо от числа внутренних попыток: breaker реагирует на
// устойчивую деградацию, а не на всплески, уже сглаженные retry.
func (g *Gateway) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.limiter != nil {
		if err := g.awaitSlot(ctx); err != nil {
			return err
		}
	}

	call := func() error {
		if g.retry != nil {
			return g.retry.Do(ctx, func() error { return fn(ctx) })
		}
		return fn(ctx)
	}

	if g.breaker != nil {
		return g.breaker.Execute(ctx, call)
	}
	return call()
}

// awaitSlot блокируется, пока окно rate limiter'а не освободится
// или контекст не будет отменён.
func (g *Gateway) awaitSlot(ctx context.Context) error {
	for !g.limiter.Allow(ctx) {
		g.logger.Debug("rate limit window full, waiting",
			"limiter", g.limiter.name,
			"pause", g.pause,
		)
		timer := time.NewTimer(g.pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// BreakerState возвращает текущее состояние breaker'а (для метрик).
func (g *Gateway) BreakerState(ctx context.Context) string {
	if g.breaker == nil {
		return StateClosed
	}
	return g.breaker.State(ctx)
}
