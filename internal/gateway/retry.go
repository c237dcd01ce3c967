package gateway

import (
	"context"
	"fmt"
	"time"
)

// Значения по умолчанию для retry.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
	defaultMultiplier   = 2.0
)

// Retry — политика повторов с экспоненциальной задержкой.
//
// Повторяются только transient-ошибки (классификатор IsRetryable);
// терминальные ошибки (авторизация, права, not found) пробрасываются
// сразу, не расходуя попытки.
type Retry struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	isRetryable  func(error) bool
}

// RetryConfig — конфигурация Retry.
type RetryConfig struct {
	// MaxAttempts — максимум попыток, включая первую (default: 3).
	MaxAttempts int

	// InitialDelay — задержка перед вторым вызовом (default: 500ms).
	InitialDelay time.Duration

	// MaxDelay — потолок задержки (default: 10s).
	MaxDelay time.Duration

	// Multiplier — множитель экспоненты (default: 2.0).
	Multiplier float64

	// IsRetryable — классификатор ошибок. Если nil, ничего не повторяется.
	IsRetryable func(error) bool
}

// NewRetry создаёт новую политику Retry.
func NewRetry(cfg RetryConfig) *Retry {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	multiplier := cfg.Multiplier
	if multiplier <= 1 {
		multiplier = defaultMultiplier
	}

	return &Retry{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		multiplier:   multiplier,
		isRetryable:  cfg.IsRetryable,
	}
}

// Do выполняет fn с повторами.
//
// Исчерпание попыток возвращает последнюю ошибку, обёрнутую
// в ErrRetryExhausted; терминальная ошибка возвращается как есть.
func (r *Retry) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := r.initialDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if r.isRetryable == nil || !r.isRetryable(err) {
			return err
		}

		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.multiplier)
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.maxAttempts, lastErr)
}
