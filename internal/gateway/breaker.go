package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andr-235/parseVK-sub006/internal/store"
)

// Состояния circuit breaker'а.
const (
	StateClosed   = "CLOSED"
	StateOpen     = "OPEN"
	StateHalfOpen = "HALF_OPEN"
)

// Значения по умолчанию для breaker'а.
const (
	defaultFailureThreshold = 5
	defaultResetTimeout     = 60 * time.Second
	defaultHalfOpenMaxCalls = 1
	breakerStateTTL         = 24 * time.Hour
)

// CircuitBreaker — предохранитель перед деградирующим внешним API.
//
// Состояние хранится в общем хранилище, поэтому все воркеры наблюдают
// один и тот же breaker. Переходы вычисляются через read-modify-write
// без распределённой блокировки: два воркера могут одновременно быть
// допущены как HALF_OPEN-пробы — перелёт ограничен числом воркеров
// и принимается осознанно (неограниченный перелёт невозможен,
// так как каждый допуск инкрементирует счётчик проб в хранилище).
//
// Переходы:
//
//	CLOSED    → OPEN       при failureThreshold подряд идущих ошибках
//	OPEN      → HALF_OPEN  лениво, по истечении resetTimeout (без таймера)
//	HALF_OPEN → CLOSED     при первой успешной пробе
//	HALF_OPEN → OPEN       немедленно при любой ошибке пробы
//
// Квота проб в HALF_OPEN перевзводится лениво: воркер, упавший между
// занятием квоты и trip/reset, иначе оставил бы общее состояние
// заклиненным до истечения TTL записи.
type CircuitBreaker struct {
	store  store.Store
	name   string
	logger *slog.Logger

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMaxCalls int

	// now подменяется в тестах.
	now func() time.Time
}

// BreakerConfig — конфигурация CircuitBreaker.
type BreakerConfig struct {
	// Store — общее хранилище состояния.
	Store store.Store

	// Name — имя breaker'а (ключ в хранилище).
	Name string

	// FailureThreshold — число подряд идущих ошибок до размыкания (default: 5).
	FailureThreshold int

	// ResetTimeout — сколько breaker остаётся разомкнутым (default: 60s).
	ResetTimeout time.Duration

	// HalfOpenMaxCalls — максимум одновременных проб в HALF_OPEN (default: 1).
	HalfOpenMaxCalls int

	// Logger
	Logger *slog.Logger
}

// breakerState — сериализуемое состояние breaker'а в хранилище.
type breakerState struct {
	State         string `json:"state"`
	Failures      int    `json:"failures"`
	OpenedAtMs    int64  `json:"opened_at_ms"`
	HalfOpenCalls int    `json:"half_open_calls"`

	// ProbedAtMs — момент последнего занятия квоты проб.
	ProbedAtMs int64 `json:"probed_at_ms"`
}

// NewCircuitBreaker создаёт новый CircuitBreaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	failureThreshold := cfg.FailureThreshold
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}

	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = defaultResetTimeout
	}

	halfOpenMaxCalls := cfg.HalfOpenMaxCalls
	if halfOpenMaxCalls <= 0 {
		halfOpenMaxCalls = defaultHalfOpenMaxCalls
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "vk-api"
	}

	return &CircuitBreaker{
		store:            cfg.Store,
		name:             name,
		logger:           logger,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMaxCalls: halfOpenMaxCalls,
		now:              time.Now,
	}
}

// Execute выполняет fn под защитой breaker'а.
//
// В состоянии OPEN возвращает ErrCircuitOpen не вызывая fn.
// Результат fn (успех/ошибка) засчитывается как один переход счётчиков —
// внутренние retry вызывающего на счётчик не влияют.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	st, err := b.loadState(ctx)
	if err != nil {
		// Хранилище недоступно — работаем как CLOSED, но без записи счётчиков.
		b.logger.Warn("breaker store unavailable, executing without protection",
			"breaker", b.name,
			"error", err,
		)
		return fn()
	}

	switch st.State {
	case StateOpen:
		if b.now().UnixMilli()-st.OpenedAtMs < b.resetTimeout.Milliseconds() {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
		}
		// resetTimeout истёк — допускаем пробу
		st.State = StateHalfOpen
		st.HalfOpenCalls = 0
		fallthrough

	case StateHalfOpen:
		if st.HalfOpenCalls >= b.halfOpenMaxCalls {
			// Квота старше resetTimeout — её владелец не вернулся
			// с результатом, считаем квоту потерянной.
			if b.now().UnixMilli()-st.ProbedAtMs < b.resetTimeout.Milliseconds() {
				return fmt.Errorf("%w: %s (probing)", ErrCircuitOpen, b.name)
			}
			st.HalfOpenCalls = 0
		}
		st.HalfOpenCalls++
		st.ProbedAtMs = b.now().UnixMilli()
		b.saveState(ctx, st)

		if err := fn(); err != nil {
			b.trip(ctx, st)
			return err
		}
		// Первая успешная проба замыкает breaker
		b.reset(ctx, st)
		return nil

	default: // CLOSED
		if err := fn(); err != nil {
			st.Failures++
			if st.Failures >= b.failureThreshold {
				b.trip(ctx, st)
			} else {
				b.saveState(ctx, st)
			}
			return err
		}
		if st.Failures > 0 {
			st.Failures = 0
			b.saveState(ctx, st)
		}
		return nil
	}
}

// State возвращает текущее состояние breaker'а (для метрик и API).
func (b *CircuitBreaker) State(ctx context.Context) string {
	st, err := b.loadState(ctx)
	if err != nil {
		return StateClosed
	}
	return st.State
}

// trip размыкает breaker.
func (b *CircuitBreaker) trip(ctx context.Context, st *breakerState) {
	st.State = StateOpen
	st.Failures = 0
	st.OpenedAtMs = b.now().UnixMilli()
	st.HalfOpenCalls = 0
	st.ProbedAtMs = 0
	b.saveState(ctx, st)

	b.logger.Warn("circuit breaker opened",
		"breaker", b.name,
		"reset_timeout", b.resetTimeout,
	)
}

// reset замыкает breaker и сбрасывает счётчики.
func (b *CircuitBreaker) reset(ctx context.Context, st *breakerState) {
	st.State = StateClosed
	st.Failures = 0
	st.OpenedAtMs = 0
	st.HalfOpenCalls = 0
	st.ProbedAtMs = 0
	b.saveState(ctx, st)

	b.logger.Info("circuit breaker closed", "breaker", b.name)
}

// loadState читает состояние breaker'а из хранилища.
func (b *CircuitBreaker) loadState(ctx context.Context) (*breakerState, error) {
	raw, err := b.store.Get(ctx, b.stateKey())
	if errors.Is(err, store.ErrNotFound) {
		return &breakerState{State: StateClosed}, nil
	}
	if err != nil {
		return nil, err
	}

	var st breakerState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return &breakerState{State: StateClosed}, nil
	}
	return &st, nil
}

// saveState записывает состояние breaker'а в хранилище.
func (b *CircuitBreaker) saveState(ctx context.Context, st *breakerState) {
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := b.store.Set(ctx, b.stateKey(), string(raw), breakerStateTTL); err != nil {
		b.logger.Warn("breaker store write failed", "breaker", b.name, "error", err)
	}
}

func (b *CircuitBreaker) stateKey() string {
	return "breaker:" + b.name
}
