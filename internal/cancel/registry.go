// Package cancel — кооперативная отмена задач парсинга.
//
// Флаг отмены хранится в общем хранилище, а не в памяти процесса:
// запрос на отмену должен дойти до того воркера, который реально
// выполняет задачу, а при горизонтальном масштабировании это может
// быть любой узел. Отмена наблюдается только в безопасных точках
// цикла обхода (граница группы, граница страницы) — летящий сетевой
// вызов не прерывается.
package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/store"
)

// ErrCancelled — задача отменена. Проверяется через errors.Is.
var ErrCancelled = errors.New("task cancelled")

// flagTTL — ограничение жизни флага: флаг не должен пережить выполнение,
// которое он охраняет, даже если какой-то путь выхода забыл его снять.
const flagTTL = 24 * time.Hour

// cancelFlag — сериализуемый флаг отмены.
type cancelFlag struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Registry — реестр флагов отмены поверх общего хранилища.
type Registry struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistry создаёт новый Registry.
func NewRegistry(st store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: st, logger: logger}
}

// RequestCancel выставляет флаг отмены задачи. Идемпотентен:
// повторный запрос перезаписывает флаг с тем же эффектом.
func (r *Registry) RequestCancel(ctx context.Context, taskID uuid.UUID, reason string) error {
	flag := cancelFlag{Reason: reason, RequestedAt: time.Now()}
	raw, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("marshal cancel flag: %w", err)
	}

	if err := r.store.Set(ctx, r.key(taskID), string(raw), flagTTL); err != nil {
		return fmt.Errorf("set cancel flag: %w", err)
	}

	r.logger.Info("cancellation requested", "task_id", taskID, "reason", reason)
	return nil
}

// Clear снимает флаг отмены.
//
// Вызывается на всех путях выхода: при подтверждённом удалении job'а
// из очереди и при достижении задачей терминального статуса.
func (r *Registry) Clear(ctx context.Context, taskID uuid.UUID) error {
	return r.store.Delete(ctx, r.key(taskID))
}

// Check возвращает ErrCancelled (с причиной), если отмена запрошена.
//
// Недоступность хранилища трактуется как "отмены нет": лучше дать
// задаче доработать, чем уронить её из-за отказа инфраструктуры флагов.
func (r *Registry) Check(ctx context.Context, taskID uuid.UUID) error {
	raw, err := r.store.Get(ctx, r.key(taskID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		r.logger.Warn("cancel registry store unavailable", "task_id", taskID, "error", err)
		return nil
	}

	var flag cancelFlag
	if err := json.Unmarshal([]byte(raw), &flag); err != nil {
		return ErrCancelled
	}
	if flag.Reason != "" {
		return fmt.Errorf("%w: %s", ErrCancelled, flag.Reason)
	}
	return ErrCancelled
}

// IsRequested возвращает true, если отмена запрошена (без ошибки).
func (r *Registry) IsRequested(ctx context.Context, taskID uuid.UUID) bool {
	return r.Check(ctx, taskID) != nil
}

func (r *Registry) key(taskID uuid.UUID) string {
	return "cancel:" + taskID.String()
}
