// Package tasks — команды жизненного цикла задач парсинга.
//
// Service — единственная точка изменения состояния задач: создание,
// постановка в очередь, возобновление, отмена, удаление и прогресс
// проходят через него. Каждая команда порождает событие, которое
// разносится по слушателям (аудит, метрики, лог).
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/cancel"
	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
)

// TaskRepository — хранилище задач.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	UpdateProgress(ctx context.Context, id uuid.UUID, processed, total, progress int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GroupCatalog — справочник групп для резолюции охвата.
type GroupCatalog interface {
	ListAll(ctx context.Context) ([]domain.Group, error)
	ListByVkIDs(ctx context.Context, vkIDs []int64) ([]domain.Group, error)
}

// JobPublisher — публикация job'ов на выполнение.
type JobPublisher interface {
	PublishTaskExecute(ctx context.Context, taskID uuid.UUID, attempt int) error
}

// Canceller — реестр флагов отмены.
type Canceller interface {
	RequestCancel(ctx context.Context, taskID uuid.UUID, reason string) error
	Clear(ctx context.Context, taskID uuid.UUID) error
	Check(ctx context.Context, taskID uuid.UUID) error
}

// Service — сервис команд жизненного цикла.
type Service struct {
	tasks     TaskRepository
	groups    GroupCatalog
	queue     JobPublisher
	cancels   Canceller
	listeners []Listener
	logger    *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Tasks     TaskRepository
	Groups    GroupCatalog
	Queue     JobPublisher
	Cancels   Canceller
	Listeners []Listener
	Logger    *slog.Logger
}

// NewService создаёт новый Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:     cfg.Tasks,
		groups:    cfg.Groups,
		queue:     cfg.Queue,
		cancels:   cfg.Cancels,
		listeners: cfg.Listeners,
		logger:    logger,
	}
}

// CreateParams — параметры создания задачи.
type CreateParams struct {
	Scope     domain.TaskScope
	GroupIDs  []int64
	PostLimit int
}

// Create валидирует параметры, резолвит охват по справочнику групп,
// создаёт задачу в статусе PENDING и публикует job на выполнение.
//
// Ошибки валидации и резолюции синхронные: job не публикуется,
// ни одного обращения к VK не происходит.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Task, error) {
	if !params.Scope.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, params.Scope)
	}
	if params.PostLimit <= 0 {
		return nil, ErrInvalidPostLimit
	}
	if params.Scope == domain.ScopeSelected && len(params.GroupIDs) == 0 {
		return nil, ErrNoGroups
	}

	groups, err := s.resolveGroups(ctx, params.Scope, params.GroupIDs)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:         uuid.New(),
		Scope:      params.Scope,
		GroupIDs:   params.GroupIDs,
		PostLimit:  params.PostLimit,
		Status:     domain.TaskStatusPending,
		TotalItems: len(groups),
		CreatedAt:  time.Now(),
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if err := s.queue.PublishTaskExecute(ctx, task.ID, 1); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	s.emit(ctx, task.ID, domain.EventTaskCreated, map[string]any{
		"scope":        string(task.Scope),
		"total_groups": task.TotalItems,
		"post_limit":   task.PostLimit,
	})

	s.logger.Info("task created",
		"task_id", task.ID,
		"scope", task.Scope,
		"total_groups", task.TotalItems,
	)
	return task, nil
}

// resolveGroups резолвит охват задачи по справочнику.
func (s *Service) resolveGroups(ctx context.Context, scope domain.TaskScope, vkIDs []int64) ([]domain.Group, error) {
	if scope == domain.ScopeAll {
		groups, err := s.groups.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		if len(groups) == 0 {
			return nil, ErrNoGroups
		}
		return groups, nil
	}

	groups, err := s.groups.ListByVkIDs(ctx, vkIDs)
	if err != nil {
		return nil, fmt.Errorf("list groups by vk_ids: %w", err)
	}
	if len(groups) != len(vkIDs) {
		return nil, fmt.Errorf("%w: %v", ErrGroupsNotFound, missingIDs(vkIDs, groups))
	}
	return groups, nil
}

// Get возвращает задачу по ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// List возвращает список задач.
func (s *Service) List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, error) {
	return s.tasks.List(ctx, filter)
}

// Resume перезапускает незавершённую или упавшую задачу с нуля.
// Завершённую успешно задачу возобновить нельзя.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.TaskStatusCompleted {
		return nil, ErrTaskFinished
	}

	// Старый флаг отмены не должен убить перезапущенную задачу.
	if err := s.cancels.Clear(ctx, id); err != nil {
		s.logger.Warn("clear stale cancel flag", "task_id", id, "error", err)
	}

	task.ResetForResume()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := s.queue.PublishTaskExecute(ctx, task.ID, 1); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	s.emit(ctx, task.ID, domain.EventTaskResumed, nil)
	s.logger.Info("task resumed", "task_id", task.ID)
	return task, nil
}

// Cancel запрашивает кооперативную отмену задачи.
// Выполняющий воркер увидит флаг на ближайшей границе группы или страницы.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task.IsFinished() {
		return ErrTaskFinished
	}
	if reason == "" {
		reason = domain.CancelReason
	}
	return s.cancels.RequestCancel(ctx, id, reason)
}

// Delete удаляет задачу.
//
// Отмена запрашивается безусловно. Если задача сейчас выполняется,
// запись не трогается — воркер увидит флаг, завершит задачу как
// отменённую, и повторный Delete удалит запись.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !task.IsFinished() {
		if err := s.cancels.RequestCancel(ctx, id, domain.CancelReason); err != nil {
			return fmt.Errorf("request cancel: %w", err)
		}
		if task.Status == domain.TaskStatusRunning {
			return ErrTaskRunning
		}
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cancels.Clear(ctx, id); err != nil {
		s.logger.Warn("clear cancel flag", "task_id", id, "error", err)
	}

	s.emit(ctx, id, domain.EventTaskDeleted, nil)
	s.logger.Info("task deleted", "task_id", id)
	return nil
}

// Begin переводит задачу в RUNNING в начале выполнения воркером.
//
// Job доставляется at-least-once, а retry очереди перезапускает
// упавшую задачу целиком: FAILED (кроме отменённой) допускается и
// сбрасывается. COMPLETED и отменённая задача не перезапускаются.
func (s *Service) Begin(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.TaskStatusCompleted || task.IsCancelled() {
		return nil, ErrTaskFinished
	}
	if task.Status == domain.TaskStatusFailed {
		task.ResetForResume()
	}

	task.MarkRunning()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	telemetry.TaskStarted()
	s.emit(ctx, task.ID, domain.EventTaskStarted, nil)
	return task, nil
}

// Finish доводит задачу до терминального статуса по итогу выполнения.
//
// runErr == nil — COMPLETED; отмена — FAILED с причиной "cancelled";
// любая другая ошибка — FAILED с её текстом. Флаг отмены снимается
// на любом терминальном исходе.
func (s *Service) Finish(ctx context.Context, task *domain.Task, runErr error) error {
	switch {
	case runErr == nil:
		task.MarkCompleted()
	case errors.Is(runErr, cancel.ErrCancelled):
		task.MarkCancelled()
	default:
		task.MarkFailed(runErr.Error())
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if err := s.cancels.Clear(ctx, task.ID); err != nil {
		s.logger.Warn("clear cancel flag", "task_id", task.ID, "error", err)
	}

	telemetry.TaskStopped()

	payload := map[string]any{
		"stats":    task.Stats,
		"duration": task.Duration().String(),
	}
	if len(task.SkippedGroupVkIDs) > 0 {
		payload["skipped_group_vk_ids"] = task.SkippedGroupVkIDs
	}

	if task.Status == domain.TaskStatusCompleted {
		s.emit(ctx, task.ID, domain.EventTaskCompleted, payload)
	} else {
		payload["error"] = task.Error
		s.emit(ctx, task.ID, domain.EventTaskFailed, payload)
	}

	s.logger.Info("task finished",
		"task_id", task.ID,
		"status", task.Status,
		"error", task.Error,
	)
	return nil
}

// Progress обновляет прогресс выполняющейся задачи.
//
// Сначала проверяется флаг отмены: отменённая задача не должна
// продвигаться дальше, ошибка отмены возвращается оркестратору.
func (s *Service) Progress(ctx context.Context, task *domain.Task, processed int) error {
	if err := s.cancels.Check(ctx, task.ID); err != nil {
		return err
	}

	task.ApplyProgress(processed)
	if err := s.tasks.UpdateProgress(ctx, task.ID, task.ProcessedItems, task.TotalItems, task.Progress); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	s.emit(ctx, task.ID, domain.EventTaskProgressed, map[string]any{
		"processed": task.ProcessedItems,
		"total":     task.TotalItems,
		"progress":  task.Progress,
	})
	return nil
}

// CheckCancelled возвращает ошибку отмены, если она запрошена.
func (s *Service) CheckCancelled(ctx context.Context, id uuid.UUID) error {
	return s.cancels.Check(ctx, id)
}

// emit разносит событие по слушателям.
func (s *Service) emit(ctx context.Context, taskID uuid.UUID, eventType domain.EventType, payload map[string]any) {
	event := domain.TaskEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	for _, l := range s.listeners {
		l.Notify(ctx, event)
	}
}

// missingIDs возвращает vk_id, которых нет среди найденных групп.
func missingIDs(requested []int64, found []domain.Group) []int64 {
	present := make(map[int64]struct{}, len(found))
	for _, g := range found {
		present[g.VkID] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
