package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
)

// ScheduleStore — хранилище расписаний.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	ClaimDue(ctx context.Context, id uuid.UUID, oldDue, nextDue, now time.Time) (bool, error)
	SetLastTask(ctx context.Context, id, taskID uuid.UUID) error
}

// TaskCreator — создание задач из расписаний. Реализуется tasks.Service.
type TaskCreator interface {
	Create(ctx context.Context, params tasks.CreateParams) (*domain.Task, error)
}

// Scheduler — планировщик, создающий задачи из due расписаний.
type Scheduler struct {
	schedules ScheduleStore
	creator   TaskCreator
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Creator   TaskCreator
	Logger    *slog.Logger
	BatchSize int // количество расписаний за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		creator:   cfg.Creator,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due расписания (enabled=true, next_due_at <= now)
// 2. Забирает слот запуска (CAS по next_due_at — идемпотентность)
// 3. Создаёт задачу парсинга из шаблона расписания
//
// Ошибки одного расписания не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(due))

	var created int
	for i := range due {
		sched := &due[i]

		taskCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		if taskCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(due),
		"tasks_created", created,
	)

	return nil
}

// processSchedule обрабатывает одно due расписание.
// Возвращает true, если задача была создана (слот не был забран ранее).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Расписание некорректно — не трогаем next_due_at,
		// оператор увидит ошибку в логе.
		return false, fmt.Errorf("calculate next due: %w", err)
	}

	claimed, err := s.schedules.ClaimDue(ctx, sched.ID, *sched.NextDueAt, nextDue, now)
	if err != nil {
		return false, err
	}
	if !claimed {
		s.logger.Debug("due slot already claimed",
			"schedule_id", sched.ID,
			"due", sched.NextDueAt,
		)
		return false, nil
	}

	task, err := s.creator.Create(ctx, tasks.CreateParams{
		Scope:     sched.Scope,
		GroupIDs:  sched.GroupIDs,
		PostLimit: sched.PostLimit,
	})
	if err != nil {
		// Слот уже забран: этот запуск пропал, следующий пройдёт
		// по новому next_due_at.
		return false, fmt.Errorf("create task: %w", err)
	}

	sched.RecordRun(task.ID, nextDue)
	if err := s.schedules.SetLastTask(ctx, sched.ID, task.ID); err != nil {
		s.logger.Warn("failed to record last task",
			"schedule_id", sched.ID,
			"task_id", task.ID,
			"error", err,
		)
	}

	s.logger.Info("created task from schedule",
		"task_id", task.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
	)

	return true, nil
}
