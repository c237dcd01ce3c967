package tasks

import (
	"context"
	"log/slog"

	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
)

// Listener — наблюдатель событий жизненного цикла задач.
//
// Слушатели не управляют выполнением: ошибка слушателя логируется
// и не влияет на команду, которая породила событие.
type Listener interface {
	Notify(ctx context.Context, event domain.TaskEvent)
}

// EventAppender — приёмник событий для журнала аудита.
type EventAppender interface {
	Append(ctx context.Context, event *domain.TaskEvent) error
}

// AuditListener пишет события в журнал аудита (PostgreSQL).
type AuditListener struct {
	events EventAppender
	logger *slog.Logger
}

// NewAuditListener создаёт новый AuditListener.
func NewAuditListener(events EventAppender, logger *slog.Logger) *AuditListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditListener{events: events, logger: logger}
}

// Notify реализует Listener.
func (l *AuditListener) Notify(ctx context.Context, event domain.TaskEvent) {
	if err := l.events.Append(ctx, &event); err != nil {
		l.logger.Error("audit append failed",
			"task_id", event.TaskID,
			"type", event.Type,
			"error", err,
		)
	}
}

// MetricsListener обновляет Prometheus-метрики по событиям.
type MetricsListener struct{}

// NewMetricsListener создаёт новый MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Notify реализует Listener.
func (l *MetricsListener) Notify(_ context.Context, event domain.TaskEvent) {
	switch event.Type {
	case domain.EventTaskCompleted:
		telemetry.ObserveTaskFinished(string(domain.TaskStatusCompleted))
	case domain.EventTaskFailed:
		telemetry.ObserveTaskFinished(string(domain.TaskStatusFailed))
	}
}

// LogListener пишет события в структурированный лог.
type LogListener struct {
	logger *slog.Logger
}

// NewLogListener создаёт новый LogListener.
func NewLogListener(logger *slog.Logger) *LogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener{logger: logger}
}

// Notify реализует Listener.
func (l *LogListener) Notify(_ context.Context, event domain.TaskEvent) {
	l.logger.Info("task event",
		"task_id", event.TaskID,
		"type", event.Type,
		"payload", event.Payload,
	)
}
