// Package telemetry — наблюдаемость парсера.
//
// logging.go настраивает slog (LOG_LEVEL, LOG_FORMAT) и даёт
// контекстные логгеры с task_id/group_id; metrics.go объявляет
// Prometheus-метрики: запросы к VK, терминальные статусы задач,
// состояние circuit breaker'а и счётчики сохранённых сущностей.
// Каждый бинарник экспортирует их на своём /metrics.
package telemetry
