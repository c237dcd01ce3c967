// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (сервис задач, репозитории, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - task_handler.go     — обработчики для /tasks
//   - group_handler.go    — обработчики для /groups
//   - content_handler.go  — чтение сохранённых постов и комментариев
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления задачами парсинга,
// справочником групп и расписаниями.
package api
