// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - task.execute — job на выполнение задачи парсинга
//
// Exchanges:
//   - parsevk.tasks — job'ы задач
//   - parsevk.dlq   — dead letter queue
package mq
