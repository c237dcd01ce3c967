// Package worker потребляет job'ы задач парсинга из RabbitMQ
// и запускает оркестратор.
//
// Worker — stateless компонент:
//   - Получает job'ы из очереди tasks.execute (event-driven)
//   - Периодически проверяет PENDING задачи в БД (polling fallback)
//   - При сбое выполнения перепубликует job с attempt+1 и backoff,
//     после исчерпания попыток отправляет его в DLQ
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
package worker
