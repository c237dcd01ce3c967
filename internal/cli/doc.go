// Package cli реализует инструмент командной строки parseVK.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с parseVK API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления задачами парсинга, группами VK
// и расписаниями перепарсинга.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для parseVK API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	tasks, err := client.ListTasks(cli.ListTasksOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: parsevk task list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - task: list, create, show, cancel, resume, delete, events
//   - group: list, add, show, delete
//   - schedule: list, create, show, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewTaskCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
