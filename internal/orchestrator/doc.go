// Package orchestrator выполняет задачу парсинга от начала до конца.
//
// Orchestrator отвечает за:
//   - Резолюцию охвата задачи по справочнику групп
//   - Постраничную загрузку постов и комментариев через gateway
//   - Разворачивание вложенных веток комментариев в плоский список
//   - Дедупликацию авторов в пределах одного прогона
//   - Пропуск групп с закрытой стеной без провала задачи
//   - Обновление прогресса и проверку отмены на границах групп и страниц
//
// Одна задача выполняется целиком одним воркером; оркестратор —
// библиотека, которую воркер вызывает на каждый job из очереди.
package orchestrator
