package orchestrator

import (
	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// taskState — состояние выполнения одной задачи в памяти воркера.
//
// Создаётся в начале обработки job'а и умирает вместе с ней: при
// перезапуске задачи (рестарт воркера, retry очереди) обход начинается
// с нуля, идемпотентность обеспечивают upsert'ы в хранилище.
type taskState struct {
	// stats — накопленные счётчики прогона.
	stats domain.TaskStats

	// skipped — vk_id групп, пропущенных из-за закрытой стены.
	skipped []int64

	// seenAuthors — авторы, уже сохранённые в этом прогоне.
	// Дедупликация: один автор сохраняется один раз за задачу,
	// сколько бы комментариев он ни оставил.
	seenAuthors map[int64]struct{}
}

func newTaskState() *taskState {
	return &taskState{
		seenAuthors: make(map[int64]struct{}),
	}
}

// markSkipped записывает пропуск группы.
func (s *taskState) markSkipped(groupVkID int64) {
	s.skipped = append(s.skipped, groupVkID)
}

// newAuthorIDs отбирает из кандидатов ещё не виденных авторов
// и помечает их виденными. Посты от имени группы (отрицательный
// from_id) авторами не считаются.
func (s *taskState) newAuthorIDs(candidates []int64) []int64 {
	var fresh []int64
	for _, id := range candidates {
		if id <= 0 {
			continue
		}
		if _, ok := s.seenAuthors[id]; ok {
			continue
		}
		s.seenAuthors[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}
