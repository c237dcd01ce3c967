package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
)

// CreateTask создаёт задачу парсинга и ставит её в очередь.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	task, err := h.taskService.Create(r.Context(), tasks.CreateParams{
		Scope:     domain.TaskScope(req.Scope),
		GroupIDs:  req.GroupIDs,
		PostLimit: req.PostLimit,
	})
	if err != nil {
		if isValidationError(err) {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, TaskFromDomain(*task))
}

// ListTasks возвращает список задач с фильтрацией.
// GET /api/v1/tasks?status=...&limit=...&offset=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := repo.TaskFilter{Limit: 50}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = parseIntOr(limitStr, 50)
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = parseIntOr(offsetStr, 0)
	}

	list, err := h.taskService.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(list))
	for i, t := range list {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// GetTask возвращает задачу по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.taskService.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task))
}

// CancelTask запрашивает кооперативную отмену задачи.
// POST /api/v1/tasks/{id}/cancel
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	var req CancelTaskRequest
	if r.Body != nil {
		// Тело опционально: отмена без причины допустима.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err = h.taskService.Cancel(r.Context(), id, req.Reason)
	if errors.Is(err, tasks.ErrTaskFinished) {
		InvalidState(w, "task is already finished")
		return
	}
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	NoContent(w)
}

// ResumeTask перезапускает незавершённую или упавшую задачу.
// POST /api/v1/tasks/{id}/resume
func (h *Handler) ResumeTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.taskService.Resume(r.Context(), id)
	if errors.Is(err, tasks.ErrTaskFinished) {
		InvalidState(w, "completed task cannot be resumed")
		return
	}
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task))
}

// DeleteTask удаляет задачу.
// DELETE /api/v1/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	err = h.taskService.Delete(r.Context(), id)
	if errors.Is(err, tasks.ErrTaskRunning) {
		// Отмена запрошена; запись удалится повторным запросом,
		// когда воркер завершит задачу.
		Conflict(w, err.Error())
		return
	}
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	NoContent(w)
}

// ListTaskEvents возвращает журнал событий задачи.
// GET /api/v1/tasks/{id}/events
func (h *Handler) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	events, err := h.eventRepo.ListByTaskID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskEventResponse, len(events))
	for i, e := range events {
		result[i] = TaskEventFromDomain(e)
	}

	List(w, result, len(result))
}

// isValidationError проверяет, что ошибка — отказ валидации или резолюции.
func isValidationError(err error) bool {
	return errors.Is(err, tasks.ErrInvalidScope) ||
		errors.Is(err, tasks.ErrInvalidPostLimit) ||
		errors.Is(err, tasks.ErrNoGroups) ||
		errors.Is(err, tasks.ErrGroupsNotFound)
}

// parseIntOr парсит строку в int с дефолтным значением.
func parseIntOr(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
