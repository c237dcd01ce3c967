package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}", chain(http.HandlerFunc(h.DeleteTask)))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", chain(http.HandlerFunc(h.CancelTask)))
	mux.Handle("POST /api/v1/tasks/{id}/resume", chain(http.HandlerFunc(h.ResumeTask)))
	mux.Handle("GET /api/v1/tasks/{id}/events", chain(http.HandlerFunc(h.ListTaskEvents)))

	// Groups
	mux.Handle("GET /api/v1/groups", chain(http.HandlerFunc(h.ListGroups)))
	mux.Handle("POST /api/v1/groups", chain(http.HandlerFunc(h.RegisterGroup)))
	mux.Handle("GET /api/v1/groups/{vk_id}", chain(http.HandlerFunc(h.GetGroup)))
	mux.Handle("DELETE /api/v1/groups/{vk_id}", chain(http.HandlerFunc(h.DeleteGroup)))
	mux.Handle("GET /api/v1/groups/{vk_id}/posts", chain(http.HandlerFunc(h.ListGroupPosts)))
	mux.Handle("GET /api/v1/groups/{vk_id}/posts/{post_id}/comments", chain(http.HandlerFunc(h.ListPostComments)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
