package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// Task DTOs

// CreateTaskRequest — запрос на создание задачи парсинга.
type CreateTaskRequest struct {
	Scope     string  `json:"scope"`
	GroupIDs  []int64 `json:"group_ids,omitempty"`
	PostLimit int     `json:"post_limit"`
}

// CancelTaskRequest — запрос на отмену задачи.
type CancelTaskRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TaskResponse — ответ с задачей.
type TaskResponse struct {
	ID                uuid.UUID        `json:"id"`
	Scope             string           `json:"scope"`
	GroupIDs          []int64          `json:"group_ids,omitempty"`
	PostLimit         int              `json:"post_limit"`
	Status            string           `json:"status"`
	ProcessedItems    int              `json:"processed_items"`
	TotalItems        int              `json:"total_items"`
	Progress          int              `json:"progress"`
	SkippedGroupVkIDs []int64          `json:"skipped_group_vk_ids,omitempty"`
	Stats             domain.TaskStats `json:"stats"`
	Error             string           `json:"error,omitempty"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	FinishedAt        *time.Time       `json:"finished_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:                t.ID,
		Scope:             string(t.Scope),
		GroupIDs:          t.GroupIDs,
		PostLimit:         t.PostLimit,
		Status:            string(t.Status),
		ProcessedItems:    t.ProcessedItems,
		TotalItems:        t.TotalItems,
		Progress:          t.Progress,
		SkippedGroupVkIDs: t.SkippedGroupVkIDs,
		Stats:             t.Stats,
		Error:             t.Error,
		StartedAt:         t.StartedAt,
		FinishedAt:        t.FinishedAt,
		CreatedAt:         t.CreatedAt,
	}
}

// TaskEventResponse — ответ с событием задачи.
type TaskEventResponse struct {
	ID        uuid.UUID      `json:"id"`
	TaskID    uuid.UUID      `json:"task_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TaskEventFromDomain конвертирует domain.TaskEvent в TaskEventResponse.
func TaskEventFromDomain(e domain.TaskEvent) TaskEventResponse {
	return TaskEventResponse{
		ID:        e.ID,
		TaskID:    e.TaskID,
		Type:      string(e.Type),
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

// Group DTOs

// RegisterGroupRequest — запрос на регистрацию группы в справочнике.
type RegisterGroupRequest struct {
	VkID        int64  `json:"vk_id"`
	Name        string `json:"name"`
	ScreenName  string `json:"screen_name,omitempty"`
	WallEnabled *bool  `json:"wall_enabled,omitempty"`
}

// GroupResponse — ответ с группой.
type GroupResponse struct {
	ID          int64     `json:"id"`
	VkID        int64     `json:"vk_id"`
	Name        string    `json:"name"`
	ScreenName  string    `json:"screen_name,omitempty"`
	WallEnabled bool      `json:"wall_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupFromDomain конвертирует domain.Group в GroupResponse.
func GroupFromDomain(g domain.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		VkID:        g.VkID,
		Name:        g.Name,
		ScreenName:  g.ScreenName,
		WallEnabled: g.WallEnabled,
		CreatedAt:   g.CreatedAt,
	}
}

// Content DTOs

// PostResponse — ответ с постом.
type PostResponse struct {
	ID            int64     `json:"id"`
	VkID          int64     `json:"vk_id"`
	GroupVkID     int64     `json:"group_vk_id"`
	AuthorVkID    int64     `json:"author_vk_id"`
	Text          string    `json:"text"`
	CommentsCount int       `json:"comments_count"`
	PublishedAt   time.Time `json:"published_at"`
}

// PostFromDomain конвертирует domain.Post в PostResponse.
func PostFromDomain(p domain.Post) PostResponse {
	return PostResponse{
		ID:            p.ID,
		VkID:          p.VkID,
		GroupVkID:     p.GroupVkID,
		AuthorVkID:    p.AuthorVkID,
		Text:          p.Text,
		CommentsCount: p.CommentsCount,
		PublishedAt:   p.PublishedAt,
	}
}

// CommentResponse — ответ с комментарием.
type CommentResponse struct {
	ID          int64     `json:"id"`
	VkID        int64     `json:"vk_id"`
	PostVkID    int64     `json:"post_vk_id"`
	GroupVkID   int64     `json:"group_vk_id"`
	AuthorVkID  int64     `json:"author_vk_id"`
	ParentVkID  int64     `json:"parent_vk_id,omitempty"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
}

// CommentFromDomain конвертирует domain.Comment в CommentResponse.
func CommentFromDomain(c domain.Comment) CommentResponse {
	return CommentResponse{
		ID:          c.ID,
		VkID:        c.VkID,
		PostVkID:    c.PostVkID,
		GroupVkID:   c.GroupVkID,
		AuthorVkID:  c.AuthorVkID,
		ParentVkID:  c.ParentVkID,
		Text:        c.Text,
		PublishedAt: c.PublishedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание расписания.
type CreateScheduleRequest struct {
	Name        string  `json:"name"`
	Scope       string  `json:"scope"`
	GroupIDs    []int64 `json:"group_ids,omitempty"`
	PostLimit   int     `json:"post_limit"`
	CronExpr    string  `json:"cron_expr,omitempty"`
	IntervalSec int     `json:"interval_sec,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// UpdateScheduleRequest — запрос на обновление расписания.
type UpdateScheduleRequest struct {
	Name        *string  `json:"name,omitempty"`
	Scope       *string  `json:"scope,omitempty"`
	GroupIDs    *[]int64 `json:"group_ids,omitempty"`
	PostLimit   *int     `json:"post_limit,omitempty"`
	CronExpr    *string  `json:"cron_expr,omitempty"`
	IntervalSec *int     `json:"interval_sec,omitempty"`
	Timezone    *string  `json:"timezone,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Scope       string     `json:"scope"`
	GroupIDs    []int64    `json:"group_ids,omitempty"`
	PostLimit   int        `json:"post_limit"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastTaskID  *uuid.UUID `json:"last_task_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		Name:        s.Name,
		Scope:       string(s.Scope),
		GroupIDs:    s.GroupIDs,
		PostLimit:   s.PostLimit,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastTaskID:  s.LastTaskID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
