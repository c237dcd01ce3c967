package api

import (
	"log/slog"

	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	taskService  *tasks.Service
	groupRepo    *repo.GroupRepo
	postRepo     *repo.PostRepo
	commentRepo  *repo.CommentRepo
	scheduleRepo *repo.ScheduleRepo
	eventRepo    *repo.EventRepo
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	TaskService  *tasks.Service
	GroupRepo    *repo.GroupRepo
	PostRepo     *repo.PostRepo
	CommentRepo  *repo.CommentRepo
	ScheduleRepo *repo.ScheduleRepo
	EventRepo    *repo.EventRepo
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		taskService:  cfg.TaskService,
		groupRepo:    cfg.GroupRepo,
		postRepo:     cfg.PostRepo,
		commentRepo:  cfg.CommentRepo,
		scheduleRepo: cfg.ScheduleRepo,
		eventRepo:    cfg.EventRepo,
		logger:       cfg.Logger,
	}
}
