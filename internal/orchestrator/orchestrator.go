package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/cancel"
	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
	"github.com/andr-235/parseVK-sub006/internal/vk"
)

// Default configuration values.
const (
	defaultMaxCommentPages = 10
	maxThreadDepth         = 2
)

// VKClient — методы VK API, нужные обходу.
type VKClient interface {
	GroupsGetByID(ctx context.Context, vkIDs []int64) ([]vk.GroupInfo, error)
	WallGet(ctx context.Context, groupVkID int64, offset, count int) (*vk.WallPage, error)
	WallGetComments(ctx context.Context, groupVkID, postVkID int64, offset, count int) (*vk.CommentPage, error)
	UsersGet(ctx context.Context, vkIDs []int64) ([]vk.UserProfile, error)
}

// GroupStore — справочник групп.
type GroupStore interface {
	ListAll(ctx context.Context) ([]domain.Group, error)
	ListByVkIDs(ctx context.Context, vkIDs []int64) ([]domain.Group, error)
	Upsert(ctx context.Context, group *domain.Group) error
	SetWallEnabled(ctx context.Context, vkID int64, enabled bool) error
}

// PostStore — хранилище постов.
type PostStore interface {
	UpsertBatch(ctx context.Context, posts []domain.Post) (int, error)
}

// CommentStore — хранилище комментариев.
type CommentStore interface {
	UpsertBatch(ctx context.Context, comments []domain.Comment) (int, error)
}

// AuthorStore — хранилище авторов.
type AuthorStore interface {
	UpsertBatch(ctx context.Context, authors []domain.Author) (int, error)
}

// Lifecycle — команды жизненного цикла, которыми оркестратор
// отчитывается о ходе выполнения. Реализуется tasks.Service.
type Lifecycle interface {
	Begin(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Finish(ctx context.Context, task *domain.Task, runErr error) error
	Progress(ctx context.Context, task *domain.Task, processed int) error
	CheckCancelled(ctx context.Context, id uuid.UUID) error
}

// Orchestrator выполняет задачи парсинга.
type Orchestrator struct {
	api       VKClient
	groups    GroupStore
	posts     PostStore
	comments  CommentStore
	authors   AuthorStore
	lifecycle Lifecycle

	maxCommentPages int
	logger          *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	API       VKClient
	Groups    GroupStore
	Posts     PostStore
	Comments  CommentStore
	Authors   AuthorStore
	Lifecycle Lifecycle

	// MaxCommentPages — максимум страниц комментариев на один пост
	// (default: 10). Ограничивает время обработки аномально
	// обсуждаемых постов.
	MaxCommentPages int

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	maxCommentPages := cfg.MaxCommentPages
	if maxCommentPages <= 0 {
		maxCommentPages = defaultMaxCommentPages
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		api:             cfg.API,
		groups:          cfg.Groups,
		posts:           cfg.Posts,
		comments:        cfg.Comments,
		authors:         cfg.Authors,
		lifecycle:       cfg.Lifecycle,
		maxCommentPages: maxCommentPages,
		logger:          logger,
	}
}

// Run выполняет задачу от начала до терминального статуса.
//
// Возвращает ошибку только когда задача упала не из-за отмены —
// этот сигнал воркер превращает в retry на уровне очереди.
// Повторная доставка job'а завершённой задачи поглощается молча.
func (o *Orchestrator) Run(ctx context.Context, taskID uuid.UUID) error {
	logger := telemetry.WithTaskID(o.logger, taskID.String())

	task, err := o.lifecycle.Begin(ctx, taskID)
	if errors.Is(err, tasks.ErrTaskFinished) {
		logger.Info("duplicate job for finished task, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("begin task: %w", err)
	}

	logger.Info("task execution started",
		"scope", task.Scope,
		"post_limit", task.PostLimit,
	)

	runErr := o.execute(ctx, task, logger)

	if err := o.lifecycle.Finish(ctx, task, runErr); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}

	if runErr != nil && !errors.Is(runErr, cancel.ErrCancelled) {
		return runErr
	}
	return nil
}

// execute — обход групп задачи.
func (o *Orchestrator) execute(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	groups, err := o.resolveGroups(ctx, task)
	if err != nil {
		return err
	}
	task.TotalItems = len(groups)

	o.refreshGroupMeta(ctx, groups, logger)

	state := newTaskState()

	for i, group := range groups {
		// Граница группы — безопасная точка отмены.
		if err := o.lifecycle.CheckCancelled(ctx, task.ID); err != nil {
			return err
		}

		glog := telemetry.WithGroupID(logger, group.VkID)

		switch err := o.processGroup(ctx, task, &group, state, glog); {
		case err == nil:

		case vk.IsWallDisabled(err):
			// Закрытая стена — пропуск группы, не провал задачи.
			state.markSkipped(group.VkID)
			if serr := o.groups.SetWallEnabled(ctx, group.VkID, false); serr != nil {
				glog.Warn("mark wall disabled", "error", serr)
			}
			glog.Info("group skipped, wall disabled")

		default:
			state.stats.Errors++
			task.Stats = state.stats
			task.SkippedGroupVkIDs = state.skipped
			return fmt.Errorf("group %d: %w", group.VkID, err)
		}

		task.Stats = state.stats
		task.SkippedGroupVkIDs = state.skipped
		if err := o.lifecycle.Progress(ctx, task, i+1); err != nil {
			return err
		}
	}

	logger.Info("task execution finished",
		"posts_saved", state.stats.PostsSaved,
		"comments_saved", state.stats.CommentsSaved,
		"authors_saved", state.stats.AuthorsSaved,
		"skipped_groups", len(state.skipped),
	)
	return nil
}

// refreshGroupMeta подтягивает актуальные имена групп из VK перед
// обходом. Сбой обновления задачу не валит: справочник просто
// остаётся со старыми именами.
func (o *Orchestrator) refreshGroupMeta(ctx context.Context, groups []domain.Group, logger *slog.Logger) {
	vkIDs := make([]int64, len(groups))
	for i := range groups {
		vkIDs[i] = groups[i].VkID
	}

	infos, err := o.api.GroupsGetByID(ctx, vkIDs)
	if err != nil {
		logger.Warn("refresh group metadata", "error", err)
		return
	}

	byVkID := make(map[int64]vk.GroupInfo, len(infos))
	for _, info := range infos {
		byVkID[info.ID] = info
	}

	for i := range groups {
		info, ok := byVkID[groups[i].VkID]
		if !ok || info.Name == "" {
			continue
		}
		if info.Name == groups[i].Name && info.ScreenName == groups[i].ScreenName {
			continue
		}
		groups[i].Name = info.Name
		groups[i].ScreenName = info.ScreenName
		if err := o.groups.Upsert(ctx, &groups[i]); err != nil {
			logger.Warn("update group metadata", "vk_id", groups[i].VkID, "error", err)
		}
	}
}

// resolveGroups резолвит охват задачи в упорядоченный список групп.
// Отсутствующие в справочнике vk_id — ошибка до первого внешнего вызова.
func (o *Orchestrator) resolveGroups(ctx context.Context, task *domain.Task) ([]domain.Group, error) {
	if task.Scope == domain.ScopeAll {
		groups, err := o.groups.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		if len(groups) == 0 {
			return nil, ErrNoGroupsResolved
		}
		return groups, nil
	}

	found, err := o.groups.ListByVkIDs(ctx, task.GroupIDs)
	if err != nil {
		return nil, fmt.Errorf("list groups by vk_ids: %w", err)
	}

	byVkID := make(map[int64]domain.Group, len(found))
	for _, g := range found {
		byVkID[g.VkID] = g
	}

	// Порядок обхода — порядок vk_id в задаче.
	groups := make([]domain.Group, 0, len(task.GroupIDs))
	var missing []int64
	for _, vkID := range task.GroupIDs {
		g, ok := byVkID[vkID]
		if !ok {
			missing = append(missing, vkID)
			continue
		}
		groups = append(groups, g)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrGroupsMissing, missing)
	}
	return groups, nil
}

// processGroup загружает посты группы страницами до postLimit,
// для каждого поста — комментарии и авторов.
func (o *Orchestrator) processGroup(ctx context.Context, task *domain.Task, group *domain.Group, state *taskState, logger *slog.Logger) error {
	if !group.WallEnabled {
		// Стена закрыта по данным справочника — без единого вызова VK.
		state.markSkipped(group.VkID)
		logger.Info("group skipped, wall disabled in catalog")
		return nil
	}

	remaining := task.PostLimit
	offset := 0

	for remaining > 0 {
		// Граница страницы — безопасная точка отмены.
		if offset > 0 {
			if err := o.lifecycle.CheckCancelled(ctx, task.ID); err != nil {
				return err
			}
		}

		count := min(vk.PostPageSize, remaining)
		page, err := o.api.WallGet(ctx, group.VkID, offset, count)
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			break
		}

		state.stats.PostsFetched += len(page.Items)

		posts := make([]domain.Post, 0, len(page.Items))
		authorIDs := make([]int64, 0, len(page.Items))
		for _, wp := range page.Items {
			posts = append(posts, domain.Post{
				VkID:          wp.ID,
				GroupVkID:     group.VkID,
				AuthorVkID:    wp.FromID,
				Text:          wp.Text,
				CommentsCount: wp.Comments.Count,
				PublishedAt:   time.Unix(wp.Date, 0),
			})
			authorIDs = append(authorIDs, wp.FromID)
		}

		saved, err := o.posts.UpsertBatch(ctx, posts)
		if err != nil {
			return fmt.Errorf("save posts: %w", err)
		}
		state.stats.PostsSaved += saved
		telemetry.ObserveItemsSaved("post", saved)

		o.saveAuthors(ctx, state, authorIDs, logger)

		for _, wp := range page.Items {
			if wp.Comments.Count == 0 {
				continue
			}
			if err := o.processComments(ctx, group.VkID, wp.ID, state, logger); err != nil {
				return err
			}
		}

		offset += len(page.Items)
		remaining -= len(page.Items)
		if offset >= page.Count || len(page.Items) < count {
			break
		}
	}

	return nil
}

// processComments загружает комментарии поста страницами фиксированного
// размера, с жёстким потолком страниц, и разворачивает ветки.
func (o *Orchestrator) processComments(ctx context.Context, groupVkID, postVkID int64, state *taskState, logger *slog.Logger) error {
	for pageNo := 0; pageNo < o.maxCommentPages; pageNo++ {
		page, err := o.api.WallGetComments(ctx, groupVkID, postVkID, pageNo*vk.CommentPageSize, vk.CommentPageSize)
		if err != nil {
			return fmt.Errorf("post %d comments: %w", postVkID, err)
		}
		if len(page.Items) == 0 {
			break
		}

		flat := flattenComments(page.Items, groupVkID, postVkID)

		saved, err := o.comments.UpsertBatch(ctx, flat)
		if err != nil {
			return fmt.Errorf("save comments: %w", err)
		}
		state.stats.CommentsSaved += saved
		telemetry.ObserveItemsSaved("comment", saved)

		authorIDs := make([]int64, 0, len(flat))
		for _, c := range flat {
			authorIDs = append(authorIDs, c.AuthorVkID)
		}
		o.saveAuthors(ctx, state, authorIDs, logger)

		if (pageNo+1)*vk.CommentPageSize >= page.Count || len(page.Items) < vk.CommentPageSize {
			break
		}
	}
	return nil
}

// saveAuthors дозагружает и сохраняет ещё не виденных авторов.
//
// Ошибки здесь мягкие: профиль автора — вспомогательные данные,
// его недоступность не должна валить задачу.
func (o *Orchestrator) saveAuthors(ctx context.Context, state *taskState, candidates []int64, logger *slog.Logger) {
	fresh := state.newAuthorIDs(candidates)
	if len(fresh) == 0 {
		return
	}

	profiles, err := o.api.UsersGet(ctx, fresh)
	if err != nil {
		state.stats.Errors++
		logger.Warn("fetch author profiles", "count", len(fresh), "error", err)
		return
	}

	authors := make([]domain.Author, 0, len(profiles))
	for _, p := range profiles {
		authors = append(authors, domain.Author{
			VkID:      p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			PhotoURL:  p.Photo100,
		})
	}

	saved, err := o.authors.UpsertBatch(ctx, authors)
	if err != nil {
		state.stats.Errors++
		logger.Warn("save authors", "count", len(authors), "error", err)
		return
	}
	state.stats.AuthorsSaved += saved
	telemetry.ObserveItemsSaved("author", saved)
}

// flattenComments разворачивает дерево комментариев в плоский список.
// Глубина вложенности ограничена maxThreadDepth.
func flattenComments(items []vk.CommentItem, groupVkID, postVkID int64) []domain.Comment {
	var out []domain.Comment

	var walk func(items []vk.CommentItem, parentVkID int64, depth int)
	walk = func(items []vk.CommentItem, parentVkID int64, depth int) {
		if depth >= maxThreadDepth {
			return
		}
		for _, it := range items {
			c := domain.Comment{
				VkID:        it.ID,
				PostVkID:    postVkID,
				GroupVkID:   groupVkID,
				AuthorVkID:  it.FromID,
				ParentVkID:  parentVkID,
				Text:        it.Text,
				PublishedAt: time.Unix(it.Date, 0),
			}
			if it.ReplyTo != 0 {
				c.ParentVkID = it.ReplyTo
			}
			out = append(out, c)

			if it.Thread != nil {
				walk(it.Thread.Items, it.ID, depth+1)
			}
		}
	}
	walk(items, 0, 0)

	return out
}
