package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/cancel"
	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
	"github.com/andr-235/parseVK-sub006/internal/vk"
)

// --- Fakes ---

type fakeVK struct {
	posts    map[int64][]vk.WallPost    // group vk_id → посты
	comments map[string][]vk.CommentItem // "group/post" → комментарии
	wallErr  map[int64]error             // group vk_id → ошибка wall.get

	groupInfos []vk.GroupInfo
	groupsErr  error

	usersGetCalls [][]int64
	usersErr      error
}

func (f *fakeVK) GroupsGetByID(ctx context.Context, vkIDs []int64) ([]vk.GroupInfo, error) {
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return f.groupInfos, nil
}

func newFakeVK() *fakeVK {
	return &fakeVK{
		posts:    make(map[int64][]vk.WallPost),
		comments: make(map[string][]vk.CommentItem),
		wallErr:  make(map[int64]error),
	}
}

func (f *fakeVK) WallGet(ctx context.Context, groupVkID int64, offset, count int) (*vk.WallPage, error) {
	if err := f.wallErr[groupVkID]; err != nil {
		return nil, err
	}
	all := f.posts[groupVkID]
	page := &vk.WallPage{Count: len(all)}
	if offset < len(all) {
		end := min(offset+count, len(all))
		page.Items = all[offset:end]
	}
	return page, nil
}

func (f *fakeVK) WallGetComments(ctx context.Context, groupVkID, postVkID int64, offset, count int) (*vk.CommentPage, error) {
	all := f.comments[fmt.Sprintf("%d/%d", groupVkID, postVkID)]
	page := &vk.CommentPage{Count: len(all)}
	if offset < len(all) {
		end := min(offset+count, len(all))
		page.Items = all[offset:end]
	}
	return page, nil
}

func (f *fakeVK) UsersGet(ctx context.Context, vkIDs []int64) ([]vk.UserProfile, error) {
	f.usersGetCalls = append(f.usersGetCalls, vkIDs)
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	profiles := make([]vk.UserProfile, len(vkIDs))
	for i, id := range vkIDs {
		profiles[i] = vk.UserProfile{ID: id, FirstName: "user"}
	}
	return profiles, nil
}

type fakeGroupStore struct {
	groups       []domain.Group
	wallDisabled []int64
	upserts      []domain.Group
}

func (s *fakeGroupStore) Upsert(ctx context.Context, group *domain.Group) error {
	s.upserts = append(s.upserts, *group)
	return nil
}

func (s *fakeGroupStore) ListAll(ctx context.Context) ([]domain.Group, error) {
	return s.groups, nil
}

func (s *fakeGroupStore) ListByVkIDs(ctx context.Context, vkIDs []int64) ([]domain.Group, error) {
	want := make(map[int64]struct{}, len(vkIDs))
	for _, id := range vkIDs {
		want[id] = struct{}{}
	}
	var out []domain.Group
	for _, g := range s.groups {
		if _, ok := want[g.VkID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeGroupStore) SetWallEnabled(ctx context.Context, vkID int64, enabled bool) error {
	if !enabled {
		s.wallDisabled = append(s.wallDisabled, vkID)
	}
	return nil
}

type fakePostStore struct {
	saved []domain.Post
}

func (s *fakePostStore) UpsertBatch(ctx context.Context, posts []domain.Post) (int, error) {
	s.saved = append(s.saved, posts...)
	return len(posts), nil
}

type fakeCommentStore struct {
	saved []domain.Comment
}

func (s *fakeCommentStore) UpsertBatch(ctx context.Context, comments []domain.Comment) (int, error) {
	s.saved = append(s.saved, comments...)
	return len(comments), nil
}

type fakeAuthorStore struct {
	saved []domain.Author
}

func (s *fakeAuthorStore) UpsertBatch(ctx context.Context, authors []domain.Author) (int, error) {
	s.saved = append(s.saved, authors...)
	return len(authors), nil
}

// fakeLifecycle ведёт себя как tasks.Service, но в памяти.
type fakeLifecycle struct {
	task     *domain.Task
	beginErr error

	progressCalls []int
	finishCalled  bool
	finishErr     error

	// cancelAfterProgress — после скольких Progress-вызовов
	// выставить флаг отмены (0 — не отменять).
	cancelAfterProgress int

	// cancelAfterChecks — на каком по счёту CheckCancelled-вызове
	// флаг отмены уже выставлен (0 — не отменять).
	cancelAfterChecks int
	checkCalls        int

	cancelled bool
}

func (l *fakeLifecycle) Begin(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if l.beginErr != nil {
		return nil, l.beginErr
	}
	l.task.MarkRunning()
	return l.task, nil
}

func (l *fakeLifecycle) Finish(ctx context.Context, task *domain.Task, runErr error) error {
	l.finishCalled = true
	l.finishErr = runErr
	switch {
	case runErr == nil:
		task.MarkCompleted()
	case errors.Is(runErr, cancel.ErrCancelled):
		task.MarkCancelled()
	default:
		task.MarkFailed(runErr.Error())
	}
	return nil
}

func (l *fakeLifecycle) Progress(ctx context.Context, task *domain.Task, processed int) error {
	if l.cancelled {
		return fmt.Errorf("%w: stop", cancel.ErrCancelled)
	}
	task.ApplyProgress(processed)
	l.progressCalls = append(l.progressCalls, processed)
	if l.cancelAfterProgress > 0 && len(l.progressCalls) >= l.cancelAfterProgress {
		l.cancelled = true
	}
	return nil
}

func (l *fakeLifecycle) CheckCancelled(ctx context.Context, id uuid.UUID) error {
	l.checkCalls++
	if l.cancelAfterChecks > 0 && l.checkCalls >= l.cancelAfterChecks {
		l.cancelled = true
	}
	if l.cancelled {
		return fmt.Errorf("%w: stop", cancel.ErrCancelled)
	}
	return nil
}

// --- Harness ---

type orchTestEnv struct {
	orch      *Orchestrator
	api       *fakeVK
	groups    *fakeGroupStore
	posts     *fakePostStore
	comments  *fakeCommentStore
	authors   *fakeAuthorStore
	lifecycle *fakeLifecycle
}

func newOrchEnv(task *domain.Task, groups ...domain.Group) *orchTestEnv {
	env := &orchTestEnv{
		api:       newFakeVK(),
		groups:    &fakeGroupStore{groups: groups},
		posts:     &fakePostStore{},
		comments:  &fakeCommentStore{},
		authors:   &fakeAuthorStore{},
		lifecycle: &fakeLifecycle{task: task},
	}
	env.orch = New(Config{
		API:       env.api,
		Groups:    env.groups,
		Posts:     env.posts,
		Comments:  env.comments,
		Authors:   env.authors,
		Lifecycle: env.lifecycle,
	})
	return env
}

func openGroup(vkID int64) domain.Group {
	return domain.Group{ID: vkID, VkID: vkID, Name: "group", WallEnabled: true}
}

func wallPost(id, author int64, comments int) vk.WallPost {
	p := vk.WallPost{ID: id, FromID: author, Date: 1700000000, Text: "text"}
	p.Comments.Count = comments
	return p
}

// --- Tests ---

func TestRun_HappyPath(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 100}
	env := newOrchEnv(task, openGroup(1), openGroup(2))

	env.api.posts[1] = []vk.WallPost{wallPost(10, 100, 1), wallPost(11, 101, 0)}
	env.api.posts[2] = []vk.WallPost{wallPost(20, 102, 0)}
	env.api.comments["1/10"] = []vk.CommentItem{
		{ID: 501, FromID: 200, Date: 1700000100, Text: "nice"},
	}

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}
	if task.Stats.PostsSaved != 3 {
		t.Errorf("expected 3 posts saved, got %d", task.Stats.PostsSaved)
	}
	if task.Stats.CommentsSaved != 1 {
		t.Errorf("expected 1 comment saved, got %d", task.Stats.CommentsSaved)
	}
	// Авторы постов (100, 101, 102) + автор комментария (200)
	if task.Stats.AuthorsSaved != 4 {
		t.Errorf("expected 4 authors saved, got %d", task.Stats.AuthorsSaved)
	}
	if len(env.lifecycle.progressCalls) != 2 {
		t.Errorf("expected progress per group, got %v", env.lifecycle.progressCalls)
	}
}

func TestRun_GroupMetaRefreshed(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 100}
	env := newOrchEnv(task, openGroup(1), openGroup(2))

	env.api.posts[1] = []vk.WallPost{wallPost(10, 100, 0)}
	env.api.groupInfos = []vk.GroupInfo{
		{ID: 1, Name: "renamed", ScreenName: "renamed_club"},
		{ID: 2, Name: "group"}, // без изменений
	}

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.groups.upserts) != 1 {
		t.Fatalf("expected 1 group upsert, got %d", len(env.groups.upserts))
	}
	if env.groups.upserts[0].VkID != 1 || env.groups.upserts[0].Name != "renamed" {
		t.Errorf("unexpected upsert: %+v", env.groups.upserts[0])
	}
}

func TestRun_GroupMetaRefreshFailureIsSoft(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 100}
	env := newOrchEnv(task, openGroup(1))

	env.api.posts[1] = []vk.WallPost{wallPost(10, 100, 0)}
	env.api.groupsErr = &vk.APIError{Code: 6, Message: "too many requests"}

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}
	if task.Stats.PostsSaved != 1 {
		t.Errorf("expected 1 post saved, got %d", task.Stats.PostsSaved)
	}
}

func TestRun_WallDisabledSkipsGroup(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeSelected, GroupIDs: []int64{1, 2, 3}, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1), openGroup(2), openGroup(3))

	env.api.posts[1] = []vk.WallPost{wallPost(10, 100, 0)}
	env.api.wallErr[2] = fmt.Errorf("wall.get: %w", &vk.APIError{Code: vk.CodeAccessDenied, Message: "wall is disabled"})
	env.api.posts[3] = []vk.WallPost{wallPost(30, 102, 0)}

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("wall-disabled group must not fail the task: %v", err)
	}

	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}
	if len(task.SkippedGroupVkIDs) != 1 || task.SkippedGroupVkIDs[0] != 2 {
		t.Errorf("expected skipped=[2], got %v", task.SkippedGroupVkIDs)
	}
	// Остальные группы обработаны
	if task.Stats.PostsSaved != 2 {
		t.Errorf("expected 2 posts from groups 1 and 3, got %d", task.Stats.PostsSaved)
	}
	// Справочник обновлён
	if len(env.groups.wallDisabled) != 1 || env.groups.wallDisabled[0] != 2 {
		t.Errorf("catalog must learn about disabled wall, got %v", env.groups.wallDisabled)
	}
}

func TestRun_CatalogWallDisabledNoVKCall(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 10}
	closed := openGroup(5)
	closed.WallEnabled = false
	env := newOrchEnv(task, closed)

	// Ошибка на wall.get докажет, что вызова не было
	env.api.wallErr[5] = errors.New("must not be called")

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(task.SkippedGroupVkIDs) != 1 || task.SkippedGroupVkIDs[0] != 5 {
		t.Errorf("catalog-closed group must be skipped, got %v", task.SkippedGroupVkIDs)
	}
}

func TestRun_OtherErrorFailsTask(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1))

	env.api.wallErr[1] = fmt.Errorf("wall.get: %w", &vk.APIError{Code: vk.CodeAuthFailed, Message: "auth failed"})

	err := env.orch.Run(context.Background(), task.ID)
	if err == nil {
		t.Fatal("auth error must fail the task")
	}

	if task.Status != domain.TaskStatusFailed {
		t.Errorf("expected FAILED, got %s", task.Status)
	}
	if task.IsCancelled() {
		t.Error("plain failure must not look like cancellation")
	}
	if task.Stats.Errors == 0 {
		t.Error("error counter must be incremented")
	}
}

func TestRun_AuthorDedupAcrossGroups(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1), openGroup(2))

	// Один автор пишет в обеих группах
	env.api.posts[1] = []vk.WallPost{wallPost(10, 777, 0)}
	env.api.posts[2] = []vk.WallPost{wallPost(20, 777, 0)}

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fetched []int64
	for _, call := range env.api.usersGetCalls {
		fetched = append(fetched, call...)
	}
	if len(fetched) != 1 || fetched[0] != 777 {
		t.Errorf("author must be fetched once per task, got %v", fetched)
	}
	if task.Stats.AuthorsSaved != 1 {
		t.Errorf("expected 1 author saved, got %d", task.Stats.AuthorsSaved)
	}
}

func TestRun_AuthorFetchFailureIsSoft(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1))

	env.api.posts[1] = []vk.WallPost{wallPost(10, 100, 0)}
	env.api.usersErr = errors.New("users.get: timeout")

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("author fetch failure must not fail the task: %v", err)
	}

	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}
	if task.Stats.PostsSaved != 1 {
		t.Errorf("posts must still be saved, got %d", task.Stats.PostsSaved)
	}
	if task.Stats.Errors == 0 {
		t.Error("soft failure must be counted")
	}
}

func TestRun_CancellationAtGroupBoundary(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1), openGroup(2), openGroup(3))

	env.api.posts[1] = []vk.WallPost{wallPost(10, 100, 0)}
	env.api.posts[2] = []vk.WallPost{wallPost(20, 101, 0)}
	env.api.posts[3] = []vk.WallPost{wallPost(30, 102, 0)}

	// Отмена после первой группы
	env.lifecycle.cancelAfterProgress = 1

	// Отмена — не ошибка для очереди: job не должен ретраиться
	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("cancelled run must not propagate an error: %v", err)
	}

	if !task.IsCancelled() {
		t.Errorf("expected cancelled outcome, got %s %q", task.Status, task.Error)
	}
	// Третья группа не обрабатывалась
	if task.Stats.PostsSaved > 2 {
		t.Errorf("cancellation must stop the walk, got %d posts", task.Stats.PostsSaved)
	}
}

func TestRun_CancellationAtPageBoundary(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 2 * vk.PostPageSize}
	env := newOrchEnv(task, openGroup(1))

	// Полторы страницы постов: вторая страница потребует перехода
	// через границу.
	total := vk.PostPageSize + vk.PostPageSize/2
	for i := 0; i < total; i++ {
		env.api.posts[1] = append(env.api.posts[1], wallPost(int64(i+1), 100, 0))
	}

	// Первая проверка — граница группы, вторая — граница страницы.
	env.lifecycle.cancelAfterChecks = 2

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("cancelled run must not propagate an error: %v", err)
	}

	if !task.IsCancelled() {
		t.Errorf("expected cancelled outcome, got %s %q", task.Status, task.Error)
	}
	// Первая страница сохранена, вторая не запрашивалась
	if task.Stats.PostsSaved != vk.PostPageSize {
		t.Errorf("expected exactly one saved page (%d posts), got %d",
			vk.PostPageSize, task.Stats.PostsSaved)
	}
	if got := len(env.posts.saved); got != vk.PostPageSize {
		t.Errorf("expected %d posts in store, got %d", vk.PostPageSize, got)
	}
}

func TestRun_DuplicateDeliverySwallowed(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1))
	env.lifecycle.beginErr = tasks.ErrTaskFinished

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("duplicate delivery must be swallowed: %v", err)
	}
	if env.lifecycle.finishCalled {
		t.Error("finish must not run for a duplicate delivery")
	}
}

func TestRun_PostLimitRespected(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeAll, PostLimit: 3}
	env := newOrchEnv(task, openGroup(1))

	for i := int64(0); i < 10; i++ {
		env.api.posts[1] = append(env.api.posts[1], wallPost(100+i, 200+i, 0))
	}

	if err := env.orch.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Stats.PostsSaved != 3 {
		t.Errorf("post limit must cap the fetch, got %d", task.Stats.PostsSaved)
	}
}

func TestRun_SelectedMissingGroup(t *testing.T) {
	task := &domain.Task{ID: uuid.New(), Scope: domain.ScopeSelected, GroupIDs: []int64{1, 99}, PostLimit: 10}
	env := newOrchEnv(task, openGroup(1))

	err := env.orch.Run(context.Background(), task.ID)
	if err == nil {
		t.Fatal("missing group must fail the task")
	}
	if !errors.Is(err, ErrGroupsMissing) {
		t.Errorf("expected ErrGroupsMissing, got %v", err)
	}
	if task.Status != domain.TaskStatusFailed {
		t.Errorf("expected FAILED, got %s", task.Status)
	}
}

func TestFlattenComments_ThreadDepth(t *testing.T) {
	items := []vk.CommentItem{
		{
			ID: 1, FromID: 10, Text: "root",
			Thread: &vk.CommentThread{Items: []vk.CommentItem{
				{
					ID: 2, FromID: 11, Text: "reply",
					Thread: &vk.CommentThread{Items: []vk.CommentItem{
						{ID: 3, FromID: 12, Text: "too deep"},
					}},
				},
			}},
		},
	}

	flat := flattenComments(items, 100, 500)

	if len(flat) != 2 {
		t.Fatalf("depth limit must cut the third level, got %d comments", len(flat))
	}
	if flat[0].ParentVkID != 0 {
		t.Errorf("root comment must have no parent, got %d", flat[0].ParentVkID)
	}
	if flat[1].ParentVkID != 1 {
		t.Errorf("reply must reference its parent, got %d", flat[1].ParentVkID)
	}
	for _, c := range flat {
		if c.PostVkID != 500 || c.GroupVkID != 100 {
			t.Errorf("comment must carry post and group ids: %+v", c)
		}
	}
}

func TestFlattenComments_ReplyToOverridesParent(t *testing.T) {
	items := []vk.CommentItem{
		{ID: 5, FromID: 10, Text: "answer", ReplyTo: 3},
	}

	flat := flattenComments(items, 1, 2)
	if len(flat) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(flat))
	}
	if flat[0].ParentVkID != 3 {
		t.Errorf("reply_to_comment must set the parent, got %d", flat[0].ParentVkID)
	}
}
