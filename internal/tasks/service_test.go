package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/cancel"
	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/store"
)

// --- Fakes ---

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (r *fakeTaskRepo) List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, task := range r.tasks {
		if filter.Status != nil && string(task.Status) != *filter.Status {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, total, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return repo.ErrNotFound
	}
	// Монотонность как в SQL (GREATEST)
	if processed > task.ProcessedItems {
		task.ProcessedItems = processed
	}
	if progress > task.Progress {
		task.Progress = progress
	}
	task.TotalItems = total
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

type fakeGroupCatalog struct {
	groups []domain.Group
}

func (c *fakeGroupCatalog) ListAll(ctx context.Context) ([]domain.Group, error) {
	return c.groups, nil
}

func (c *fakeGroupCatalog) ListByVkIDs(ctx context.Context, vkIDs []int64) ([]domain.Group, error) {
	want := make(map[int64]struct{}, len(vkIDs))
	for _, id := range vkIDs {
		want[id] = struct{}{}
	}
	var out []domain.Group
	for _, g := range c.groups {
		if _, ok := want[g.VkID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedJob
}

type publishedJob struct {
	taskID  uuid.UUID
	attempt int
}

func (p *fakePublisher) PublishTaskExecute(ctx context.Context, taskID uuid.UUID, attempt int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedJob{taskID, attempt})
	return nil
}

type recordingListener struct {
	mu     sync.Mutex
	events []domain.TaskEvent
}

func (l *recordingListener) Notify(ctx context.Context, event domain.TaskEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingListener) types() []domain.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

// --- Harness ---

type serviceTestEnv struct {
	service   *Service
	taskRepo  *fakeTaskRepo
	catalog   *fakeGroupCatalog
	publisher *fakePublisher
	listener  *recordingListener
	cancels   *cancel.Registry
}

func newServiceEnv(groups ...domain.Group) *serviceTestEnv {
	taskRepo := newFakeTaskRepo()
	catalog := &fakeGroupCatalog{groups: groups}
	publisher := &fakePublisher{}
	listener := &recordingListener{}
	cancels := cancel.NewRegistry(store.NewMemoryStore(), nil)

	service := NewService(Config{
		Tasks:     taskRepo,
		Groups:    catalog,
		Queue:     publisher,
		Cancels:   cancels,
		Listeners: []Listener{listener},
	})

	return &serviceTestEnv{
		service:   service,
		taskRepo:  taskRepo,
		catalog:   catalog,
		publisher: publisher,
		listener:  listener,
		cancels:   cancels,
	}
}

func testGroups(vkIDs ...int64) []domain.Group {
	out := make([]domain.Group, len(vkIDs))
	for i, id := range vkIDs {
		out[i] = domain.Group{ID: id, VkID: id, Name: "group", WallEnabled: true}
	}
	return out
}

// --- Create ---

func TestService_Create_All(t *testing.T) {
	env := newServiceEnv(testGroups(1, 2, 3)...)

	task, err := env.service.Create(context.Background(), CreateParams{
		Scope:     domain.ScopeAll,
		PostLimit: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != domain.TaskStatusPending {
		t.Errorf("expected PENDING, got %s", task.Status)
	}
	if task.TotalItems != 3 {
		t.Errorf("expected 3 total items, got %d", task.TotalItems)
	}

	if len(env.publisher.published) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(env.publisher.published))
	}
	if env.publisher.published[0].attempt != 1 {
		t.Errorf("initial attempt must be 1, got %d", env.publisher.published[0].attempt)
	}

	types := env.listener.types()
	if len(types) != 1 || types[0] != domain.EventTaskCreated {
		t.Errorf("expected task.created event, got %v", types)
	}
}

func TestService_Create_Validation(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	cases := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{"bad scope", CreateParams{Scope: "EVERYTHING", PostLimit: 10}, ErrInvalidScope},
		{"zero post limit", CreateParams{Scope: domain.ScopeAll, PostLimit: 0}, ErrInvalidPostLimit},
		{"negative post limit", CreateParams{Scope: domain.ScopeAll, PostLimit: -5}, ErrInvalidPostLimit},
		{"selected without groups", CreateParams{Scope: domain.ScopeSelected, PostLimit: 10}, ErrNoGroups},
		{"unknown groups", CreateParams{Scope: domain.ScopeSelected, PostLimit: 10, GroupIDs: []int64{1, 99}}, ErrGroupsNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := env.service.Create(ctx, c.params)
			if !errors.Is(err, c.wantErr) {
				t.Errorf("expected %v, got %v", c.wantErr, err)
			}
		})
	}

	// Ни одна невалидная команда не должна дойти до очереди
	if len(env.publisher.published) != 0 {
		t.Errorf("validation failures must not publish jobs, got %d", len(env.publisher.published))
	}
}

func TestService_Create_EmptyCatalog(t *testing.T) {
	env := newServiceEnv() // справочник пуст

	_, err := env.service.Create(context.Background(), CreateParams{
		Scope:     domain.ScopeAll,
		PostLimit: 10,
	})
	if !errors.Is(err, ErrNoGroups) {
		t.Errorf("ALL over empty catalog must fail with ErrNoGroups, got %v", err)
	}
}

// --- Cancel ---

func TestService_Cancel(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})

	if err := env.service.Cancel(ctx, task.ID, "operator"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err := env.service.CheckCancelled(ctx, task.ID)
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Errorf("expected cancellation flag, got %v", err)
	}

	// Повторная отмена идемпотентна
	if err := env.service.Cancel(ctx, task.ID, "again"); err != nil {
		t.Errorf("repeated cancel must not fail: %v", err)
	}
}

func TestService_Cancel_Finished(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkCompleted()
	env.taskRepo.Update(ctx, task)

	if err := env.service.Cancel(ctx, task.ID, ""); !errors.Is(err, ErrTaskFinished) {
		t.Errorf("cancelling a finished task must fail, got %v", err)
	}
}

// --- Delete ---

func TestService_Delete_Pending(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})

	if err := env.service.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete pending task: %v", err)
	}

	if _, err := env.taskRepo.GetByID(ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Error("task record must be gone")
	}
	// Флаг отмены снят вместе с записью
	if err := env.cancels.Check(ctx, task.ID); err != nil {
		t.Errorf("cancel flag must be cleared after delete: %v", err)
	}
}

func TestService_Delete_Running(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkRunning()
	env.taskRepo.Update(ctx, task)

	err := env.service.Delete(ctx, task.ID)
	if !errors.Is(err, ErrTaskRunning) {
		t.Fatalf("deleting a running task must return ErrTaskRunning, got %v", err)
	}

	// Запись осталась, но отмена запрошена — воркер завершит задачу сам
	if _, err := env.taskRepo.GetByID(ctx, task.ID); err != nil {
		t.Error("running task record must survive delete attempt")
	}
	if cerr := env.service.CheckCancelled(ctx, task.ID); !errors.Is(cerr, cancel.ErrCancelled) {
		t.Error("delete must request cancellation of a running task")
	}
}

// --- Resume ---

func TestService_Resume_Failed(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkRunning()
	task.MarkFailed("vk api error 10: internal")
	env.taskRepo.Update(ctx, task)

	resumed, err := env.service.Resume(ctx, task.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if resumed.Status != domain.TaskStatusPending {
		t.Errorf("resumed task must be PENDING, got %s", resumed.Status)
	}
	if resumed.Error != "" {
		t.Errorf("error must be cleared on resume, got %q", resumed.Error)
	}
	if len(env.publisher.published) != 2 {
		t.Errorf("resume must republish the job, got %d publishes", len(env.publisher.published))
	}
}

func TestService_Resume_ClearsStaleFlag(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	env.service.Cancel(ctx, task.ID, "old run")

	task.MarkRunning()
	task.MarkCancelled()
	env.taskRepo.Update(ctx, task)

	if _, err := env.service.Resume(ctx, task.ID); err != nil {
		t.Fatalf("resume after cancellation: %v", err)
	}

	if err := env.service.CheckCancelled(ctx, task.ID); err != nil {
		t.Errorf("stale cancel flag must not survive resume: %v", err)
	}
}

func TestService_Resume_Completed(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkCompleted()
	env.taskRepo.Update(ctx, task)

	if _, err := env.service.Resume(ctx, task.ID); !errors.Is(err, ErrTaskFinished) {
		t.Errorf("completed task must not resume, got %v", err)
	}
}

// --- Begin / Finish ---

func TestService_Begin(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})

	started, err := env.service.Begin(ctx, task.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if started.Status != domain.TaskStatusRunning {
		t.Errorf("expected RUNNING, got %s", started.Status)
	}
	if started.StartedAt == nil {
		t.Error("StartedAt must be set")
	}
}

func TestService_Begin_DuplicateDelivery(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkCompleted()
	env.taskRepo.Update(ctx, task)

	if _, err := env.service.Begin(ctx, task.ID); !errors.Is(err, ErrTaskFinished) {
		t.Errorf("completed task must not restart, got %v", err)
	}
}

func TestService_Begin_QueueRetryResetsFailure(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkRunning()
	task.MarkFailed("transient crash")
	env.taskRepo.Update(ctx, task)

	started, err := env.service.Begin(ctx, task.ID)
	if err != nil {
		t.Fatalf("queue retry must restart a failed task: %v", err)
	}
	if started.Status != domain.TaskStatusRunning || started.Error != "" {
		t.Errorf("restarted task must be RUNNING without error, got %s %q", started.Status, started.Error)
	}
}

func TestService_Begin_CancelledNotRestarted(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task.MarkRunning()
	task.MarkCancelled()
	env.taskRepo.Update(ctx, task)

	if _, err := env.service.Begin(ctx, task.ID); !errors.Is(err, ErrTaskFinished) {
		t.Errorf("cancelled task must not restart via queue retry, got %v", err)
	}
}

func TestService_Finish_Outcomes(t *testing.T) {
	env := newServiceEnv(testGroups(1)...)
	ctx := context.Background()

	// Успех
	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task, _ = env.service.Begin(ctx, task.ID)
	if err := env.service.Finish(ctx, task, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}

	// Отмена
	task2, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task2, _ = env.service.Begin(ctx, task2.ID)
	env.service.Cancel(ctx, task2.ID, "operator stop")
	runErr := env.service.CheckCancelled(ctx, task2.ID)
	env.service.Finish(ctx, task2, runErr)
	if !task2.IsCancelled() {
		t.Errorf("expected cancelled outcome, got %s %q", task2.Status, task2.Error)
	}
	// Флаг снят на терминальном исходе
	if err := env.service.CheckCancelled(ctx, task2.ID); err != nil {
		t.Errorf("cancel flag must be cleared by Finish: %v", err)
	}

	// Ошибка
	task3, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task3, _ = env.service.Begin(ctx, task3.ID)
	env.service.Finish(ctx, task3, errors.New("vk api error 5: auth"))
	if task3.Status != domain.TaskStatusFailed || task3.IsCancelled() {
		t.Errorf("expected plain FAILED, got %s %q", task3.Status, task3.Error)
	}
}

// --- Progress ---

func TestService_Progress(t *testing.T) {
	env := newServiceEnv(testGroups(1, 2, 3, 4)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task, _ = env.service.Begin(ctx, task.ID)

	if err := env.service.Progress(ctx, task, 2); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if task.ProcessedItems != 2 || task.Progress != 50 {
		t.Errorf("expected 2/4 = 50%%, got %d/%d = %d%%", task.ProcessedItems, task.TotalItems, task.Progress)
	}
}

func TestService_Progress_CancellationWins(t *testing.T) {
	env := newServiceEnv(testGroups(1, 2)...)
	ctx := context.Background()

	task, _ := env.service.Create(ctx, CreateParams{Scope: domain.ScopeAll, PostLimit: 10})
	task, _ = env.service.Begin(ctx, task.ID)
	env.service.Cancel(ctx, task.ID, "stop")

	before := task.ProcessedItems
	err := env.service.Progress(ctx, task, 1)
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("progress on cancelled task must fail with ErrCancelled, got %v", err)
	}
	if task.ProcessedItems != before {
		t.Error("cancelled progress must not advance counters")
	}
}
