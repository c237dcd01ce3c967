package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
)

// --- Fakes ---

type fakeScheduleStore struct {
	schedules map[uuid.UUID]*domain.Schedule

	claimCalls int
	lastTasks  map[uuid.UUID]uuid.UUID
}

func newFakeScheduleStore(schedules ...*domain.Schedule) *fakeScheduleStore {
	st := &fakeScheduleStore{
		schedules: make(map[uuid.UUID]*domain.Schedule),
		lastTasks: make(map[uuid.UUID]uuid.UUID),
	}
	for _, s := range schedules {
		st.schedules[s.ID] = s
	}
	return st
}

func (s *fakeScheduleStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for _, sched := range s.schedules {
		if sched.IsDue(now) {
			out = append(out, *sched)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeScheduleStore) ClaimDue(ctx context.Context, id uuid.UUID, oldDue, nextDue, now time.Time) (bool, error) {
	s.claimCalls++
	sched, ok := s.schedules[id]
	if !ok {
		return false, nil
	}
	// CAS: слот забирается только если next_due_at не изменился
	if sched.NextDueAt == nil || !sched.NextDueAt.Equal(oldDue) {
		return false, nil
	}
	sched.NextDueAt = &nextDue
	sched.LastRunAt = &now
	return true, nil
}

func (s *fakeScheduleStore) SetLastTask(ctx context.Context, id, taskID uuid.UUID) error {
	s.lastTasks[id] = taskID
	return nil
}

type fakeCreator struct {
	created []tasks.CreateParams
	err     error
}

func (c *fakeCreator) Create(ctx context.Context, params tasks.CreateParams) (*domain.Task, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, params)
	return &domain.Task{ID: uuid.New(), Scope: params.Scope, PostLimit: params.PostLimit}, nil
}

func dueSchedule(intervalSec int) *domain.Schedule {
	due := time.Now().Add(-time.Minute)
	return &domain.Schedule{
		ID:          uuid.New(),
		Name:        "hourly reparse",
		Scope:       domain.ScopeAll,
		PostLimit:   100,
		IntervalSec: intervalSec,
		Timezone:    "UTC",
		Enabled:     true,
		NextDueAt:   &due,
	}
}

// --- Tick ---

func TestTick_CreatesTaskAndAdvances(t *testing.T) {
	sched := dueSchedule(3600)
	store := newFakeScheduleStore(sched)
	creator := &fakeCreator{}

	s := New(Config{Schedules: store, Creator: creator})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(creator.created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(creator.created))
	}
	if creator.created[0].Scope != domain.ScopeAll || creator.created[0].PostLimit != 100 {
		t.Errorf("task params must come from the schedule template: %+v", creator.created[0])
	}

	// next_due_at сдвинут вперёд
	if !sched.NextDueAt.After(time.Now()) {
		t.Errorf("next_due_at must move to the future, got %s", sched.NextDueAt)
	}
	if _, ok := store.lastTasks[sched.ID]; !ok {
		t.Error("last task must be recorded")
	}
}

func TestTick_SecondTickIsIdempotent(t *testing.T) {
	sched := dueSchedule(3600)
	store := newFakeScheduleStore(sched)
	creator := &fakeCreator{}

	s := New(Config{Schedules: store, Creator: creator})

	ctx := context.Background()
	s.Tick(ctx)
	s.Tick(ctx)

	if len(creator.created) != 1 {
		t.Errorf("second tick past the same due must not create a task, got %d", len(creator.created))
	}
}

func TestTick_LostClaimSkipsCreation(t *testing.T) {
	sched := dueSchedule(3600)
	store := newFakeScheduleStore(sched)
	creator := &fakeCreator{}

	s := New(Config{Schedules: store, Creator: creator})

	// Конкурент забрал слот между ListDue и ClaimDue
	future := time.Now().Add(time.Hour)
	listed, _ := store.ListDue(context.Background(), time.Now(), 10)
	sched.NextDueAt = &future
	_ = listed

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("lost claim must not create a task, got %d", len(creator.created))
	}
}

func TestTick_DisabledScheduleUntouched(t *testing.T) {
	sched := dueSchedule(3600)
	sched.Enabled = false
	store := newFakeScheduleStore(sched)
	creator := &fakeCreator{}

	s := New(Config{Schedules: store, Creator: creator})

	s.Tick(context.Background())
	if len(creator.created) != 0 {
		t.Errorf("disabled schedule must not fire, got %d tasks", len(creator.created))
	}
}

func TestTick_CreateFailureDoesNotBlockOthers(t *testing.T) {
	broken := dueSchedule(3600)
	broken.Scope = "BROKEN"
	healthy := dueSchedule(3600)

	store := newFakeScheduleStore(broken, healthy)
	creator := &brokenScopeCreator{}

	s := New(Config{Schedules: store, Creator: creator})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick must not fail on a single bad schedule: %v", err)
	}
	if creator.healthy != 1 {
		t.Errorf("healthy schedule must still fire, got %d", creator.healthy)
	}
}

// brokenScopeCreator отклоняет невалидный scope, как настоящий Service.
type brokenScopeCreator struct {
	healthy int
}

func (c *brokenScopeCreator) Create(ctx context.Context, params tasks.CreateParams) (*domain.Task, error) {
	if !params.Scope.Valid() {
		return nil, errors.New("invalid scope")
	}
	c.healthy++
	return &domain.Task{ID: uuid.New()}, nil
}

// --- Cron ---

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 300, Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := from.Add(5 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_CronBeatsInterval(t *testing.T) {
	// Если заданы оба, cron имеет приоритет
	sched := &domain.Schedule{CronExpr: "0 9 * * *", IntervalSec: 60, Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, _ := CalculateNextDue(sched, from)
	if next.Sub(from) == time.Minute {
		t.Error("cron expression must take precedence over interval")
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Asia/Vladivostok"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) // 22:00 во Владивостоке

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 9:00 VLAT = 23:00 UTC предыдущего дня; ближайшее — 2 марта 9:00 VLAT
	want := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_InvalidSchedule(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}
	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("schedule without trigger must be invalid")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 9 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("garbage expression must be rejected")
	}
	if err := ValidateCronExpr("99 99 * * *"); err == nil {
		t.Error("out-of-range fields must be rejected")
	}
}
