package domain

import (
	"testing"
	"time"
)

func TestTaskStatus_IsTerminal(t *testing.T) {
	cases := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusPending, false},
		{TaskStatusRunning, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
	}

	for _, c := range cases {
		if got := c.status.IsTerminal(); got != c.terminal {
			t.Errorf("%s: IsTerminal() = %v, want %v", c.status, got, c.terminal)
		}
	}
}

func TestTaskScope_Valid(t *testing.T) {
	if !ScopeAll.Valid() || !ScopeSelected.Valid() {
		t.Error("ALL and SELECTED must be valid scopes")
	}
	if TaskScope("EVERYTHING").Valid() {
		t.Error("unknown scope must be invalid")
	}
	if TaskScope("").Valid() {
		t.Error("empty scope must be invalid")
	}
}

func TestTask_MarkCancelled(t *testing.T) {
	task := &Task{Status: TaskStatusRunning}
	task.MarkCancelled()

	if task.Status != TaskStatusFailed {
		t.Errorf("cancelled task must be FAILED, got %s", task.Status)
	}
	if task.Error != CancelReason {
		t.Errorf("expected error %q, got %q", CancelReason, task.Error)
	}
	if !task.IsCancelled() {
		t.Error("IsCancelled() must be true after MarkCancelled")
	}
	if task.FinishedAt == nil {
		t.Error("FinishedAt must be set")
	}
}

func TestTask_IsCancelled_PlainFailure(t *testing.T) {
	task := &Task{Status: TaskStatusRunning}
	task.MarkFailed("vk api error 5: auth failed")

	if task.IsCancelled() {
		t.Error("plain failure must not count as cancellation")
	}
	if !task.IsFinished() {
		t.Error("failed task must be finished")
	}
}

func TestTask_ApplyProgress_Monotonic(t *testing.T) {
	task := &Task{TotalItems: 10, ProcessedItems: 5, Progress: 50}

	// Откат назад игнорируется
	task.ApplyProgress(3)
	if task.ProcessedItems != 5 {
		t.Errorf("progress must not decrease: got %d", task.ProcessedItems)
	}

	// Рост применяется
	task.ApplyProgress(7)
	if task.ProcessedItems != 7 {
		t.Errorf("expected 7 processed, got %d", task.ProcessedItems)
	}
	if task.Progress != 70 {
		t.Errorf("expected progress 70, got %d", task.Progress)
	}

	// Переполнение ограничивается TotalItems
	task.ApplyProgress(15)
	if task.ProcessedItems != 10 {
		t.Errorf("processed must be capped at total: got %d", task.ProcessedItems)
	}
	if task.Progress != 100 {
		t.Errorf("expected progress 100, got %d", task.Progress)
	}
}

func TestTask_MarkCompleted(t *testing.T) {
	task := &Task{Status: TaskStatusRunning, TotalItems: 3, ProcessedItems: 3}
	task.MarkCompleted()

	if task.Status != TaskStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Errorf("completed task must have progress 100, got %d", task.Progress)
	}
}

func TestTask_ResetForResume(t *testing.T) {
	now := time.Now()
	task := &Task{
		Status:         TaskStatusFailed,
		Error:          "network down",
		FinishedAt:     &now,
		ProcessedItems: 4,
		TotalItems:     10,
	}

	task.ResetForResume()

	if task.Status != TaskStatusPending {
		t.Errorf("expected PENDING, got %s", task.Status)
	}
	if task.Error != "" {
		t.Errorf("error must be cleared, got %q", task.Error)
	}
	if task.FinishedAt != nil {
		t.Error("FinishedAt must be cleared")
	}
	// Прогресс сохраняется: возобновление не теряет позицию
	if task.ProcessedItems != 4 {
		t.Errorf("processed items must survive resume, got %d", task.ProcessedItems)
	}
}

func TestTask_Duration(t *testing.T) {
	task := &Task{}
	if task.Duration() != 0 {
		t.Error("unfinished task must have zero duration")
	}

	start := time.Now()
	finish := start.Add(42 * time.Second)
	task.StartedAt = &start
	task.FinishedAt = &finish

	if task.Duration() != 42*time.Second {
		t.Errorf("expected 42s, got %s", task.Duration())
	}
}
