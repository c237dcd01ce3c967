package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.Set(ctx, "key", "value", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := st.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "value" {
		t.Errorf("expected %q, got %q", "value", got)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	st := NewMemoryStore()
	now := time.Now()
	st.now = func() time.Time { return now }

	ctx := context.Background()
	st.Set(ctx, "key", "value", time.Minute)

	if _, err := st.Get(ctx, "key"); err != nil {
		t.Fatalf("key must exist before expiry: %v", err)
	}

	st.now = func() time.Time { return now.Add(61 * time.Second) }
	if _, err := st.Get(ctx, "key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	st.Set(ctx, "key", "value", 0)
	if err := st.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(ctx, "key"); err != nil {
		t.Errorf("deleting a missing key must not error: %v", err)
	}

	if _, err := st.Get(ctx, "key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
