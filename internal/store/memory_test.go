package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_UpsertPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	first, err := m.UpsertUser(ctx, User{ID: "u1", Email: "jane@techorama.be", FirstName: "Jane"})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if !first.CreatedAt.Equal(clock) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, clock)
	}

	clock = clock.Add(time.Hour)
	second, err := m.UpsertUser(ctx, User{ID: "u1", Email: "jane@techorama.be", FirstName: "Janet"})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.Equal(clock) {
		t.Errorf("UpdatedAt = %v, want %v", second.UpdatedAt, clock)
	}

	got, err := m.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.FirstName != "Janet" {
		t.Errorf("FirstName = %q, want %q", got.FirstName, "Janet")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := NewMemoryStore().GetUser(context.Background(), "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUser() error = %v, want ErrUserNotFound", err)
	}
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	if _, err := NewMemoryStore().UpsertUser(context.Background(), User{}); err == nil {
		t.Error("UpsertUser() with empty id should fail")
	}
}
