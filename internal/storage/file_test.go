package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore err: %v", err)
	}

	if err := s.Set(ctx, "chat_abc", "ciphertext"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	got, err := s.Get(ctx, "chat_abc")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got != "ciphertext" {
		t.Fatalf("expected ciphertext, got %q", got)
	}

	if err := s.Remove(ctx, "chat_abc"); err != nil {
		t.Fatalf("Remove err: %v", err)
	}
	if _, err := s.Get(ctx, "chat_abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore err: %v", err)
	}
	if err := first.Set(ctx, "sessionIds", `["session_1"]`); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	second, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	got, err := second.Get(ctx, "sessionIds")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got != `["session_1"]` {
		t.Fatalf("expected persisted value, got %q", got)
	}
}
