package store_test

import (
	"context"
	"testing"

	"github.com/flightdeck/aerochat/internal/model/chat"
	"github.com/flightdeck/aerochat/internal/store"
)

func TestCreateAndList(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	first, err := s.Create(ctx, "ETOPS questions", "a330")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if _, err := s.Create(ctx, "Performance", "a320"); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	items, err := s.List(ctx, "a330")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 conversation for a330, got %d", len(items))
	}
	if items[0].ID != first.ID {
		t.Fatalf("unexpected conversation: %s", items[0].ID)
	}
}

func TestListOrdersByUpdatedAt(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	older, err := s.Create(ctx, "first", "a320")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	newer, err := s.Create(ctx, "second", "a320")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	// Appending to the older conversation bumps it back to the top.
	err = s.AppendMessage(ctx, older.ID, chat.Message{Role: chat.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	items, err := s.List(ctx, "a320")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(items))
	}
	if items[0].ID != older.ID || items[1].ID != newer.ID {
		t.Fatalf("unexpected order: %s, %s", items[0].ID, items[1].ID)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	s := store.NewMemoryStore()

	if _, err := s.Create(context.Background(), "", "a320"); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestAppendAndListMessages(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	conv, err := s.Create(ctx, "MEL", "a330")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if err := s.AppendMessage(ctx, conv.ID, chat.Message{Role: chat.RoleUser, Content: "what is MEL?"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}
	if err := s.AppendMessage(ctx, conv.ID, chat.Message{Role: chat.RoleAssistant, Content: "minimum equipment list"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	messages, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != chat.RoleUser || messages[1].Role != chat.RoleAssistant {
		t.Fatal("unexpected message order")
	}
	if messages[0].ID == "" || messages[0].CreatedAt.IsZero() {
		t.Fatal("expected id and timestamp to be assigned")
	}
}

func TestAppendToMissingConversation(t *testing.T) {
	s := store.NewMemoryStore()

	err := s.AppendMessage(context.Background(), "missing", chat.Message{Content: "hi"})
	if err == nil {
		t.Fatal("expected error for missing conversation")
	}
}

func TestDelete(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	conv, err := s.Create(ctx, "to delete", "a350")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if err := s.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := s.ListMessages(ctx, conv.ID); err == nil {
		t.Fatal("expected messages to be gone after delete")
	}
	if err := s.Delete(ctx, conv.ID); err == nil {
		t.Fatal("expected error deleting twice")
	}
}
