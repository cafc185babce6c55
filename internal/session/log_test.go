package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestLogStoreAppendReadRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	logs, err := NewLogStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewLogStore() error = %v", err)
	}
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgID := fmt.Sprintf("msg-%d", i)
		if err := logs.AppendMessage(ctx, "telegram:42", msgID, role, fmt.Sprintf("text %d", i), nil); err != nil {
			t.Fatalf("AppendMessage(%d) error = %v", i, err)
		}
	}

	got := logs.ReadMessages(ctx, "telegram:42", 0)
	if len(got) != n {
		t.Fatalf("ReadMessages() len = %d, want %d", len(got), n)
	}
	for i, msg := range got {
		if msg.MessageID != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("ReadMessages()[%d].MessageID = %q, out of append order", i, msg.MessageID)
		}
	}

	last := logs.ReadMessages(ctx, "telegram:42", 2)
	if len(last) != 2 {
		t.Fatalf("ReadMessages(limit=2) len = %d, want 2", len(last))
	}
	if last[0].MessageID != "msg-3" || last[1].MessageID != "msg-4" {
		t.Fatalf("ReadMessages(limit=2) = [%s %s], want last two in order", last[0].MessageID, last[1].MessageID)
	}
}

func TestLogStoreSkipsMalformedLine(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	logs, err := NewLogStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewLogStore() error = %v", err)
	}
	ctx := context.Background()

	if err := logs.AppendMessage(ctx, "telegram:42", "msg-0", RoleUser, "first", nil); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	// Inject a malformed line between two valid records.
	const path = "sessions/telegram_42/chat_history.jsonl"
	content, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	content = append(content, []byte("{broken\n")...)
	if err := store.Put(ctx, path, content, "application/x-ndjson"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := logs.AppendMessage(ctx, "telegram:42", "msg-1", RoleAssistant, "second", nil); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	got := logs.ReadMessages(ctx, "telegram:42", 0)
	if len(got) != 2 {
		t.Fatalf("ReadMessages() len = %d, want 2 (malformed line skipped)", len(got))
	}
	if got[0].MessageID != "msg-0" || got[1].MessageID != "msg-1" {
		t.Fatalf("ReadMessages() = [%s %s], adjacent records affected", got[0].MessageID, got[1].MessageID)
	}
}

func TestLogStoreReadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	logs, err := NewLogStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewLogStore() error = %v", err)
	}
	if got := logs.ReadMessages(context.Background(), "telegram:404", 0); len(got) != 0 {
		t.Fatalf("ReadMessages() on missing log = %v, want empty", got)
	}
}

func TestLogStoreActionsTypeFilter(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	logs, err := NewLogStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewLogStore() error = %v", err)
	}
	ctx := context.Background()

	actionTypes := []string{"file_operation", "search", "file_operation"}
	for _, actionType := range actionTypes {
		id, err := logs.AppendAction(ctx, "telegram:42", actionType, map[string]any{"files_count": 2}, nil)
		if err != nil {
			t.Fatalf("AppendAction(%q) error = %v", actionType, err)
		}
		if strings.TrimSpace(id) == "" {
			t.Fatalf("AppendAction(%q) returned empty action id", actionType)
		}
	}

	all := logs.ReadActions(ctx, "telegram:42", "", 0)
	if len(all) != 3 {
		t.Fatalf("ReadActions() len = %d, want 3", len(all))
	}
	fileOps := logs.ReadActions(ctx, "telegram:42", "file_operation", 0)
	if len(fileOps) != 2 {
		t.Fatalf("ReadActions(file_operation) len = %d, want 2", len(fileOps))
	}
	for _, action := range fileOps {
		if action.ActionType != "file_operation" {
			t.Fatalf("ReadActions(file_operation) returned type %q", action.ActionType)
		}
	}
}
