package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/elliot35/nanobot-serverless-deploy/internal/blobstore"
)

func newTestStore(t *testing.T) blobstore.Store {
	t.Helper()
	store, err := blobstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	return store
}

func TestRecordStoreUpsertCreates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	records, err := NewRecordStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewRecordStore() error = %v", err)
	}
	ctx := context.Background()

	sess, err := records.Upsert(ctx, "telegram:42", "7", map[string]any{"chat_type": "private"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if sess.SessionKey != "telegram:42" {
		t.Fatalf("SessionKey = %q, want telegram:42", sess.SessionKey)
	}
	if sess.UserID != "7" {
		t.Fatalf("UserID = %q, want 7", sess.UserID)
	}
	if !sess.CreatedAt.Equal(sess.UpdatedAt) {
		t.Fatalf("CreatedAt = %v, UpdatedAt = %v, want equal on create", sess.CreatedAt, sess.UpdatedAt)
	}

	got := records.Get(ctx, "telegram:42")
	if got == nil {
		t.Fatalf("Get() = nil after Upsert")
	}
	if got.Metadata["chat_type"] != "private" {
		t.Fatalf("Metadata = %v, want chat_type=private", got.Metadata)
	}
}

func TestRecordStoreUpsertMergesMetadata(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	records, err := NewRecordStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewRecordStore() error = %v", err)
	}
	records.nowFn = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ctx := context.Background()

	if _, err := records.Upsert(ctx, "telegram:42", "7", map[string]any{"chat_type": "private", "lang": "en"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	records.nowFn = func() time.Time { return time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC) }
	sess, err := records.Upsert(ctx, "telegram:42", "8", map[string]any{"lang": "de", "tz": "UTC"})
	if err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	if sess.UserID != "8" {
		t.Fatalf("UserID = %q, want overwrite to 8", sess.UserID)
	}
	if sess.CreatedAt.Equal(sess.UpdatedAt) {
		t.Fatalf("UpdatedAt not refreshed on update")
	}
	want := map[string]any{"chat_type": "private", "lang": "de", "tz": "UTC"}
	for k, v := range want {
		if sess.Metadata[k] != v {
			t.Fatalf("Metadata[%q] = %v, want %v", k, sess.Metadata[k], v)
		}
	}
}

func TestRecordStoreGetCorruptRecordIsAbsent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	records, err := NewRecordStore(store, slog.Default())
	if err != nil {
		t.Fatalf("NewRecordStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sessions/telegram_42/session.json", []byte("{not json"), "application/json"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got := records.Get(ctx, "telegram:42"); got != nil {
		t.Fatalf("Get() = %+v on corrupt record, want nil", got)
	}

	// A corrupt record must not block a fresh create.
	sess, err := records.Upsert(ctx, "telegram:42", "7", nil)
	if err != nil {
		t.Fatalf("Upsert() over corrupt record error = %v", err)
	}
	if sess.UserID != "7" {
		t.Fatalf("UserID = %q, want 7", sess.UserID)
	}
}
