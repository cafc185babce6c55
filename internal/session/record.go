package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elliot35/nanobot-serverless-deploy/internal/blobstore"
	"github.com/elliot35/nanobot-serverless-deploy/internal/storepaths"
)

const recordContentType = "application/json"

// RecordStore reads and writes the one-document-per-session JSON record.
// Every write is a full-document overwrite.
type RecordStore struct {
	store  blobstore.Store
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewRecordStore(store blobstore.Store, logger *slog.Logger) (*RecordStore, error) {
	if store == nil {
		return nil, fmt.Errorf("session: blob store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{
		store:  store,
		logger: logger,
		nowFn:  time.Now,
	}, nil
}

// Get returns the session record for sessionKey, or nil when no record
// exists. Read and parse failures are logged and reported as absent; a
// corrupt record is "no session yet", never a hard error.
func (s *RecordStore) Get(ctx context.Context, sessionKey string) *Session {
	content, err := s.store.Get(ctx, storepaths.SessionRecord(sessionKey))
	if err != nil {
		if !errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Error("session_get_failed", "session_key", sessionKey, "error", err.Error())
		}
		return nil
	}
	var sess Session
	if err := json.Unmarshal(content, &sess); err != nil {
		s.logger.Error("session_decode_failed", "session_key", sessionKey, "error", err.Error())
		return nil
	}
	return &sess
}

// Upsert creates the record on first contact and updates it afterwards.
// user_id is overwritten, updated_at is refreshed, and metadata is
// shallow-merged: new keys override same-named old keys, untouched keys
// survive.
func (s *RecordStore) Upsert(ctx context.Context, sessionKey, userID string, metadata map[string]any) (*Session, error) {
	now := s.nowFn().UTC()

	sess := s.Get(ctx, sessionKey)
	if sess != nil {
		sess.UserID = userID
		sess.UpdatedAt = now
		if len(metadata) > 0 {
			if sess.Metadata == nil {
				sess.Metadata = map[string]any{}
			}
			for k, v := range metadata {
				sess.Metadata[k] = v
			}
		}
	} else {
		merged := map[string]any{}
		for k, v := range metadata {
			merged[k] = v
		}
		sess = &Session{
			SessionKey: sessionKey,
			UserID:     userID,
			CreatedAt:  now,
			UpdatedAt:  now,
			Metadata:   merged,
		}
	}

	content, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("session: encode record %s: %w", sessionKey, err)
	}
	if err := s.store.Put(ctx, storepaths.SessionRecord(sessionKey), content, recordContentType); err != nil {
		return nil, fmt.Errorf("session: write record %s: %w", sessionKey, err)
	}
	s.logger.Debug("session_saved", "session_key", sessionKey)
	return sess, nil
}
