package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/elliot35/nanobot-serverless-deploy/internal/blobstore"
	"github.com/elliot35/nanobot-serverless-deploy/internal/storepaths"
)

const jsonlContentType = "application/x-ndjson"

// LogStore appends to and reads the two per-session JSONL streams.
//
// Appends are read-modify-write with no optimistic concurrency check:
// overlapping invocations for the same session can lose records. This is an
// accepted limitation for the target deployment profile; hardening would
// need a per-session lease or a conditional-write store primitive.
type LogStore struct {
	store  blobstore.Store
	logger *slog.Logger
	nowFn  func() time.Time
	idFn   func() string
}

func NewLogStore(store blobstore.Store, logger *slog.Logger) (*LogStore, error) {
	if store == nil {
		return nil, fmt.Errorf("session: blob store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStore{
		store:  store,
		logger: logger,
		nowFn:  time.Now,
		idFn:   uuid.NewString,
	}, nil
}

// AppendMessage adds one chat message to the session's history stream.
func (s *LogStore) AppendMessage(ctx context.Context, sessionKey, messageID string, role Role, content string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	record := ChatMessage{
		MessageID: messageID,
		Role:      role,
		Content:   content,
		Timestamp: s.nowFn().UTC(),
		Metadata:  metadata,
	}
	if err := s.appendLine(ctx, storepaths.ChatHistory(sessionKey), record); err != nil {
		return fmt.Errorf("session: append chat message %s: %w", sessionKey, err)
	}
	s.logger.Debug("chat_message_saved", "session_key", sessionKey, "message_id", messageID, "role", string(role))
	return nil
}

// ReadMessages returns the session's chat history in append order. With
// limit > 0 it returns the last limit records. Errors recover to an empty
// history; a malformed line is skipped without affecting its neighbors.
func (s *LogStore) ReadMessages(ctx context.Context, sessionKey string, limit int) []ChatMessage {
	lines := s.readLines(ctx, storepaths.ChatHistory(sessionKey))
	messages := make([]ChatMessage, 0, len(lines))
	for _, line := range lines {
		var msg ChatMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Warn("chat_history_line_skipped", "session_key", sessionKey, "error", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return tail(messages, limit)
}

// AppendAction adds one agent action to the session's action stream and
// returns the generated action id, or "" when the append failed.
func (s *LogStore) AppendAction(ctx context.Context, sessionKey, actionType string, actionData, metadata map[string]any) (string, error) {
	if actionData == nil {
		actionData = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	record := AgentAction{
		ActionID:   s.idFn(),
		ActionType: actionType,
		ActionData: actionData,
		Timestamp:  s.nowFn().UTC(),
		Metadata:   metadata,
	}
	if err := s.appendLine(ctx, storepaths.AgentActions(sessionKey), record); err != nil {
		return "", fmt.Errorf("session: append agent action %s: %w", sessionKey, err)
	}
	s.logger.Debug("agent_action_saved", "session_key", sessionKey, "action_id", record.ActionID, "action_type", actionType)
	return record.ActionID, nil
}

// ReadActions returns the session's agent actions in append order,
// optionally filtered by action type. Same limit and recovery semantics as
// ReadMessages.
func (s *LogStore) ReadActions(ctx context.Context, sessionKey, actionType string, limit int) []AgentAction {
	lines := s.readLines(ctx, storepaths.AgentActions(sessionKey))
	actions := make([]AgentAction, 0, len(lines))
	for _, line := range lines {
		var action AgentAction
		if err := json.Unmarshal(line, &action); err != nil {
			s.logger.Warn("agent_action_line_skipped", "session_key", sessionKey, "error", err.Error())
			continue
		}
		if actionType != "" && action.ActionType != actionType {
			continue
		}
		actions = append(actions, action)
	}
	return tail(actions, limit)
}

func (s *LogStore) appendLine(ctx context.Context, path string, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	line = append(line, '\n')

	existing, err := s.store.Get(ctx, path)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return err
	}
	return s.store.Put(ctx, path, append(existing, line...), jsonlContentType)
}

func (s *LogStore) readLines(ctx context.Context, path string) [][]byte {
	content, err := s.store.Get(ctx, path)
	if err != nil {
		if !errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Error("log_read_failed", "path", path, "error", err.Error())
		}
		return nil
	}
	raw := bytes.Split(content, []byte("\n"))
	lines := make([][]byte, 0, len(raw))
	for _, line := range raw {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func tail[T any](records []T, limit int) []T {
	if limit > 0 && len(records) > limit {
		return records[len(records)-limit:]
	}
	return records
}
