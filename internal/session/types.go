// Package session persists per-conversation state in the object store: one
// JSON record per session plus two independent append-only JSONL streams
// (chat history and agent actions).
package session

import "time"

// Session is the durable record for one conversation, keyed by the
// composite "<channel>:<chat-id>" session key.
type Session struct {
	SessionKey string         `json:"session_key"`
	UserID     string         `json:"user_id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one immutable entry in a session's chat history stream.
type ChatMessage struct {
	MessageID string         `json:"message_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// AgentAction is one immutable entry in a session's agent-action stream.
// The two streams are never interleaved.
type AgentAction struct {
	ActionID   string         `json:"action_id"`
	ActionType string         `json:"action_type"`
	ActionData map[string]any `json:"action_data"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata"`
}
