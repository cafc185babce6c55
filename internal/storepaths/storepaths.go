// Package storepaths defines the object-store layout for session state.
// The layout is a stable contract:
//
//	sessions/<sanitized-key>/session.json
//	sessions/<sanitized-key>/chat_history.jsonl
//	sessions/<sanitized-key>/agent_actions.jsonl
//	sessions/<sanitized-key>/files/<relative-path>
package storepaths

import "strings"

const (
	sessionsPrefix     = "sessions"
	sessionRecordName  = "session.json"
	chatHistoryName    = "chat_history.jsonl"
	agentActionsName   = "agent_actions.jsonl"
	sessionFilesPrefix = "files"
)

// Sanitize makes a session key safe for use as a path component by
// replacing the channel separator.
func Sanitize(sessionKey string) string {
	return strings.ReplaceAll(sessionKey, ":", "_")
}

func SessionDir(sessionKey string) string {
	return sessionsPrefix + "/" + Sanitize(sessionKey)
}

func SessionRecord(sessionKey string) string {
	return SessionDir(sessionKey) + "/" + sessionRecordName
}

func ChatHistory(sessionKey string) string {
	return SessionDir(sessionKey) + "/" + chatHistoryName
}

func AgentActions(sessionKey string) string {
	return SessionDir(sessionKey) + "/" + agentActionsName
}

// FilesPrefix ends with a slash so relative paths can be appended directly.
func FilesPrefix(sessionKey string) string {
	return SessionDir(sessionKey) + "/" + sessionFilesPrefix + "/"
}
