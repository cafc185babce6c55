// Package agent defines the contract boundary with the external
// conversational agent. The gateway holds no reasoning of its own: it hands
// the agent a message and a session key, and exchanges files through the
// agent's working directory (populated before the call, harvested after).
package agent

import "context"

type Runner interface {
	// Process sends one user message for one session and returns the reply
	// text ("" means the agent produced no reply).
	Process(ctx context.Context, text, sessionKey string) (string, error)
	// Workdir is the directory the agent reads and writes files in.
	Workdir() string
}
