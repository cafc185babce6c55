// Package gateway coordinates one webhook invocation end to end: resolve
// the session, sync state in from the object store, invoke the external
// agent, sync state out, and reply through Telegram.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/elliot35/nanobot-serverless-deploy/internal/agent"
	"github.com/elliot35/nanobot-serverless-deploy/internal/blobstore"
	"github.com/elliot35/nanobot-serverless-deploy/internal/config"
	"github.com/elliot35/nanobot-serverless-deploy/internal/session"
	"github.com/elliot35/nanobot-serverless-deploy/internal/storepaths"
	"github.com/elliot35/nanobot-serverless-deploy/internal/telegram"
	"github.com/elliot35/nanobot-serverless-deploy/internal/workspace"
)

const fallbackReply = "I received your message but couldn't generate a response."

// Sender delivers outbound replies. Satisfied by *telegram.Client.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

type Gateway struct {
	cfg     config.Config
	logger  *slog.Logger
	store   blobstore.Store
	records *session.RecordStore
	logs    *session.LogStore
	sync    *workspace.Synchronizer
	runner  agent.Runner
	sender  Sender
	idFn    func() string
}

type Options struct {
	Config config.Config
	Logger *slog.Logger
	Store  blobstore.Store
	Runner agent.Runner
	Sender Sender
}

func New(opts Options) (*Gateway, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("gateway: blob store is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("gateway: agent runner is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("gateway: sender is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := config.Normalize(opts.Config)

	records, err := session.NewRecordStore(opts.Store, logger)
	if err != nil {
		return nil, err
	}
	logs, err := session.NewLogStore(opts.Store, logger)
	if err != nil {
		return nil, err
	}
	sync, err := workspace.NewSynchronizer(opts.Store, logger)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.WorkspaceRoot, 0o755); err != nil {
		return nil, fmt.Errorf("gateway: ensure workspace root %s: %w", cfg.WorkspaceRoot, err)
	}
	return &Gateway{
		cfg:     cfg,
		logger:  logger,
		store:   opts.Store,
		records: records,
		logs:    logs,
		sync:    sync,
		runner:  opts.Runner,
		sender:  opts.Sender,
		idFn:    uuid.NewString,
	}, nil
}

// FromConfig builds a gateway with its production collaborators: the
// configured store backend, the HTTP agent runner, and the Telegram client.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Gateway, error) {
	cfg = config.Normalize(cfg)
	if violations := cfg.Validate(); len(violations) > 0 {
		return nil, fmt.Errorf("gateway: invalid configuration: %s", strings.Join(violations, "; "))
	}

	var store blobstore.Store
	var err error
	switch cfg.Store.Backend {
	case config.BackendGCS:
		store, err = blobstore.NewGCS(ctx, cfg.Store.GCSBucket, cfg.Store.GCPProjectID)
	case config.BackendLocal:
		store, err = blobstore.NewLocal(cfg.Store.LocalRoot)
	default:
		err = fmt.Errorf("gateway: unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	workdir := cfg.Agent.Workdir
	if workdir == "" {
		workdir = filepath.Join(cfg.WorkspaceRoot, "agent")
	}
	runner, err := agent.NewHTTPRunner(agent.HTTPRunnerOptions{
		Endpoint:       cfg.Agent.Endpoint,
		AuthToken:      cfg.Agent.AuthToken,
		Workdir:        workdir,
		RequestTimeout: cfg.Agent.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	sender, err := telegram.NewClient(nil, cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	return New(Options{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Runner: runner,
		Sender: sender,
	})
}

// HandleUpdate runs the full per-invocation flow for one Telegram update.
// Best-effort side channels (history, action log, delivery) never abort it;
// critical-path failures come back as a structured failure result.
func (g *Gateway) HandleUpdate(ctx context.Context, update telegram.Update) Result {
	msg := update.EffectiveMessage()
	if msg == nil {
		g.logger.Warn("update_without_message")
		return notHandled()
	}
	if msg.Chat == nil || msg.From == nil || !msg.HasText() {
		g.logger.Warn("update_not_processable", "has_chat", msg.Chat != nil, "has_from", msg.From != nil)
		return notHandled()
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	userID := strconv.FormatInt(msg.From.ID, 10)
	text := strings.TrimSpace(msg.Text)
	g.logger.Info("update_received", "chat_id", chatID, "user_id", userID, "text_len", len(text))

	if !g.cfg.Telegram.UserAllowed(userID) {
		g.logger.Warn("user_not_allowed", "user_id", userID)
		return rejected("User not allowed")
	}

	sessionKey := "telegram:" + chatID

	if _, err := g.records.Upsert(ctx, sessionKey, userID, map[string]any{"chat_type": msg.Chat.Type}); err != nil {
		g.logger.Error("session_upsert_failed", "session_key", sessionKey, "error", err.Error())
		return failed(fmt.Errorf("resolve session %s: %w", sessionKey, err))
	}

	sessionDir := filepath.Join(g.cfg.WorkspaceRoot, storepaths.Sanitize(sessionKey))
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return failed(fmt.Errorf("create session workspace: %w", err))
	}
	if err := g.sync.PullToLocal(ctx, sessionDir, sessionKey); err != nil {
		g.logger.Error("workspace_pull_failed", "session_key", sessionKey, "error", err.Error())
		return failed(fmt.Errorf("sync session files: %w", err))
	}

	// Stored history is an audit trail; the agent manages its own memory.
	history := g.logs.ReadMessages(ctx, sessionKey, g.cfg.HistoryLimit)
	g.logger.Debug("chat_history_loaded", "session_key", sessionKey, "messages", len(history))

	// The agent consumes files from its own working directory, not the
	// session path. This copy is the contract boundary.
	if _, err := workspace.CopyTree(sessionDir, g.runner.Workdir()); err != nil {
		g.logger.Error("workspace_copy_in_failed", "session_key", sessionKey, "error", err.Error())
		return failed(fmt.Errorf("stage agent files: %w", err))
	}

	if err := g.logs.AppendMessage(ctx, sessionKey, g.idFn(), session.RoleUser, text,
		map[string]any{"telegram_message_id": msg.MessageID}); err != nil {
		g.logger.Warn("chat_message_append_failed", "session_key", sessionKey, "error", err.Error())
	}

	reply, err := g.runner.Process(ctx, text, sessionKey)
	if err != nil {
		g.logger.Error("agent_invoke_failed", "session_key", sessionKey, "error", err.Error())
		return failed(fmt.Errorf("invoke agent: %w", err))
	}

	if strings.TrimSpace(reply) != "" {
		if err := g.logs.AppendMessage(ctx, sessionKey, g.idFn(), session.RoleAssistant, reply, nil); err != nil {
			g.logger.Warn("chat_message_append_failed", "session_key", sessionKey, "error", err.Error())
		}
	}

	g.syncOut(ctx, sessionKey, sessionDir)

	if strings.TrimSpace(reply) == "" {
		g.logger.Warn("empty_agent_reply", "chat_id", chatID)
		reply = fallbackReply
	}
	g.deliver(ctx, chatID, reply)

	return Result{OK: true, Handled: true, Response: reply}
}

// syncOut persists files the agent produced. The conversation record is
// already durable at this point, so persistence failures degrade to logs
// instead of failing the invocation.
func (g *Gateway) syncOut(ctx context.Context, sessionKey, sessionDir string) {
	if _, err := workspace.CopyTree(g.runner.Workdir(), sessionDir); err != nil {
		g.logger.Error("workspace_copy_out_failed", "session_key", sessionKey, "error", err.Error())
	}
	if err := g.sync.PushToRemote(ctx, sessionDir, sessionKey); err != nil {
		g.logger.Error("workspace_push_failed", "session_key", sessionKey, "error", err.Error())
	}

	count, err := workspace.CountFiles(sessionDir)
	if err != nil {
		g.logger.Warn("workspace_count_failed", "session_key", sessionKey, "error", err.Error())
		return
	}
	if count == 0 {
		return
	}
	if _, err := g.logs.AppendAction(ctx, sessionKey, "file_operation", map[string]any{
		"files_count": count,
		"workspace":   sessionDir,
	}, nil); err != nil {
		g.logger.Warn("agent_action_append_failed", "session_key", sessionKey, "error", err.Error())
	}
}

// deliver sends the reply with a bounded timeout. Delivery failure is
// non-fatal: conversational state is already persisted.
func (g *Gateway) deliver(ctx context.Context, chatID, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, g.cfg.Telegram.SendTimeout)
	defer cancel()
	if err := g.sender.SendMessage(sendCtx, chatID, text); err != nil {
		g.logger.Error("telegram_send_failed", "chat_id", chatID, "error", err.Error())
		return
	}
	g.logger.Info("reply_delivered", "chat_id", chatID)
}
