// Package config resolves the gateway configuration from viper into typed,
// validated structs. Everything is settable through environment variables
// (prefix NANOBOT, dots become underscores) or flags bound by the cmd layer.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendGCS   = "gcs"
	BackendLocal = "local"

	DefaultWorkspaceRoot = "/tmp/nanobot_workspace"
	DefaultHistoryLimit  = 50
	DefaultSendTimeout   = 10 * time.Second
	DefaultAgentTimeout  = 5 * time.Minute
)

type AgentConfig struct {
	Endpoint       string
	AuthToken      string
	RequestTimeout time.Duration
	Workdir        string
}

type TelegramConfig struct {
	BotToken     string
	AllowedUsers []string
	APIBaseURL   string
	SendTimeout  time.Duration
}

// UserAllowed reports whether userID may use the gateway. An empty
// allow-list means no restriction.
func (c TelegramConfig) UserAllowed(userID string) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, allowed := range c.AllowedUsers {
		if allowed == userID {
			return true
		}
	}
	return false
}

type StoreConfig struct {
	Backend      string
	GCSBucket    string
	GCPProjectID string
	LocalRoot    string
}

type Config struct {
	Agent         AgentConfig
	Telegram      TelegramConfig
	Store         StoreConfig
	WorkspaceRoot string
	HistoryLimit  int
}

func FromViper() Config {
	cfg := Config{
		Agent: AgentConfig{
			Endpoint:       strings.TrimSpace(viper.GetString("agent.endpoint")),
			AuthToken:      strings.TrimSpace(viper.GetString("agent.auth_token")),
			RequestTimeout: viper.GetDuration("agent.request_timeout"),
			Workdir:        strings.TrimSpace(viper.GetString("agent.workdir")),
		},
		Telegram: TelegramConfig{
			BotToken:     strings.TrimSpace(viper.GetString("telegram.bot_token")),
			AllowedUsers: splitCommaList(viper.GetString("telegram.allowed_users")),
			APIBaseURL:   strings.TrimSpace(viper.GetString("telegram.api_base_url")),
			SendTimeout:  viper.GetDuration("telegram.send_timeout"),
		},
		Store: StoreConfig{
			Backend:      strings.ToLower(strings.TrimSpace(viper.GetString("store.backend"))),
			GCSBucket:    strings.TrimSpace(viper.GetString("store.gcs_bucket")),
			GCPProjectID: strings.TrimSpace(viper.GetString("store.gcp_project")),
			LocalRoot:    strings.TrimSpace(viper.GetString("store.local_root")),
		},
		WorkspaceRoot: strings.TrimSpace(viper.GetString("workspace.root")),
		HistoryLimit:  viper.GetInt("history.limit"),
	}
	return Normalize(cfg)
}

func Normalize(cfg Config) Config {
	if cfg.Agent.RequestTimeout <= 0 {
		cfg.Agent.RequestTimeout = DefaultAgentTimeout
	}
	if cfg.Telegram.SendTimeout <= 0 {
		cfg.Telegram.SendTimeout = DefaultSendTimeout
	}
	if cfg.Telegram.APIBaseURL == "" {
		cfg.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendGCS
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = DefaultWorkspaceRoot
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return cfg
}

// Validate is a pure function from config to the list of violations; an
// empty list means the config is usable.
func (c Config) Validate() []string {
	var violations []string
	if c.Agent.Endpoint == "" {
		violations = append(violations, "agent.endpoint is required (set NANOBOT_AGENT_ENDPOINT)")
	}
	if c.Telegram.BotToken == "" {
		violations = append(violations, "telegram.bot_token is required (set NANOBOT_TELEGRAM_BOT_TOKEN)")
	}
	switch c.Store.Backend {
	case BackendGCS:
		if c.Store.GCSBucket == "" {
			violations = append(violations, "store.gcs_bucket is required for the gcs backend (set NANOBOT_STORE_GCS_BUCKET)")
		}
	case BackendLocal:
		if c.Store.LocalRoot == "" {
			violations = append(violations, "store.local_root is required for the local backend (set NANOBOT_STORE_LOCAL_ROOT)")
		}
	default:
		violations = append(violations, fmt.Sprintf("store.backend must be %s or %s", BackendGCS, BackendLocal))
	}
	return violations
}

func splitCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
