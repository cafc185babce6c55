package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elliot35/nanobot-serverless-deploy/internal/blobstore"
	"github.com/elliot35/nanobot-serverless-deploy/internal/config"
	"github.com/elliot35/nanobot-serverless-deploy/internal/gateway"
)

type stubRunner struct {
	workdir string
	reply   string
}

func (r *stubRunner) Process(context.Context, string, string) (string, error) {
	return r.reply, nil
}

func (r *stubRunner) Workdir() string { return r.workdir }

type stubSender struct{}

func (stubSender) SendMessage(context.Context, string, string) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	workdir := filepath.Join(t.TempDir(), "agent")
	require.NoError(t, os.MkdirAll(workdir, 0o755))

	gw, err := gateway.New(gateway.Options{
		Config: config.Config{
			Agent:         config.AgentConfig{Endpoint: "http://agent.internal/process"},
			Telegram:      config.TelegramConfig{BotToken: "123:ABC", AllowedUsers: []string{"7"}},
			Store:         config.StoreConfig{Backend: config.BackendLocal, LocalRoot: "unused"},
			WorkspaceRoot: filepath.Join(t.TempDir(), "workspace"),
		},
		Logger: slog.Default(),
		Store:  store,
		Runner: &stubRunner{workdir: workdir, reply: "hi there"},
		Sender: stubSender{},
	})
	require.NoError(t, err)

	instance := gateway.NewInstance(func(context.Context) (*gateway.Gateway, error) {
		return gw, nil
	})
	return New(instance, slog.Default())
}

func TestWebhookHappyPath(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	body := `{"message": {"chat": {"id": 42, "type": "private"}, "from": {"id": 7}, "text": "hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result gateway.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.True(t, result.Handled)
	assert.Equal(t, "hi there", result.Response)
}

func TestWebhookUserNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	body := `{"message": {"chat": {"id": 42, "type": "private"}, "from": {"id": 99}, "text": "hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result gateway.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.False(t, result.Handled)
	assert.Equal(t, "User not allowed", result.Error)
}

func TestWebhookInvalidJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "Invalid JSON", out["error"])
}

func TestWebhookWithoutMessageIsNotHandled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader(`{"update_id": 9}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result gateway.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.False(t, result.Handled)
}

func TestWebhookInitFailure(t *testing.T) {
	t.Parallel()

	instance := gateway.NewInstance(func(context.Context) (*gateway.Gateway, error) {
		return nil, errors.New("store unreachable")
	})
	srv := New(instance, slog.Default())

	body := `{"message": {"chat": {"id": 42, "type": "private"}, "from": {"id": 7}, "text": "hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, false, out["ok"])
}

func TestHealthHealthy(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health gateway.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, gateway.StatusHealthy, health.Status)
	assert.NotEmpty(t, health.Checks)
}

func TestHealthInitFailure(t *testing.T) {
	t.Parallel()

	instance := gateway.NewInstance(func(context.Context) (*gateway.Gateway, error) {
		return nil, errors.New("store unreachable")
	})
	srv := New(instance, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var health gateway.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, gateway.StatusUnhealthy, health.Status)
	assert.Contains(t, health.Error, "store unreachable")
}

func TestRootServiceInfo(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "nanobot-serverless-deploy", out["service"])
	assert.Equal(t, "running", out["status"])
}
