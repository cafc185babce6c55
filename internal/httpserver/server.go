// Package httpserver exposes the gateway over HTTP: the Telegram webhook,
// the health endpoint, and a service-info root. It is thin plumbing; all
// invariants live in the gateway package.
package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/elliot35/nanobot-serverless-deploy/internal/gateway"
	"github.com/elliot35/nanobot-serverless-deploy/internal/telegram"
)

type Server struct {
	instance *gateway.Instance
	logger   *slog.Logger
}

func New(instance *gateway.Instance, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{instance: instance, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/webhook/telegram", s.handleTelegramWebhook)
	r.Get("/api/health", s.handleHealth)
	r.Get("/", s.handleRoot)
	return r
}

func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http_server_listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("webhook_body_read_failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Internal server error"})
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(body, &update); err != nil {
		s.logger.Error("webhook_invalid_json", "error", err.Error())
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Invalid JSON"})
		return
	}

	gw, err := s.instance.Get(r.Context())
	if err != nil {
		s.logger.Error("gateway_init_failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Internal server error"})
		return
	}

	result := gw.HandleUpdate(r.Context(), update)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	gw, err := s.instance.Get(r.Context())
	if err != nil {
		s.logger.Error("gateway_init_failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, gateway.Health{
			Status: gateway.StatusUnhealthy,
			Error:  err.Error(),
		})
		return
	}

	health := gw.Health(r.Context())
	status := http.StatusOK
	if health.Status != gateway.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "nanobot-serverless-deploy",
		"status":  "running",
		"endpoints": map[string]string{
			"webhook": "/api/webhook/telegram",
			"health":  "/api/health",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Shutdown-capable variant used by serve when graceful stop is wanted.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http_server_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
