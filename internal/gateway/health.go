package gateway

import (
	"context"
	"os"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type Health struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Health reports component readiness. A reachable store plus wired
// collaborators is healthy; anything missing degrades the report.
func (g *Gateway) Health(ctx context.Context) Health {
	storeOK := false
	if g.store != nil {
		// Probe an arbitrary path; only transport failures matter here.
		if _, err := g.store.Exists(ctx, "healthz"); err == nil {
			storeOK = true
		}
	}
	workspaceOK := false
	if info, err := os.Stat(g.cfg.WorkspaceRoot); err == nil && info.IsDir() {
		workspaceOK = true
	}

	checks := map[string]bool{
		"store":     storeOK,
		"agent":     g.runner != nil,
		"sender":    g.sender != nil,
		"workspace": workspaceOK,
	}
	status := StatusHealthy
	for _, ok := range checks {
		if !ok {
			status = StatusDegraded
			break
		}
	}
	return Health{Status: status, Checks: checks}
}
