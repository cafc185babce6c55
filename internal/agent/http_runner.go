package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HTTPRunner invokes an agent sidecar over HTTP: POST {message, session_key}
// to the configured endpoint, decode {response}.
type HTTPRunner struct {
	http     *http.Client
	endpoint string
	token    string
	workdir  string
}

type HTTPRunnerOptions struct {
	Endpoint       string
	AuthToken      string
	Workdir        string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

func NewHTTPRunner(opts HTTPRunnerOptions) (*HTTPRunner, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("agent: endpoint is required")
	}
	workdir := strings.TrimSpace(opts.Workdir)
	if workdir == "" {
		return nil, fmt.Errorf("agent: workdir is required")
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("agent: ensure workdir %s: %w", workdir, err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPRunner{
		http:     httpClient,
		endpoint: endpoint,
		token:    strings.TrimSpace(opts.AuthToken),
		workdir:  workdir,
	}, nil
}

type processRequest struct {
	Message    string `json:"message"`
	SessionKey string `json:"session_key"`
	Workdir    string `json:"workdir,omitempty"`
}

type processResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (r *HTTPRunner) Process(ctx context.Context, text, sessionKey string) (string, error) {
	payload, err := json.Marshal(processRequest{
		Message:    text,
		SessionKey: sessionKey,
		Workdir:    r.workdir,
	})
	if err != nil {
		return "", fmt.Errorf("agent: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("agent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent: invoke: %w", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out processResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("agent: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("agent: %s", out.Error)
	}
	return out.Response, nil
}

func (r *HTTPRunner) Workdir() string {
	return r.workdir
}
