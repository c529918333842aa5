// Package client is the HTTP client agents use to talk to the CoreHub API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// PauseFailMode decides what IsPaused reports when the hub is unreachable.
type PauseFailMode string

const (
	// FailOpen treats an unreachable hub as not paused, so agents keep
	// trying to claim work.
	FailOpen PauseFailMode = "fail_open"
	// FailClosed treats an unreachable hub as paused.
	FailClosed PauseFailMode = "fail_closed"
)

const defaultTimeout = 30 * time.Second

// Client talks to one CoreHub instance.
type Client struct {
	baseURL  string
	agent    string
	failMode PauseFailMode
	http     *http.Client
	logger   *logger.Logger
}

// New creates a hub client for the named agent.
func New(baseURL, agent string, failMode PauseFailMode, log *logger.Logger) *Client {
	if failMode != FailClosed {
		failMode = FailOpen
	}
	return &Client{
		baseURL:  baseURL,
		agent:    agent,
		failMode: failMode,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   log,
	}
}

// do issues one request and decodes the JSON body into out when out is
// non-nil and the response carries a body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// NextTask claims the next ready task for this agent. A nil task with a nil
// error means nothing is ready.
func (c *Client) NextTask(ctx context.Context) (*v1.Task, error) {
	var task v1.Task
	status, err := c.do(ctx, http.MethodPost, "/api/v1/tasks/next", map[string]string{"agent": c.agent}, &task)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &task, nil
}

// GetTask fetches one task by ID. A nil task with a nil error means the hub
// does not know the task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*v1.Task, error) {
	var task v1.Task
	status, err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+taskID, nil, &task)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateStatus moves a task to the given state.
func (c *Client) UpdateStatus(ctx context.Context, taskID, status string) (*v1.Task, error) {
	var task v1.Task
	_, err := c.do(ctx, http.MethodPut, "/api/v1/tasks/"+taskID+"/status", map[string]string{"status": status}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// LogEvent records an agent activity event on the hub. Failures are reported
// but callers generally treat event logging as best effort.
func (c *Client) LogEvent(ctx context.Context, eventType, taskID, message string) error {
	body := map[string]interface{}{
		"agent": c.agent,
		"type":  eventType,
	}
	if taskID != "" {
		body["task_id"] = taskID
	}
	if message != "" {
		// The hub stores free-form detail under the event payload.
		body["payload"] = map[string]interface{}{"message": message}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/events/log", body, nil)
	return err
}

// IsPaused reports whether the hub has paused agent work. When the hub is
// unreachable the configured fail mode decides the answer.
func (c *Client) IsPaused(ctx context.Context) bool {
	var state struct {
		SystemPaused bool `json:"system_paused"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/admin/pause", nil, &state); err != nil {
		c.logger.Warn("Pause check failed, applying fail mode",
			zap.String("fail_mode", string(c.failMode)),
			zap.Error(err))
		return c.failMode == FailClosed
	}
	return state.SystemPaused
}

// Agent returns the agent name this client identifies as.
func (c *Client) Agent() string {
	return c.agent
}
