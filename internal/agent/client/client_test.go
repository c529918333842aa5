package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/task/api"
	"github.com/karl-ai/corehub/internal/task/repository"
	"github.com/karl-ai/corehub/internal/task/service"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

func TestNextTaskClaims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tasks/next" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["agent"] != "devagent" {
			t.Errorf("agent = %q", req["agent"])
		}
		_ = json.NewEncoder(w).Encode(v1.Task{ID: "task-1", Title: "fix login", State: v1.TaskStateInProgress})
	}))
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	task, err := c.NextTask(context.Background())
	if err != nil {
		t.Fatalf("NextTask: %v", err)
	}
	if task == nil || task.ID != "task-1" {
		t.Errorf("task = %+v", task)
	}
}

func TestNextTaskEmptyQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	task, err := c.NextTask(context.Background())
	if err != nil {
		t.Fatalf("NextTask: %v", err)
	}
	if task != nil {
		t.Errorf("task = %+v, want nil", task)
	}
}

func TestUpdateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/tasks/task-1/status" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["status"] != "done" {
			t.Errorf("status = %q", req["status"])
		}
		_ = json.NewEncoder(w).Encode(v1.Task{ID: "task-1", State: v1.TaskStateDone})
	}))
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	task, err := c.UpdateStatus(context.Background(), "task-1", "done")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if task.State != v1.TaskStateDone {
		t.Errorf("state = %s", task.State)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	task, err := c.GetTask(context.Background(), "missing")
	if err != nil || task != nil {
		t.Errorf("GetTask = (%v, %v), want (nil, nil) on 404", task, err)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	if _, err := c.GetTask(context.Background(), "task-1"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestIsPausedFailModes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"system_paused": true})
	}))

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	if !c.IsPaused(context.Background()) {
		t.Error("paused hub not reported")
	}

	// Hub gone: fail_open keeps working, fail_closed holds back.
	srv.Close()
	if c.IsPaused(context.Background()) {
		t.Error("fail_open should report not paused when the hub is down")
	}

	closed := New(srv.URL, "devagent", FailClosed, logger.Default())
	if !closed.IsPaused(context.Background()) {
		t.Error("fail_closed should report paused when the hub is down")
	}
}

func TestLogEventBody(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	if err := c.LogEvent(context.Background(), "task_started", "task-1", "picked up"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if got["type"] != "task_started" || got["task_id"] != "task-1" || got["agent"] != "devagent" {
		t.Errorf("body = %v", got)
	}
	payload, ok := got["payload"].(map[string]interface{})
	if !ok || payload["message"] != "picked up" {
		t.Errorf("payload = %v, want message carried under payload", got["payload"])
	}
}

// The hub's event endpoint binds the payload object; the message must survive
// a round trip through the real handler, not just the wire encoding.
func TestLogEventRoundTripThroughHub(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, err := service.NewService(context.Background(), repository.NewMemoryRepository(), nil, logger.Default())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	router := gin.New()
	api.SetupRoutes(router.Group("/api/v1"), svc, logger.Default())
	srv := httptest.NewServer(router)
	defer srv.Close()

	c := New(srv.URL, "devagent", FailOpen, logger.Default())
	if err := c.LogEvent(context.Background(), "task_failed", "task-1", "git push refused"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := svc.ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Payload["message"] != "git push refused" {
		t.Errorf("stored payload = %v, want the failure message", events[0].Payload)
	}
}
